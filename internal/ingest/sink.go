package ingest

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"live-tick-excel/internal/models"

	"go.uber.org/zap"
)

// ErrUnsupportedDepth is returned for any tick history depth other than 1.
var ErrUnsupportedDepth = errors.New("only the latest tick per instrument can be retained")

// Store is the part of the registry the sink writes to.
type Store interface {
	ApplyTick(token uint32, fields models.TickFields) bool
}

// Stats are cumulative counters since the sink was created.
type Stats struct {
	Applied       uint64    `json:"applied"`
	Dropped       uint64    `json:"dropped"`
	LastAppliedAt time.Time `json:"last_applied_at,omitempty"`
}

// Sink applies inbound tick batches to the registry.
type Sink struct {
	store  Store
	logger *zap.Logger

	applied     atomic.Uint64
	dropped     atomic.Uint64
	lastApplied atomic.Int64
}

func NewSink(store Store, logger *zap.Logger, depth int) (*Sink, error) {
	if depth != 1 {
		return nil, fmt.Errorf("depth %d: %w", depth, ErrUnsupportedDepth)
	}
	return &Sink{store: store, logger: logger}, nil
}

// Apply writes each tick of batch in order. Ticks for instruments that are
// not registered are dropped; that is expected for tokens outside the
// watch-list.
func (s *Sink) Apply(batch []models.Tick) (applied, dropped int) {
	for _, t := range batch {
		if s.store.ApplyTick(t.Token, t.Fields) {
			applied++
			continue
		}
		dropped++
		s.logger.Debug("dropped tick for unregistered token", zap.Uint32("token", t.Token))
	}

	s.applied.Add(uint64(applied))
	s.dropped.Add(uint64(dropped))
	if applied > 0 {
		s.lastApplied.Store(time.Now().UnixNano())
	}
	return applied, dropped
}

func (s *Sink) Stats() Stats {
	st := Stats{
		Applied: s.applied.Load(),
		Dropped: s.dropped.Load(),
	}
	if ns := s.lastApplied.Load(); ns != 0 {
		st.LastAppliedAt = time.Unix(0, ns)
	}
	return st
}
