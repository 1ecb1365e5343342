// Package registry holds the watched instruments and the last tick seen for
// each of them.
//
// The registry is filled once before the stream starts and is read and
// written concurrently afterwards. A single guard covers both tick
// application and snapshots, so a snapshot never observes a half-applied
// tick or a table that changed while it was being copied.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"live-tick-excel/internal/models"
)

var (
	ErrSealed         = errors.New("registry is sealed")
	ErrDuplicateToken = errors.New("instrument token already registered")
)

// Policy decides how an incoming tick combines with the stored record.
type Policy int

const (
	// PolicyReplace overwrites the record; fields absent from the tick
	// become absent.
	PolicyReplace Policy = iota
	// PolicyMerge keeps previously known values for fields absent from the tick.
	PolicyMerge
)

// Entry is one instrument with its last known tick.
type Entry struct {
	Instrument models.Instrument
	Record     models.TickFields
}

type Option func(*Registry)

// WithPolicy sets the tick apply policy. The default is PolicyReplace.
func WithPolicy(p Policy) Option {
	return func(r *Registry) {
		r.policy = p
	}
}

type Registry struct {
	mu      sync.RWMutex
	index   map[uint32]int
	entries []Entry
	sealed  bool
	policy  Policy
}

func New(opts ...Option) *Registry {
	r := &Registry{
		index: make(map[uint32]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds an instrument with an empty record. It fails once the
// registry has been sealed.
func (r *Registry) Register(token uint32, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("register %d (%s): %w", token, name, ErrSealed)
	}
	if _, ok := r.index[token]; ok {
		return fmt.Errorf("register %d (%s): %w", token, name, ErrDuplicateToken)
	}

	r.index[token] = len(r.entries)
	r.entries = append(r.entries, Entry{
		Instrument: models.Instrument{Token: token, Name: name},
	})
	return nil
}

// Seal stops further registrations. It is idempotent.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Tokens returns the registered tokens in registration order.
func (r *Registry) Tokens() []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens := make([]uint32, len(r.entries))
	for i, e := range r.entries {
		tokens[i] = e.Instrument.Token
	}
	return tokens
}

// ApplyTick stores fields as the record of token. It reports false, and
// changes nothing, when token is not registered.
func (r *Registry) ApplyTick(token uint32, fields models.TickFields) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[token]
	if !ok {
		return false
	}
	if r.policy == PolicyMerge {
		fields = fields.Merge(r.entries[i].Record)
	}
	r.entries[i].Record = fields
	return true
}

// Snapshot copies every entry in registration order.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
