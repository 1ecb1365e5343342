// Package catalog maps watch-list names to stream tokens using the broker's
// instrument master.
package catalog

import (
	"context"

	"live-tick-excel/internal/models"
)

// Catalog finds instruments by trading symbol. An empty exchange matches
// every exchange.
type Catalog interface {
	Lookup(ctx context.Context, exchange, symbol string) ([]models.CatalogInstrument, error)
}

// Memory is a Catalog over an in-memory instrument dump.
type Memory struct {
	bySymbol map[string][]models.CatalogInstrument
	size     int
}

var _ Catalog = (*Memory)(nil)

func NewMemory(instruments []models.CatalogInstrument) *Memory {
	m := &Memory{
		bySymbol: make(map[string][]models.CatalogInstrument, len(instruments)),
		size:     len(instruments),
	}
	for _, inst := range instruments {
		m.bySymbol[inst.TradingSymbol] = append(m.bySymbol[inst.TradingSymbol], inst)
	}
	return m
}

func (m *Memory) Len() int {
	return m.size
}

func (m *Memory) Lookup(_ context.Context, exchange, symbol string) ([]models.CatalogInstrument, error) {
	candidates := m.bySymbol[symbol]
	if exchange == "" {
		return append([]models.CatalogInstrument(nil), candidates...), nil
	}
	var out []models.CatalogInstrument
	for _, inst := range candidates {
		if inst.Exchange == exchange {
			out = append(out, inst)
		}
	}
	return out, nil
}
