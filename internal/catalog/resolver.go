package catalog

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"live-tick-excel/internal/models"

	"go.uber.org/zap"
)

var ErrNothingResolved = errors.New("no watch-list instrument could be resolved")

type Resolver struct {
	catalog Catalog
	logger  *zap.Logger
}

func NewResolver(catalog Catalog, logger *zap.Logger) *Resolver {
	return &Resolver{catalog: catalog, logger: logger}
}

// SplitName parses "EXCHANGE:SYMBOL". A name without a colon has no exchange.
func SplitName(name string) (exchange, symbol string) {
	if ex, sym, ok := strings.Cut(name, ":"); ok {
		return ex, sym
	}
	return "", name
}

// Resolve binds each name to one token. When a name matches several
// instruments the first by (instrument_type, expiry, strike) wins. Names
// that match nothing, and names resolving to a token already taken, are
// skipped with a warning. The instrument name is the trading symbol.
func (r *Resolver) Resolve(ctx context.Context, names []string) ([]models.Instrument, error) {
	var out []models.Instrument
	seen := make(map[uint32]string, len(names))

	for _, name := range names {
		exchange, symbol := SplitName(name)
		found, err := r.catalog.Lookup(ctx, exchange, symbol)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", name, err)
		}
		if len(found) == 0 {
			r.logger.Warn("could not find instrument; skipping", zap.String("name", name))
			continue
		}
		if len(found) > 1 {
			r.logger.Warn("multiple matches; picking first by (instrument_type, expiry, strike)",
				zap.String("name", name), zap.Int("matches", len(found)))
			slices.SortStableFunc(found, compareInstruments)
		}

		token := found[0].InstrumentToken
		if prev, dup := seen[token]; dup {
			r.logger.Warn("instrument already on the watch-list; skipping",
				zap.String("name", name), zap.String("first", prev), zap.Uint32("token", token))
			continue
		}
		seen[token] = name
		out = append(out, models.Instrument{Token: token, Name: symbol})
		r.logger.Debug("mapped instrument", zap.String("name", name), zap.Uint32("token", token))
	}

	if len(out) == 0 {
		return nil, ErrNothingResolved
	}
	return out, nil
}

// compareInstruments orders by instrument type, then expiry with
// non-expiring instruments first, then strike.
func compareInstruments(a, b models.CatalogInstrument) int {
	return cmp.Or(
		cmp.Compare(a.InstrumentType, b.InstrumentType),
		a.Expiry.Compare(b.Expiry),
		cmp.Compare(a.Strike, b.Strike),
	)
}
