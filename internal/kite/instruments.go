package kite

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"live-tick-excel/internal/models"
)

const expiryLayout = "2006-01-02"

var instrumentColumns = []string{
	"instrument_token", "exchange_token", "tradingsymbol", "name", "last_price",
	"expiry", "strike", "tick_size", "lot_size", "instrument_type", "segment", "exchange",
}

// ParseInstruments reads the instrument master CSV. Columns are located by
// header name so extra or reordered columns are tolerated.
func ParseInstruments(r io.Reader) ([]models.CatalogInstrument, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read instrument header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	for _, col := range instrumentColumns {
		if _, ok := idx[col]; !ok && col != "last_price" {
			return nil, fmt.Errorf("instrument master lacks column %q", col)
		}
	}

	var out []models.CatalogInstrument
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read instrument line %d: %w", line, err)
		}
		inst, err := parseInstrument(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("instrument line %d: %w", line, err)
		}
		out = append(out, inst)
	}
	return out, nil
}

func parseInstrument(rec []string, idx map[string]int) (models.CatalogInstrument, error) {
	col := func(name string) string { return rec[idx[name]] }

	token, err := strconv.ParseUint(col("instrument_token"), 10, 32)
	if err != nil {
		return models.CatalogInstrument{}, fmt.Errorf("instrument_token: %w", err)
	}
	exToken, err := strconv.ParseUint(col("exchange_token"), 10, 32)
	if err != nil {
		return models.CatalogInstrument{}, fmt.Errorf("exchange_token: %w", err)
	}

	inst := models.CatalogInstrument{
		InstrumentToken: uint32(token),
		ExchangeToken:   uint32(exToken),
		TradingSymbol:   col("tradingsymbol"),
		Name:            col("name"),
		InstrumentType:  col("instrument_type"),
		Segment:         col("segment"),
		Exchange:        col("exchange"),
	}
	if v := col("expiry"); v != "" {
		if inst.Expiry, err = time.Parse(expiryLayout, v); err != nil {
			return models.CatalogInstrument{}, fmt.Errorf("expiry: %w", err)
		}
	}
	if inst.Strike, err = parseFloat(col("strike")); err != nil {
		return models.CatalogInstrument{}, fmt.Errorf("strike: %w", err)
	}
	if inst.TickSize, err = parseFloat(col("tick_size")); err != nil {
		return models.CatalogInstrument{}, fmt.Errorf("tick_size: %w", err)
	}
	if v := col("lot_size"); v != "" {
		if inst.LotSize, err = strconv.ParseInt(v, 10, 64); err != nil {
			return models.CatalogInstrument{}, fmt.Errorf("lot_size: %w", err)
		}
	}
	return inst, nil
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
