// Package export renders registry snapshots as tabular files.
package export

import (
	"strconv"
	"time"

	"live-tick-excel/internal/models"
	"live-tick-excel/internal/registry"
)

// TimestampLayout renders tick times with microsecond precision.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// Header is the fixed column order of every export.
var Header = []string{
	"Instrument_Name", "Instrument_Token",
	"Last_Price", "Timestamp", "OHLC_Open", "OHLC_High", "OHLC_Low", "OHLC_Close",
	"Volume", "Average_Price", "OI", "Buy_Quantity", "Sell_Quantity",
}

// Source supplies a point-in-time copy of the registry.
type Source interface {
	Snapshot() []registry.Entry
}

type Reader struct {
	src Source
	loc *time.Location
}

// NewReader renders timestamps in loc; nil means time.Local.
func NewReader(src Source, loc *time.Location) *Reader {
	if loc == nil {
		loc = time.Local
	}
	return &Reader{src: src, loc: loc}
}

// Rows returns the header followed by one row per registered instrument,
// all taken from a single snapshot.
func (r *Reader) Rows() [][]string {
	snap := r.src.Snapshot()

	rows := make([][]string, 0, len(snap)+1)
	rows = append(rows, append([]string(nil), Header...))
	for _, e := range snap {
		rows = append(rows, r.row(e))
	}
	return rows
}

func (r *Reader) row(e registry.Entry) []string {
	rec := e.Record
	return []string{
		e.Instrument.Name,
		strconv.FormatUint(uint64(e.Instrument.Token), 10),
		price(rec.LastPrice),
		r.timestamp(rec.Timestamp),
		price(rec.Open),
		price(rec.High),
		price(rec.Low),
		price(rec.Close),
		integer(rec.Volume),
		price(rec.AveragePrice),
		integer(rec.OI),
		integer(rec.BuyQuantity),
		integer(rec.SellQuantity),
	}
}

func price(v models.Optional[float64]) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Value, 'f', 2, 64)
}

func integer(v models.Optional[int64]) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Value, 10)
}

func (r *Reader) timestamp(v models.Optional[time.Time]) string {
	if !v.Valid {
		return ""
	}
	return v.Value.In(r.loc).Format(TimestampLayout)
}
