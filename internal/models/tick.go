package models

import "time"

// TickFields is the last known observation for one instrument.
// Every field is optional; a field that was not observed is absent, not zero.
type TickFields struct {
	Timestamp    Optional[time.Time]
	LastPrice    Optional[float64]
	Open         Optional[float64]
	High         Optional[float64]
	Low          Optional[float64]
	Close        Optional[float64]
	Volume       Optional[int64]
	AveragePrice Optional[float64]
	OI           Optional[int64]
	BuyQuantity  Optional[int64]
	SellQuantity Optional[int64]
}

// Merge returns f with every absent field taken from prev.
func (f TickFields) Merge(prev TickFields) TickFields {
	f.Timestamp = orPrev(f.Timestamp, prev.Timestamp)
	f.LastPrice = orPrev(f.LastPrice, prev.LastPrice)
	f.Open = orPrev(f.Open, prev.Open)
	f.High = orPrev(f.High, prev.High)
	f.Low = orPrev(f.Low, prev.Low)
	f.Close = orPrev(f.Close, prev.Close)
	f.Volume = orPrev(f.Volume, prev.Volume)
	f.AveragePrice = orPrev(f.AveragePrice, prev.AveragePrice)
	f.OI = orPrev(f.OI, prev.OI)
	f.BuyQuantity = orPrev(f.BuyQuantity, prev.BuyQuantity)
	f.SellQuantity = orPrev(f.SellQuantity, prev.SellQuantity)
	return f
}

func orPrev[T any](cur, prev Optional[T]) Optional[T] {
	if cur.Valid {
		return cur
	}
	return prev
}

// Tick is one inbound market-data update for a single instrument.
type Tick struct {
	Token  uint32
	Fields TickFields
}
