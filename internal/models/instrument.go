package models

import "time"

// Instrument is a watch-list entry bound to a stream token.
type Instrument struct {
	Token uint32 `json:"instrument_token"`
	Name  string `json:"instrument_name"`
}

// CatalogInstrument is one row of the broker's instrument master.
type CatalogInstrument struct {
	InstrumentToken uint32    `bson:"instrument_token" json:"instrument_token"`
	ExchangeToken   uint32    `bson:"exchange_token" json:"exchange_token"`
	TradingSymbol   string    `bson:"tradingsymbol" json:"tradingsymbol"`
	Name            string    `bson:"name" json:"name"`
	Expiry          time.Time `bson:"expiry,omitempty" json:"expiry,omitempty"`
	Strike          float64   `bson:"strike" json:"strike"`
	TickSize        float64   `bson:"tick_size" json:"tick_size"`
	LotSize         int64     `bson:"lot_size" json:"lot_size"`
	InstrumentType  string    `bson:"instrument_type" json:"instrument_type"`
	Segment         string    `bson:"segment" json:"segment"`
	Exchange        string    `bson:"exchange" json:"exchange"`
}
