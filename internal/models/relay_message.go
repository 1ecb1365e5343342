package models

// RelayOHLC mirrors the "ohlc" object of a relayed tick.
type RelayOHLC struct {
	Open  *float64 `json:"open,omitempty"`
	High  *float64 `json:"high,omitempty"`
	Low   *float64 `json:"low,omitempty"`
	Close *float64 `json:"close,omitempty"`
}

// RelayTick is a tick as published on the relay topic. Missing keys mean
// the field was not observed.
type RelayTick struct {
	InstrumentToken uint32     `json:"instrument_token"`
	Timestamp       *int64     `json:"exchange_timestamp,omitempty"` // Unix seconds
	LastPrice       *float64   `json:"last_price,omitempty"`
	OHLC            *RelayOHLC `json:"ohlc,omitempty"`
	Volume          *int64     `json:"volume_traded,omitempty"`
	AveragePrice    *float64   `json:"average_traded_price,omitempty"`
	OI              *int64     `json:"oi,omitempty"`
	BuyQuantity     *int64     `json:"total_buy_quantity,omitempty"`
	SellQuantity    *int64     `json:"total_sell_quantity,omitempty"`
}

// RelayMessage is one relayed batch of ticks.
type RelayMessage struct {
	Type  string      `json:"type"`
	Ticks []RelayTick `json:"ticks"`
}
