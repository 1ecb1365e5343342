package kafkafeed

import (
	"encoding/json"
	"fmt"
	"time"

	"live-tick-excel/internal/models"
)

// MessageTypeTicks marks a relay message that carries tick data. Anything
// else (heartbeats, control messages) is skipped.
const MessageTypeTicks = "ticks"

// Decode turns a relay message into ticks. It returns nil, nil for messages
// that carry no ticks.
func Decode(value []byte) ([]models.Tick, error) {
	var msg models.RelayMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	if msg.Type != MessageTypeTicks || len(msg.Ticks) == 0 {
		return nil, nil
	}

	ticks := make([]models.Tick, 0, len(msg.Ticks))
	for _, rt := range msg.Ticks {
		ticks = append(ticks, models.Tick{
			Token:  rt.InstrumentToken,
			Fields: fieldsOf(rt),
		})
	}
	return ticks, nil
}

func fieldsOf(rt models.RelayTick) models.TickFields {
	f := models.TickFields{
		LastPrice:    opt(rt.LastPrice),
		Volume:       opt(rt.Volume),
		AveragePrice: opt(rt.AveragePrice),
		OI:           opt(rt.OI),
		BuyQuantity:  opt(rt.BuyQuantity),
		SellQuantity: opt(rt.SellQuantity),
	}
	if rt.Timestamp != nil {
		f.Timestamp = models.Some(time.Unix(*rt.Timestamp, 0))
	}
	if rt.OHLC != nil {
		f.Open = opt(rt.OHLC.Open)
		f.High = opt(rt.OHLC.High)
		f.Low = opt(rt.OHLC.Low)
		f.Close = opt(rt.OHLC.Close)
	}
	return f
}

func opt[T any](p *T) models.Optional[T] {
	if p == nil {
		return models.Optional[T]{}
	}
	return models.Some(*p)
}

// ltpOnly strips everything but the last price, as the ticker does for
// tokens subscribed in ltp mode.
func ltpOnly(f models.TickFields) models.TickFields {
	return models.TickFields{LastPrice: f.LastPrice}
}
