// Package stream owns the lifecycle of the live tick connection and feeds
// inbound batches to the ingestion sink.
package stream

import (
	"context"

	"live-tick-excel/internal/models"
)

// Mode is the detail level requested for subscribed tokens.
type Mode string

const (
	ModeLTP   Mode = "ltp"
	ModeQuote Mode = "quote"
	ModeFull  Mode = "full"
)

// Conn is the live connection handed to Handler.OnConnect.
type Conn interface {
	Subscribe(tokens []uint32) error
	SetMode(mode Mode, tokens []uint32) error
}

// Handler receives transport events. All calls for one Serve come from a
// single goroutine.
type Handler interface {
	// OnConnect runs after every successful handshake. A non-nil error makes
	// the transport drop the connection and reconnect.
	OnConnect(ctx context.Context, conn Conn) error
	OnTicks(batch []models.Tick)
	OnClose(code int, reason string)
	OnError(err error)
	OnReconnect(attempt int)
	OnNoReconnect()
}

// Transport delivers ticks and lifecycle events until ctx is cancelled or
// reconnection is exhausted.
type Transport interface {
	Serve(ctx context.Context, h Handler) error
}
