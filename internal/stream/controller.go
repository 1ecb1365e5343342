package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"live-tick-excel/internal/models"

	"go.uber.org/zap"
)

var (
	ErrEmptyRegistry  = errors.New("no instruments registered")
	ErrAlreadyStarted = errors.New("stream controller already started")
)

// State is the connection state of the controller.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Registry is what the controller needs from the instrument registry.
type Registry interface {
	Seal()
	Len() int
	Tokens() []uint32
}

// Sink applies tick batches.
type Sink interface {
	Apply(batch []models.Tick) (applied, dropped int)
}

// Status is a point-in-time view of the stream for health reporting.
type Status struct {
	State            string    `json:"state"`
	Connected        bool      `json:"connected"`
	ConnectedAt      time.Time `json:"connected_at,omitempty"`
	Subscribed       int       `json:"subscribed"`
	ReconnectAttempt int       `json:"reconnect_attempt"`
	Exhausted        bool      `json:"exhausted"`
	DroppedOffline   uint64    `json:"dropped_while_disconnected"`
	LastError        string    `json:"last_error,omitempty"`
}

var _ Handler = (*Controller)(nil)

// Controller drives the transport and is the only writer to the registry.
type Controller struct {
	reg       Registry
	sink      Sink
	transport Transport
	mode      Mode
	logger    *zap.Logger

	state          atomic.Int32
	started        atomic.Bool
	droppedOffline atomic.Uint64

	mu          sync.Mutex
	connectedAt time.Time
	subscribed  int
	attempt     int
	exhausted   bool
	lastErr     error

	done chan struct{}
	err  error
}

func NewController(reg Registry, sink Sink, transport Transport, mode Mode, logger *zap.Logger) *Controller {
	if mode == "" {
		mode = ModeFull
	}
	return &Controller{
		reg:       reg,
		sink:      sink,
		transport: transport,
		mode:      mode,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start seals the registry and runs the transport on its own goroutine.
// It returns immediately; use Done and Err to observe termination.
func (c *Controller) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	c.reg.Seal()
	if c.reg.Len() == 0 {
		c.started.Store(false)
		return ErrEmptyRegistry
	}

	c.setState(Connecting)
	go c.run(ctx)
	return nil
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)

	err := c.transport.Serve(ctx, c)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	c.setState(Disconnected)

	c.mu.Lock()
	c.err = err
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("tick stream stopped; serving last known snapshot", zap.Error(err))
		return
	}
	c.logger.Info("tick stream stopped")
}

// Done is closed once the transport has returned.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Err is the transport's terminal error, valid after Done is closed.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) Status() Status {
	st := c.State()

	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		State:            st.String(),
		Connected:        st == Connected,
		Subscribed:       c.subscribed,
		ReconnectAttempt: c.attempt,
		Exhausted:        c.exhausted,
		DroppedOffline:   c.droppedOffline.Load(),
	}
	if st == Connected {
		s.ConnectedAt = c.connectedAt
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

func (c *Controller) setState(next State) {
	prev := State(c.state.Swap(int32(next)))
	if prev != next {
		c.logger.Info("stream state changed",
			zap.Stringer("from", prev), zap.Stringer("to", next))
	}
}

// OnConnect subscribes every registered token in the configured mode.
// Subscriptions are not assumed to survive a reconnect.
func (c *Controller) OnConnect(ctx context.Context, conn Conn) error {
	c.setState(Connected)
	tokens := c.reg.Tokens()

	err := conn.Subscribe(tokens)
	if err == nil {
		err = conn.SetMode(c.mode, tokens)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err
		c.subscribed = 0
		c.state.Store(int32(Reconnecting))
		c.logger.Error("subscribe failed; will retry on reconnect",
			zap.Int("tokens", len(tokens)), zap.Error(err))
		return fmt.Errorf("subscribe %d tokens: %w", len(tokens), err)
	}

	c.connectedAt = time.Now()
	c.subscribed = len(tokens)
	c.attempt = 0
	c.logger.Info("subscribed instruments",
		zap.Int("tokens", len(tokens)), zap.String("mode", string(c.mode)))
	return nil
}

// OnTicks forwards batch to the sink. Ticks arriving while not connected are
// dropped since no subscription is confirmed for them.
func (c *Controller) OnTicks(batch []models.Tick) {
	if c.State() != Connected {
		c.droppedOffline.Add(uint64(len(batch)))
		c.logger.Warn("dropped ticks received while not connected",
			zap.Int("ticks", len(batch)), zap.Stringer("state", c.State()))
		return
	}
	c.sink.Apply(batch)
}

func (c *Controller) OnClose(code int, reason string) {
	c.logger.Warn("stream closed", zap.Int("code", code), zap.String("reason", reason))
	c.leaveConnected()
}

func (c *Controller) OnError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()

	c.logger.Error("stream error", zap.Error(err))
	c.leaveConnected()
}

func (c *Controller) OnReconnect(attempt int) {
	c.mu.Lock()
	c.attempt = attempt
	c.mu.Unlock()

	c.setState(Reconnecting)
	c.logger.Warn("reconnecting to stream", zap.Int("attempt", attempt))
}

// OnNoReconnect marks the stream as terminally down. The process keeps
// running and exports keep serving the last known values.
func (c *Controller) OnNoReconnect() {
	c.mu.Lock()
	c.exhausted = true
	c.mu.Unlock()

	c.setState(Disconnected)
	c.logger.Error("stream reconnection exhausted; no further attempts")
}

func (c *Controller) leaveConnected() {
	if c.state.CompareAndSwap(int32(Connected), int32(Reconnecting)) {
		c.logger.Info("stream state changed",
			zap.Stringer("from", Connected), zap.Stringer("to", Reconnecting))
	}
}
