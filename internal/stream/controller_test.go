package stream

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"live-tick-excel/internal/ingest"
	"live-tick-excel/internal/models"
	"live-tick-excel/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptTransport runs script as its Serve body.
type scriptTransport struct {
	script func(ctx context.Context, h Handler) error
}

func (s scriptTransport) Serve(ctx context.Context, h Handler) error {
	return s.script(ctx, h)
}

type recordedCall struct {
	op     string
	mode   Mode
	tokens []uint32
}

type fakeConn struct {
	mu           sync.Mutex
	calls        []recordedCall
	subscribeErr error
}

func (f *fakeConn) Subscribe(tokens []uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{op: "subscribe", tokens: tokens})
	return f.subscribeErr
}

func (f *fakeConn) SetMode(mode Mode, tokens []uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{op: "mode", mode: mode, tokens: tokens})
	return nil
}

func (f *fakeConn) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func newTestController(t *testing.T, script func(ctx context.Context, h Handler) error) (*Controller, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Register(256265, "NIFTY 50"))
	require.NoError(t, reg.Register(408065, "INFY"))
	sink, err := ingest.NewSink(reg, zap.NewNop(), 1)
	require.NoError(t, err)
	return NewController(reg, sink, scriptTransport{script: script}, ModeFull, zap.NewNop()), reg
}

func waitDone(t *testing.T, c *Controller) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not stop")
	}
}

func tick(token uint32, price float64) models.Tick {
	return models.Tick{Token: token, Fields: models.TickFields{LastPrice: models.Some(price)}}
}

func TestControllerStart(t *testing.T) {
	t.Run("empty registry is refused", func(t *testing.T) {
		reg := registry.New()
		c := NewController(reg, nil, scriptTransport{}, ModeFull, zap.NewNop())

		err := c.Start(context.Background())

		assert.ErrorIs(t, err, ErrEmptyRegistry)
		assert.Equal(t, Disconnected, c.State())
	})

	t.Run("start seals the registry and cannot run twice", func(t *testing.T) {
		c, reg := newTestController(t, func(ctx context.Context, h Handler) error {
			<-ctx.Done()
			return ctx.Err()
		})
		ctx, cancel := context.WithCancel(context.Background())

		require.NoError(t, c.Start(ctx))
		assert.ErrorIs(t, c.Start(ctx), ErrAlreadyStarted)
		assert.ErrorIs(t, reg.Register(1, "late"), registry.ErrSealed)
		assert.Equal(t, Connecting, c.State())

		cancel()
		waitDone(t, c)
		assert.NoError(t, c.Err())
		assert.Equal(t, Disconnected, c.State())
	})
}

func TestControllerReconnectResubscribes(t *testing.T) {
	conn1, conn2 := &fakeConn{}, &fakeConn{}
	var states []State
	var stateMu sync.Mutex

	var c *Controller
	record := func() {
		stateMu.Lock()
		states = append(states, c.State())
		stateMu.Unlock()
	}

	c, reg := newTestController(t, func(ctx context.Context, h Handler) error {
		assert.NoError(t, h.OnConnect(ctx, conn1))
		record()
		h.OnTicks([]models.Tick{tick(256265, 19500.1)})

		h.OnError(errors.New("connection reset"))
		record()
		h.OnReconnect(1)
		record()
		// Not subscribed on any live connection: must be dropped.
		h.OnTicks([]models.Tick{tick(408065, 1500)})

		assert.NoError(t, h.OnConnect(ctx, conn2))
		record()
		h.OnTicks([]models.Tick{tick(256265, 19501.25)})

		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))

	require.Eventually(t, func() bool {
		return reg.Snapshot()[0].Record.LastPrice.Value == 19501.25
	}, 2*time.Second, 5*time.Millisecond)

	status := c.Status()
	assert.True(t, status.Connected)
	assert.Equal(t, 2, status.Subscribed)
	assert.Equal(t, uint64(1), status.DroppedOffline)
	assert.Equal(t, "connection reset", status.LastError)
	assert.Equal(t, 0, status.ReconnectAttempt)

	expected := []recordedCall{
		{op: "subscribe", tokens: []uint32{256265, 408065}},
		{op: "mode", mode: ModeFull, tokens: []uint32{256265, 408065}},
	}
	assert.Equal(t, expected, conn1.Calls())
	assert.Equal(t, expected, conn2.Calls())
	assert.False(t, reg.Snapshot()[1].Record.LastPrice.Valid)

	cancel()
	waitDone(t, c)

	stateMu.Lock()
	defer stateMu.Unlock()
	assert.Equal(t, []State{Connected, Reconnecting, Reconnecting, Connected}, states)
}

func TestControllerSubscribeFailure(t *testing.T) {
	failing := &fakeConn{subscribeErr: errors.New("too many tokens")}
	ok := &fakeConn{}

	var firstErr error
	c, _ := newTestController(t, func(ctx context.Context, h Handler) error {
		firstErr = h.OnConnect(ctx, failing)
		h.OnReconnect(1)
		if err := h.OnConnect(ctx, ok); err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))
	require.Eventually(t, func() bool { return c.State() == Connected }, 2*time.Second, 5*time.Millisecond)

	assert.Error(t, firstErr)
	assert.Len(t, failing.Calls(), 1)
	assert.Len(t, ok.Calls(), 2)

	cancel()
	waitDone(t, c)
}

func TestControllerReconnectExhausted(t *testing.T) {
	c, reg := newTestController(t, func(ctx context.Context, h Handler) error {
		assert.NoError(t, h.OnConnect(ctx, &fakeConn{}))
		h.OnTicks([]models.Tick{tick(408065, 1500.5)})
		h.OnClose(1006, "abnormal closure")
		h.OnReconnect(1)
		h.OnReconnect(2)
		h.OnNoReconnect()
		return ErrReconnectExhausted
	})

	require.NoError(t, c.Start(context.Background()))
	waitDone(t, c)

	assert.ErrorIs(t, c.Err(), ErrReconnectExhausted)
	status := c.Status()
	assert.Equal(t, "disconnected", status.State)
	assert.True(t, status.Exhausted)
	assert.False(t, status.Connected)
	assert.Equal(t, 2, status.ReconnectAttempt)
	// the last known value stays exportable
	assert.Equal(t, 1500.5, reg.Snapshot()[1].Record.LastPrice.Value)
}

func TestBackoff(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 10 * time.Second, MaxRetries: 3}

	assert.Equal(t, time.Second, b.Delay(1))
	assert.Equal(t, 2*time.Second, b.Delay(2))
	assert.Equal(t, 8*time.Second, b.Delay(4))
	assert.Equal(t, 10*time.Second, b.Delay(5))
	assert.Equal(t, 10*time.Second, b.Delay(60))
	assert.False(t, b.Exhausted(3))
	assert.True(t, b.Exhausted(4))
	assert.False(t, Backoff{}.Exhausted(1000))

	uncapped := Backoff{Initial: time.Second}
	for _, attempt := range []int{13, 30, 35, 64, 70, 1000} {
		assert.Equal(t, MaxDelay, uncapped.Delay(attempt), "attempt %d", attempt)
	}
	assert.Equal(t, 1024*time.Second, uncapped.Delay(11))
	huge := Backoff{Initial: time.Second, Max: time.Duration(math.MaxInt64)}
	assert.Positive(t, huge.Delay(200))
	assert.Equal(t, 3*time.Second, Backoff{Initial: 5 * time.Second, Max: 3 * time.Second}.Delay(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Backoff{Initial: time.Hour}.Wait(ctx, 1), context.Canceled)
}
