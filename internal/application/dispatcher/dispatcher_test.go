package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/incident-intake/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func newEvent() *event.Event {
	return event.NewEvent(event.TypeStatusChanged, "inc-1", "u-1", nil)
}

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string

	d.SubscribeNamed(event.TypeStatusChanged, "first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	})
	d.SubscribeNamed(event.TypeStatusChanged, "second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	})
	d.Subscribe(event.TypeIncidentCreated, func(ctx context.Context, evt *event.Event) error {
		order = append(order, "other")
		return nil
	})

	require.NoError(t, d.Dispatch(context.Background(), newEvent()))
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, []string{"first", "second"}, d.Handlers(event.TypeStatusChanged))
}

func TestDispatch_StopsOnError(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	boom := errors.New("boom")
	called := false

	d.Subscribe(event.TypeStatusChanged, func(ctx context.Context, evt *event.Event) error {
		return boom
	})
	d.Subscribe(event.TypeStatusChanged, func(ctx context.Context, evt *event.Event) error {
		called = true
		return nil
	})

	err := d.Dispatch(context.Background(), newEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
	assert.Equal(t, 1, logger.ErrorCount())
}

func TestDispatch_RecoversPanic(t *testing.T) {
	d := NewDispatcher()
	d.Subscribe(event.TypeStatusChanged, func(ctx context.Context, evt *event.Event) error {
		panic("handler exploded")
	})

	err := d.Dispatch(context.Background(), newEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler exploded")
}

func TestDispatchAsync_SurvivesCancelledContext(t *testing.T) {
	d := NewDispatcher()
	var calls atomic.Int32
	var sawCancel atomic.Bool

	d.Subscribe(event.TypeStatusChanged, func(ctx context.Context, evt *event.Event) error {
		if ctx.Err() != nil {
			sawCancel.Store(true)
		}
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.DispatchAsync(ctx, newEvent())

	require.NoError(t, d.Close())
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, sawCancel.Load())
}

func TestDispatchAsync_ErrorsAreLogged(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger), WithHandlerTimeout(time.Second))
	d.Subscribe(event.TypeStatusChanged, func(ctx context.Context, evt *event.Event) error {
		return errors.New("delivery failed")
	})

	d.DispatchAsync(context.Background(), newEvent())
	require.NoError(t, d.Close())
	assert.Equal(t, 1, logger.ErrorCount())
}

func TestClose(t *testing.T) {
	d := NewDispatcher()
	require.NoError(t, d.Close())

	assert.Error(t, d.Close())
	assert.ErrorIs(t, d.Dispatch(context.Background(), newEvent()), ErrClosed)

	// no panic and no handler run after close
	d.DispatchAsync(context.Background(), newEvent())
}

func TestDispatchAsync_RacingCloseWaitsForAcceptedEvents(t *testing.T) {
	for round := 0; round < 20; round++ {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))

		var (
			closeReturned atomic.Bool
			ran           atomic.Int32
			late          atomic.Int32
		)
		d.Subscribe(event.TypeStatusChanged, func(ctx context.Context, evt *event.Event) error {
			time.Sleep(time.Millisecond)
			if closeReturned.Load() {
				late.Add(1)
			}
			ran.Add(1)
			return nil
		})

		const publishers = 16
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < publishers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				d.DispatchAsync(context.Background(), newEvent())
			}()
		}
		close(start)
		require.NoError(t, d.Close())
		closeReturned.Store(true)
		wg.Wait()
		time.Sleep(5 * time.Millisecond)

		assert.Zero(t, late.Load(), "a handler ran after Close returned")
		assert.Equal(t, publishers, int(ran.Load())+logger.ErrorCount(), "every event either ran or was refused")
	}
}
