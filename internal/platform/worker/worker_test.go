package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var steps atomic.Int32

	err := Loop(ctx, Config{
		Name:         "test",
		PollInterval: time.Millisecond,
		Process: func(context.Context) error {
			if steps.Add(1) == 3 {
				cancel()
			}

			return nil
		},
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(3), steps.Load())
}

func TestLoopOnError(t *testing.T) {
	boom := errors.New("boom")

	var seen []error

	err := Loop(context.Background(), Config{
		Name:    "test",
		Process: func(context.Context) error { return boom },
		OnError: func(err error) bool {
			seen = append(seen, err)
			return len(seen) < 2
		},
	})

	require.ErrorIs(t, err, boom)
	assert.Len(t, seen, 2)
}

func TestLoopRecoversPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var steps atomic.Int32

	err := Loop(ctx, Config{
		Name: "test",
		Process: func(context.Context) error {
			if steps.Add(1) == 1 {
				panic("bad item")
			}

			cancel()

			return nil
		},
		OnError: func(err error) bool {
			assert.Contains(t, err.Error(), "panic: bad item")
			return true
		},
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(2), steps.Load())
}

func TestRunDueTasks(t *testing.T) {
	var runs int

	tasks := []PeriodicTask{
		{Name: "every-minute", Interval: time.Minute, Run: func(context.Context) { runs++ }},
		{Name: "disabled", Interval: 0, Run: func(context.Context) { t.Fatal("disabled task ran") }},
	}
	logger := loggerOrNop(nil)
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	runDueTasks(context.Background(), tasks, start, logger)
	runDueTasks(context.Background(), tasks, start.Add(30*time.Second), logger)
	runDueTasks(context.Background(), tasks, start.Add(time.Minute), logger)

	assert.Equal(t, 2, runs)
}

func TestTickerLoop(t *testing.T) {
	t.Run("runs on start and on ticks", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		var ticks atomic.Int32

		err := TickerLoop(ctx, TickerConfig{
			Name:       "test",
			Interval:   time.Millisecond,
			RunOnStart: true,
			OnTick: func(context.Context) {
				if ticks.Add(1) == 3 {
					cancel()
				}
			},
		})

		require.ErrorIs(t, err, context.Canceled)
		assert.GreaterOrEqual(t, ticks.Load(), int32(3))
	})

	t.Run("rejects zero interval", func(t *testing.T) {
		err := TickerLoop(context.Background(), TickerConfig{Name: "test"})

		assert.Error(t, err)
	})
}

func TestWait(t *testing.T) {
	require.NoError(t, Wait(context.Background(), 0))
	require.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
}
