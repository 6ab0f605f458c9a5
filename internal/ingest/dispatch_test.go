package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDispatcherRunsTasks tests that every spawned task executes
func TestDispatcherRunsTasks(t *testing.T) {
	d := NewDispatcher(slog.New(slog.DiscardHandler))

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		d.Go("count", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}

	require.NoError(t, d.Drain(context.Background()))
	assert.Equal(t, int32(5), ran.Load())
}

// TestDispatcherDrainWaitsForInflight tests that Drain returns only after
// slow tasks finish
func TestDispatcherDrainWaitsForInflight(t *testing.T) {
	d := NewDispatcher(slog.New(slog.DiscardHandler))

	var finished atomic.Bool
	d.Go("slow", func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	require.NoError(t, d.Drain(context.Background()))
	assert.True(t, finished.Load())
}

// TestDispatcherDrainHonorsContext tests that a stuck task does not hold up
// a bounded Drain
func TestDispatcherDrainHonorsContext(t *testing.T) {
	d := NewDispatcher(slog.New(slog.DiscardHandler))

	release := make(chan struct{})
	d.Go("stuck", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.Drain(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, d.Drain(context.Background()))
}

// TestDispatcherSwallowsTaskErrors tests that a failing task does not
// affect later ones
func TestDispatcherSwallowsTaskErrors(t *testing.T) {
	d := NewDispatcher(slog.New(slog.DiscardHandler))

	var ran atomic.Bool
	d.Go("fails", func(ctx context.Context) error {
		return fmt.Errorf("boom")
	})
	d.Go("succeeds", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})

	require.NoError(t, d.Drain(context.Background()))
	assert.True(t, ran.Load())
}
