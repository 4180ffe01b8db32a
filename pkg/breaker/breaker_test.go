package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      100 * time.Millisecond,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
}

var errBoom = errors.New("boom")

func fail() (int, error)    { return 0, errBoom }
func succeed() (int, error) { return 7, nil }

func TestBreaker_ClosedPassesResult(t *testing.T) {
	b := New[int](testConfig("test-closed"), testLogger())

	v, err := b.Execute(succeed)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, "test-closed", b.Name())
}

func TestBreaker_ReturnsCallErrorUnchanged(t *testing.T) {
	b := New[int](testConfig("test-passthrough"), testLogger())

	_, err := b.Execute(fail)
	assert.ErrorIs(t, err, errBoom)
	assert.False(t, IsOpen(err))
}

func TestBreaker_TripsOnFailures(t *testing.T) {
	b := New[int](testConfig("test-trip"), testLogger())

	for i := 0; i < 3; i++ {
		_, _ = b.Execute(fail)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())
	assert.Equal(t, 2.0, testutil.ToFloat64(stateGauge.WithLabelValues("test-trip")))

	calls := 0
	_, err := b.Execute(func() (int, error) { calls++; return 1, nil })
	require.Error(t, err)
	assert.True(t, IsOpen(err))
	assert.Zero(t, calls, "open breaker must not invoke the call")
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b := New[int](testConfig("test-recovery"), testLogger())

	for i := 0; i < 3; i++ {
		_, _ = b.Execute(fail)
	}
	require.Equal(t, gobreaker.StateOpen, b.State())

	time.Sleep(150 * time.Millisecond)

	v, err := b.Execute(succeed)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, 0.0, testutil.ToFloat64(stateGauge.WithLabelValues("test-recovery")))
}

func TestBreaker_CanceledContextDoesNotTrip(t *testing.T) {
	b := New[int](testConfig("test-canceled"), testLogger())

	for i := 0; i < 5; i++ {
		_, err := b.Execute(func() (int, error) {
			return 0, fmt.Errorf("query: %w", context.Canceled)
		})
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreaker_BelowMinRequestsStaysClosed(t *testing.T) {
	b := New[int](testConfig("test-min"), testLogger())

	_, _ = b.Execute(fail)
	_, _ = b.Execute(fail)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestIsOpen(t *testing.T) {
	assert.True(t, IsOpen(gobreaker.ErrOpenState))
	assert.True(t, IsOpen(fmt.Errorf("wrapped: %w", gobreaker.ErrTooManyRequests)))
	assert.False(t, IsOpen(errBoom))
	assert.False(t, IsOpen(nil))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("catalog-db")
	assert.Equal(t, "catalog-db", cfg.Name)
	assert.Equal(t, 0.5, cfg.FailureRatio)
	assert.Equal(t, uint32(5), cfg.MinRequests)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}
