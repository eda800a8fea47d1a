// Package worker holds the background loops of the service. Currently that
// is the reservation expiry monitor.
package worker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/libris-io/libris/internal/shell"
	"github.com/libris-io/libris/libstore"
)

const defaultSweepInterval = time.Minute

// Store defines the persistence operations the ExpiryMonitor needs.
type Store interface {
	ExpirePendingReservations(ctx context.Context, now time.Time) (int64, error)
}

// ExpiryMonitor periodically cancels pending reservations whose expiration
// date has passed. The sweep is one guarded statement in the store, so any
// number of concurrent monitor instances cancel each reservation only once.
type ExpiryMonitor struct {
	store        Store
	logger       libstore.ContextualLogger
	expiredTotal prometheus.Counter
	clock        shell.Clock
	interval     time.Duration
}

// Option configures an ExpiryMonitor.
type Option func(*ExpiryMonitor)

// WithInterval sets the sweep interval.
func WithInterval(interval time.Duration) Option {
	return func(m *ExpiryMonitor) {
		if interval > 0 {
			m.interval = interval
		}
	}
}

// WithLogger sets the sweep logger.
func WithLogger(logger libstore.ContextualLogger) Option {
	return func(m *ExpiryMonitor) {
		m.logger = logger
	}
}

// WithExpiredCounter sets the counter incremented per expired reservation.
func WithExpiredCounter(counter prometheus.Counter) Option {
	return func(m *ExpiryMonitor) {
		m.expiredTotal = counter
	}
}

// WithClock overrides the clock, for tests.
func WithClock(clock shell.Clock) Option {
	return func(m *ExpiryMonitor) {
		m.clock = clock
	}
}

// NewExpiryMonitor creates a monitor with optional configuration.
func NewExpiryMonitor(store Store, opts ...Option) *ExpiryMonitor {
	monitor := &ExpiryMonitor{
		store:    store,
		clock:    shell.SystemClock,
		interval: defaultSweepInterval,
	}

	for _, opt := range opts {
		opt(monitor)
	}

	return monitor
}

// Run sweeps once immediately and then on every tick until the context is
// canceled. Blocking; start it in its own goroutine.
func (m *ExpiryMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.SweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SweepOnce(ctx)
		}
	}
}

// SweepOnce cancels all overdue pending reservations and returns how many
// were affected.
func (m *ExpiryMonitor) SweepOnce(ctx context.Context) int64 {
	start := time.Now()

	expired, err := m.store.ExpirePendingReservations(ctx, m.clock())
	if err != nil {
		if m.logger != nil {
			m.logger.ErrorContext(ctx, "reservation expiry sweep failed", "error", err.Error())
		}

		return 0
	}

	if expired > 0 && m.expiredTotal != nil {
		m.expiredTotal.Add(float64(expired))
	}

	if expired > 0 && m.logger != nil {
		m.logger.InfoContext(ctx, "reservation expiry sweep",
			"expired", expired, "duration_ms", time.Since(start).Milliseconds())
	}

	return expired
}
