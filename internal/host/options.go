package host

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Option represents a functional option for configuring Host.
type Option func(*Host)

// WithLogger sets a logger for the Host instance.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithRetryPolicy sets how transient step failures are retried.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(h *Host) {
		h.policy = policy
	}
}

// WithCompensationTimeout bounds the work done after the caller cancelled a transfer.
func WithCompensationTimeout(timeout time.Duration) Option {
	return func(h *Host) {
		h.compensationTimeout = timeout
	}
}

// WithMeter sets the meter used to count terminal outcomes.
func WithMeter(meter metric.Meter) Option {
	return func(h *Host) {
		if meter != nil {
			h.meter = meter
		}
	}
}

// withClock replaces time.Now, for tests.
func withClock(now func() time.Time) Option {
	return func(h *Host) {
		if now != nil {
			h.now = now
		}
	}
}
