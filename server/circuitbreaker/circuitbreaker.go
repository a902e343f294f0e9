// Package circuitbreaker guards the completion provider. It wraps
// sony/gobreaker and exports its state to Prometheus. A rejected call is a
// plain failure to the caller; nothing is queued or retried.
package circuitbreaker

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config holds configuration for the circuit breaker
type Config struct {
	FailureThreshold uint32        // Consecutive failures before opening the circuit
	Interval         time.Duration // Closed-state period after which counts are cleared
	ResetTimeout     time.Duration // Time to wait in the open state before probing
	HalfOpenRequests uint32        // Number of trial requests allowed in half-open state
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger

	stateGauge    prometheus.Gauge
	failuresCount prometheus.Counter
	tripsTotal    prometheus.Counter
}

// NewCircuitBreaker creates a new circuit breaker. Metrics are registered
// with registry when it is non-nil.
func NewCircuitBreaker(name string, config Config, logger *zap.Logger, registry prometheus.Registerer) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:   name,
		logger: logger,
	}

	labels := prometheus.Labels{"name": name}
	cb.stateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "zooly_circuit_breaker_state",
		Help:        "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
		ConstLabels: labels,
	})
	cb.failuresCount = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "zooly_circuit_breaker_failures_total",
		Help:        "Total number of failures recorded by the circuit breaker",
		ConstLabels: labels,
	})
	cb.tripsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "zooly_circuit_breaker_trips_total",
		Help:        "Total number of times the circuit breaker has tripped",
		ConstLabels: labels,
	})

	if registry != nil {
		registry.MustRegister(cb.stateGauge, cb.failuresCount, cb.tripsTotal)
	}

	threshold := config.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}

	cb.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: config.HalfOpenRequests,
		Interval:    config.Interval,
		Timeout:     config.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: cb.onStateChange,
	})

	return cb
}

// Execute runs f if the breaker allows it. Rejections are reported as
// ErrCircuitOpen.
func (cb *CircuitBreaker) Execute(f func() error) error {
	_, err := cb.breaker.Execute(func() (interface{}, error) {
		return nil, f()
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return ErrCircuitOpen
	case err != nil:
		cb.failuresCount.Inc()
	}
	return err
}

// onStateChange runs under gobreaker's lock; it must not call back into the breaker.
func (cb *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	cb.stateGauge.Set(float64(to))
	if to == gobreaker.StateOpen {
		cb.tripsTotal.Inc()
		cb.logger.Warn("Circuit breaker tripped",
			zap.String("name", name),
			zap.String("from", from.String()),
		)
		return
	}
	cb.logger.Info("Circuit breaker state changed",
		zap.String("name", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Name returns the breaker name used in metrics and logs.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}
