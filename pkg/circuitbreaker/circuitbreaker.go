// Package circuitbreaker holds the breaker settings shared by outbound clients.
package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type Config struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
	// Ignore reports errors that should count as successes, for example a
	// 404 from an otherwise healthy backend.
	Ignore func(err error) bool
}

func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.6,
		MinRequests:  5,
	}
}

// New returns a breaker that opens once at least MinRequests calls were made
// in the interval and the failure ratio reaches FailureRatio.
func New[T any](cfg Config, logger *zap.Logger) *gobreaker.CircuitBreaker[T] {
	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	if cfg.Ignore != nil {
		ignore := cfg.Ignore
		st.IsSuccessful = func(err error) bool {
			return err == nil || ignore(err)
		}
	}
	return gobreaker.NewCircuitBreaker[T](st)
}
