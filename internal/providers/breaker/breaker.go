// Package breaker wraps collaborator calls in a circuit breaker so a failing
// model endpoint is skipped quickly instead of stalling every request.
package breaker

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

type Config struct {
	Name             string
	MaxRequests      uint32        // allowed through while half-open
	Interval         time.Duration // closed-state counting window
	Timeout          time.Duration // open-state duration
	FailureThreshold float64       // failure ratio that opens the breaker
	MinRequests      uint32        // requests needed before the ratio counts
}

func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         10 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.5,
		MinRequests:      5,
	}
}

func New(cfg Config, log *logrus.Logger) *gobreaker.CircuitBreaker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(c.TotalFailures) / float64(c.Requests)
			if ratio >= cfg.FailureThreshold {
				log.WithFields(logrus.Fields{
					"breaker":  cfg.Name,
					"requests": c.Requests,
					"failures": c.TotalFailures,
				}).Warn("circuit breaker tripping")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Info("circuit breaker state change")
		},
	})
}

// Execute runs fn through cb and returns its typed result.
func Execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	out, err := cb.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

// Open reports whether err means the breaker rejected the call.
func Open(err error) bool {
	return err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests
}
