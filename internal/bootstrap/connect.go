// Package bootstrap establishes connections to external dependencies at
// process start, retrying a fixed number of times with a fixed delay.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/thotranphuc276/person-detection/internal/logger"
)

// ErrConnectionExhausted is returned once every attempt has failed. The error
// returned by Connect also wraps the last underlying failure.
var ErrConnectionExhausted = errors.New("connection attempts exhausted")

// Conn is a live connection that can be probed and released.
type Conn interface {
	Ping(ctx context.Context) error
	Close() error
}

// DialFunc opens a connection without verifying it.
type DialFunc[C Conn] func(ctx context.Context) (C, error)

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

// Connector runs the retry loop for one dependency.
type Connector struct {
	policy Policy
	logger *logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewConnector(policy Policy, log *logger.Logger) *Connector {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Connector{
		policy: policy,
		logger: log,
		sleep:  sleepContext,
	}
}

// Connect dials target until a connection answers its probe. The same delay
// separates every pair of attempts. A connection whose probe fails is closed
// before the next attempt.
func Connect[C Conn](ctx context.Context, c *Connector, target string, dial DialFunc[C]) (C, error) {
	var zero C
	var lastErr error

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		conn, err := attemptOnce(ctx, dial)
		if err == nil {
			c.logger.Info("Connected to %s (attempt %d/%d)", target, attempt, c.policy.MaxAttempts)
			return conn, nil
		}
		lastErr = err
		c.logger.Warning("Failed to connect to %s (attempt %d/%d): %v", target, attempt, c.policy.MaxAttempts, err)

		if attempt == c.policy.MaxAttempts {
			break
		}
		if err := c.sleep(ctx, c.policy.RetryDelay); err != nil {
			return zero, fmt.Errorf("connecting to %s: %w", target, err)
		}
	}

	return zero, fmt.Errorf("%w: %s after %d attempts: %w", ErrConnectionExhausted, target, c.policy.MaxAttempts, lastErr)
}

func attemptOnce[C Conn](ctx context.Context, dial DialFunc[C]) (C, error) {
	var zero C

	conn, err := dial(ctx)
	if err != nil {
		if !isZero(conn) {
			conn.Close()
		}
		return zero, err
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return zero, fmt.Errorf("liveness probe failed: %w", err)
	}
	return conn, nil
}

// isZero reports whether conn is its type's zero value, e.g. a nil pointer.
func isZero[C Conn](conn C) bool {
	return reflect.ValueOf(&conn).Elem().IsZero()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
