// Package fallback runs ordered attempt chains: try each step until one
// succeeds, keeping a record of what failed on the way.
//
// The same helper backs webcam constraint tiers (preferred, reduced,
// default), the encoder's hardware-to-software handoff, and the stop-time
// persistence chain (finalize, buffered save, local export).
package fallback

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoAttempts reports an empty chain.
var ErrNoAttempts = errors.New("fallback: no attempts provided")

// Attempt is one step of an ordered chain.
type Attempt[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Failure records an attempt that did not produce a value.
type Failure struct {
	Name string
	Err  error
}

// Outcome reports which attempt succeeded and what failed before it. When the
// whole chain fails, Index is -1 and Failures holds every attempt.
type Outcome[T any] struct {
	Value    T
	Winner   string
	Index    int
	Failures []Failure
}

// Degraded reports whether the chain succeeded on anything but its first
// attempt.
func (o Outcome[T]) Degraded() bool {
	return o.Index > 0
}

// Run executes attempts in order until one succeeds. The returned outcome
// names the winner and carries the errors of every earlier attempt so callers
// can log them. When every attempt fails, the returned error joins all
// attempt errors and errors.Is matches each of them.
func Run[T any](ctx context.Context, attempts []Attempt[T]) (Outcome[T], error) {
	outcome := Outcome[T]{Index: -1}
	if len(attempts) == 0 {
		return outcome, ErrNoAttempts
	}

	for i, attempt := range attempts {
		if err := ctx.Err(); err != nil {
			outcome.Failures = append(outcome.Failures, Failure{Name: attempt.Name, Err: err})
			return outcome, err
		}

		value, err := attempt.Run(ctx)
		if err == nil {
			outcome.Value = value
			outcome.Winner = attempt.Name
			outcome.Index = i
			return outcome, nil
		}
		outcome.Failures = append(outcome.Failures, Failure{
			Name: attempt.Name,
			Err:  fmt.Errorf("%s: %w", attempt.Name, err),
		})
	}

	joined := make([]error, 0, len(outcome.Failures))
	for _, failure := range outcome.Failures {
		joined = append(joined, failure.Err)
	}
	return outcome, errors.Join(joined...)
}
