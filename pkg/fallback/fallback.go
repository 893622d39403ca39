// Package fallback runs an ordered list of strategies and keeps the first success.
package fallback

import (
	"context"
	"errors"
	"fmt"
)

// ErrExhausted is returned when every strategy failed
var ErrExhausted = errors.New("all strategies failed")

// Strategy is one named way of producing a value
type Strategy[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Attempt records a strategy that failed before the winner
type Attempt struct {
	Name string
	Err  error
}

// Result is the outcome of First
type Result[T any] struct {
	Value    T
	Strategy string
	Failed   []Attempt
}

// FirstError returns the error of the first failed strategy, or nil
func (r Result[T]) FirstError() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return r.Failed[0].Err
}

// First tries strategies in order and stops at the first one that returns a
// nil error. Each strategy runs at most once. A canceled context stops the
// chain between strategies.
func First[T any](ctx context.Context, strategies ...Strategy[T]) (Result[T], error) {
	var res Result[T]
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		v, err := s.Run(ctx)
		if err == nil {
			res.Value = v
			res.Strategy = s.Name
			return res, nil
		}
		res.Failed = append(res.Failed, Attempt{Name: s.Name, Err: err})
	}

	if len(res.Failed) == 0 {
		return res, ErrExhausted
	}
	errs := make([]error, 0, len(res.Failed))
	for _, a := range res.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", a.Name, a.Err))
	}
	return res, fmt.Errorf("%w: %w", ErrExhausted, errors.Join(errs...))
}
