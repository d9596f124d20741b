// Package resolver produces the best available data for a view by walking an
// ordered list of sources, degrading from live data to cached and sample data.
package resolver

import (
	"context"
	"fmt"
)

// Source is one ranked tier of data.
type Source[T any] interface {
	Name() string
	Fetch(ctx context.Context) ([]T, error)
}

type funcSource[T any] struct {
	name string
	fn   func(ctx context.Context) ([]T, error)
}

func (s funcSource[T]) Name() string { return s.name }

func (s funcSource[T]) Fetch(ctx context.Context) ([]T, error) { return s.fn(ctx) }

// Func adapts a plain function into a named Source.
func Func[T any](name string, fn func(ctx context.Context) ([]T, error)) Source[T] {
	return funcSource[T]{name: name, fn: fn}
}

// Attempt records a tier that did not produce data.
type Attempt struct {
	Source string
	Err    error
}

// Result is the outcome of a resolution. Data is never nil.
type Result[T any] struct {
	Data []T
	// Source names the tier that produced Data, empty when every tier failed.
	Source string
	// Primary names the first tier that was consulted.
	Primary string
	// Err explains why the primary tier was skipped, or wraps ErrExhausted
	// when nothing could be resolved.
	Err      error
	Attempts []Attempt
}

// Fallback reports whether the data came from a lower-fidelity tier.
func (r Result[T]) Fallback() bool {
	return r.Source != "" && r.Source != r.Primary
}

// Resolve tries each tier in order and returns the first non-empty result.
// Failures are absorbed into the result rather than returned.
func Resolve[T any](ctx context.Context, tiers ...Source[T]) Result[T] {
	res := Result[T]{Data: []T{}}
	if len(tiers) > 0 {
		res.Primary = tiers[0].Name()
	}

	var lastErr error
	for _, tier := range tiers {
		if err := ctx.Err(); err != nil {
			res.Attempts = append(res.Attempts, Attempt{Source: tier.Name(), Err: err})
			lastErr = err
			break
		}

		data, err := tier.Fetch(ctx)
		if err == nil && len(data) == 0 {
			err = ErrEmpty
		}
		if err != nil {
			res.Attempts = append(res.Attempts, Attempt{Source: tier.Name(), Err: err})
			lastErr = err
			continue
		}

		res.Data = data
		res.Source = tier.Name()
		if len(res.Attempts) > 0 {
			res.Err = res.Attempts[0].Err
		}
		return res
	}

	if lastErr == nil {
		res.Err = ErrExhausted
	} else {
		res.Err = fmt.Errorf("%w: %w", ErrExhausted, lastErr)
	}
	return res
}

// First resolves a single record, for detail views.
func First[T any](ctx context.Context, tiers ...Source[T]) (T, Result[T]) {
	res := Resolve(ctx, tiers...)
	var zero T
	if len(res.Data) == 0 {
		return zero, res
	}
	return res.Data[0], res
}
