package resilience

import "context"

// Operation is the shape every resilience combinator in this package
// operates on: a context-aware unit of work that either succeeds or
// returns an error.
type Operation func(context.Context) error

// WithFallback runs primary, and if it returns an error, runs fallback
// instead. The fallback's result (success or error) becomes the result
// of the combined operation.
func WithFallback(primary, fallback Operation) Operation {
	return WithFallbackIf(primary, fallback, nil)
}

// WithFallbackIf behaves like WithFallback, except fallback also runs when
// condition(ctx) reports true, even if primary would have succeeded. A nil
// condition makes this equivalent to WithFallback.
func WithFallbackIf(primary, fallback Operation, condition func(context.Context) bool) Operation {
	return func(ctx context.Context) error {
		if condition != nil && condition(ctx) {
			return fallback(ctx)
		}
		if err := primary(ctx); err != nil {
			return fallback(ctx)
		}
		return nil
	}
}

// WithChain runs primary followed by each fallback in order, stopping at
// the first one that succeeds. If every operation fails, WithChain
// returns ErrNoFallbacksSucceeded wrapping the final error.
func WithChain(primary Operation, fallbacks ...Operation) Operation {
	return WithChainIf(primary, nil, fallbacks...)
}

// WithChainIf behaves like WithChain, except each fallback at index i may
// be skipped by supplying a non-nil skip[i] that reports true. skip may be
// shorter than fallbacks or nil; missing entries are treated as never-skip.
func WithChainIf(primary Operation, skip []func(context.Context) bool, fallbacks ...Operation) Operation {
	return func(ctx context.Context) error {
		err := primary(ctx)
		if err == nil {
			return nil
		}

		for i, fb := range fallbacks {
			if i < len(skip) && skip[i] != nil && skip[i](ctx) {
				continue
			}
			if err = fb(ctx); err == nil {
				return nil
			}
		}

		return &chainError{cause: err}
	}
}

type chainError struct {
	cause error
}

func (e *chainError) Error() string {
	return ErrNoFallbacksSucceeded.Error() + ": " + e.cause.Error()
}

func (e *chainError) Unwrap() error {
	return ErrNoFallbacksSucceeded
}

func (e *chainError) Cause() error {
	return e.cause
}

// Compose applies a series of middleware-style wrappers to op, right to
// left, so the first wrapper listed ends up outermost. This lets callers
// build an ad hoc execution chain without constructing an Executor:
//
//	resilience.Compose(op,
//	    func(o Operation) Operation { return rl.Execute wrapped },
//	    func(o Operation) Operation { return cb.Execute wrapped },
//	)
func Compose(op Operation, wrappers ...func(Operation) Operation) Operation {
	for i := len(wrappers) - 1; i >= 0; i-- {
		op = wrappers[i](op)
	}
	return op
}
