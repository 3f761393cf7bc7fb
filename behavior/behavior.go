package behavior

import (
	"context"
	"errors"
)

// Behavior is a transformation applicable to every computation shape.
type Behavior interface {
	// Prepare runs before the wrapped computation starts. A non-nil error
	// means the computation never runs and the error becomes its failure.
	Prepare(ctx context.Context) error
	// Recover rewrites a failure. When substitute is true the shape's benign
	// outcome replaces the failure: Maybe yields nothing, Stream ends and
	// Completable succeeds. Single has no benign value and fails with the
	// returned error instead.
	Recover(err error) (rewritten error, substitute bool)
}

// Nop is the identity behavior.
var Nop Behavior = nopBehavior{}

type nopBehavior struct{}

func (nopBehavior) Prepare(context.Context) error   { return nil }
func (nopBehavior) Recover(err error) (error, bool) { return err, false }

// PrepareFunc adapts a function to a Behavior that only runs a precondition.
type PrepareFunc func(ctx context.Context) error

func (f PrepareFunc) Prepare(ctx context.Context) error { return f(ctx) }
func (f PrepareFunc) Recover(err error) (error, bool)   { return err, false }

// Chain composes behaviors. The first is outermost: its Prepare runs first
// and its Recover sees failures last, including failures raised by the
// Prepare of the behaviors inside it.
//
// Chain(a, b) applied to c behaves like a applied to (b applied to c).
func Chain(behaviors ...Behavior) Behavior {
	flat := make(chain, 0, len(behaviors))
	for _, b := range behaviors {
		switch v := b.(type) {
		case nil:
		case chain:
			flat = append(flat, v...)
		default:
			flat = append(flat, v)
		}
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return flat
}

type chain []Behavior

// Prepare and Recover make a chain usable wherever a single Behavior is
// expected. The Apply functions nest the members instead of calling these.
func (c chain) Prepare(ctx context.Context) error {
	for _, b := range c {
		if err := b.Prepare(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c chain) Recover(err error) (error, bool) {
	for i := len(c) - 1; i >= 0; i-- {
		var substitute bool
		err, substitute = c[i].Recover(err)
		if substitute {
			return err, true
		}
	}
	return err, false
}

// ApplySingle wraps s with b.
func ApplySingle[T any](b Behavior, s Single[T]) Single[T] {
	if c, ok := b.(chain); ok {
		for i := len(c) - 1; i >= 0; i-- {
			s = ApplySingle(c[i], s)
		}
		return s
	}
	return func(ctx context.Context) (T, error) {
		var zero T
		if err := b.Prepare(ctx); err != nil {
			return zero, recoverSingle(ctx, b, err)
		}
		v, err := s(ctx)
		if err != nil {
			return zero, recoverSingle(ctx, b, err)
		}
		return v, nil
	}
}

// ApplyMaybe wraps m with b.
func ApplyMaybe[T any](b Behavior, m Maybe[T]) Maybe[T] {
	if c, ok := b.(chain); ok {
		for i := len(c) - 1; i >= 0; i-- {
			m = ApplyMaybe(c[i], m)
		}
		return m
	}
	return func(ctx context.Context) (T, bool, error) {
		var zero T
		if err := b.Prepare(ctx); err != nil {
			return zero, false, recoverOrDrop(ctx, b, err)
		}
		v, ok, err := m(ctx)
		if err != nil {
			return zero, false, recoverOrDrop(ctx, b, err)
		}
		return v, ok, nil
	}
}

// ApplyStream wraps s with b. Recover also sees failures raised while
// iterating; a substituted failure ends the stream after the values
// already emitted.
func ApplyStream[T any](b Behavior, s Stream[T]) Stream[T] {
	if c, ok := b.(chain); ok {
		for i := len(c) - 1; i >= 0; i-- {
			s = ApplyStream(c[i], s)
		}
		return s
	}
	return func(ctx context.Context) (Iterator[T], error) {
		if err := b.Prepare(ctx); err != nil {
			if err = recoverOrDrop(ctx, b, err); err != nil {
				return nil, err
			}
			return Empty[T](), nil
		}
		it, err := s(ctx)
		if err != nil {
			if err = recoverOrDrop(ctx, b, err); err != nil {
				return nil, err
			}
			return Empty[T](), nil
		}
		return &recoverIter[T]{inner: it, b: b}, nil
	}
}

// ApplyCompletable wraps c with b.
func ApplyCompletable(b Behavior, c Completable) Completable {
	if ch, ok := b.(chain); ok {
		for i := len(ch) - 1; i >= 0; i-- {
			c = ApplyCompletable(ch[i], c)
		}
		return c
	}
	return func(ctx context.Context) error {
		if err := b.Prepare(ctx); err != nil {
			return recoverOrDrop(ctx, b, err)
		}
		if err := c(ctx); err != nil {
			return recoverOrDrop(ctx, b, err)
		}
		return nil
	}
}

type recoverIter[T any] struct {
	inner Iterator[T]
	b     Behavior
	ended bool
}

func (it *recoverIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.ended {
		return zero, false, nil
	}
	v, ok, err := it.inner.Next(ctx)
	if err != nil {
		if err = recoverOrDrop(ctx, it.b, err); err != nil {
			return zero, false, err
		}
		it.ended = true
		return zero, false, nil
	}
	return v, ok, nil
}

func (it *recoverIter[T]) Close() error { return it.inner.Close() }

// canceled reports whether err is the caller abandoning the computation.
// Cancellation is not a failure of the computation, so Recover never sees it.
func canceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, ctx.Err())
}

func recoverSingle(ctx context.Context, b Behavior, err error) error {
	if canceled(ctx, err) {
		return err
	}
	rewritten, _ := b.Recover(err)
	if rewritten == nil {
		// A Single cannot succeed without a value.
		return err
	}
	return rewritten
}

func recoverOrDrop(ctx context.Context, b Behavior, err error) error {
	if canceled(ctx, err) {
		return err
	}
	rewritten, substitute := b.Recover(err)
	if substitute {
		return nil
	}
	return rewritten
}
