package behavior

import "context"

// Single produces exactly one value or a failure.
type Single[T any] func(ctx context.Context) (T, error)

// Maybe produces a value, nothing (ok == false), or a failure.
type Maybe[T any] func(ctx context.Context) (T, bool, error)

// Stream opens a pull-based sequence of values.
type Stream[T any] func(ctx context.Context) (Iterator[T], error)

// Completable signals success or failure without a value.
type Completable func(ctx context.Context) error

// Iterator provides pull-based sequential access to a stream of values.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}

// Just returns a Single that always yields v.
func Just[T any](v T) Single[T] {
	return func(context.Context) (T, error) { return v, nil }
}

// FromSlice returns an iterator over items.
func FromSlice[T any](items []T) Iterator[T] {
	return &sliceIter[T]{items: items}
}

// Empty returns an iterator that is already exhausted.
func Empty[T any]() Iterator[T] {
	return &sliceIter[T]{}
}

// Collect drains it and closes it. Values read before a failure are
// returned along with the error.
func Collect[T any](ctx context.Context, it Iterator[T]) ([]T, error) {
	defer it.Close()
	var out []T
	for {
		v, ok, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

type sliceIter[T any] struct {
	items []T
	pos   int
}

func (it *sliceIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	if it.pos >= len(it.items) {
		return zero, false, nil
	}
	v := it.items[it.pos]
	it.pos++
	return v, true, nil
}

func (it *sliceIter[T]) Close() error { return nil }
