package future

import (
	"context"
	"sync"
)

type result[T any] struct {
	v   T
	err error
}

// Future is a single-shot result that completes exactly once.
type Future[T any] struct {
	doneChannel chan struct{}
	res         result[T]
	once        sync.Once
}

// New runs fn in a goroutine and completes the Future when fn returns.
func New[T any](fn func() (T, error)) *Future[T] {
	f, complete := Pending[T]()
	go func() {
		complete(fn())
	}()
	return f
}

// Pending returns an incomplete Future together with the function that
// completes it. Only the first call to complete has an effect.
func Pending[T any]() (*Future[T], func(T, error)) {
	f := &Future[T]{doneChannel: make(chan struct{})}
	return f, f.complete
}

// Await blocks until completion and returns the result.
func (f *Future[T]) Await() (T, error) {
	<-f.doneChannel
	return f.res.v, f.res.err
}

// AwaitContext blocks until completion or until ctx is done, whichever comes
// first. The Future keeps running when ctx ends first.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.doneChannel:
		return f.res.v, f.res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed when the Future completes.
func (f *Future[T]) Done() <-chan struct{} { return f.doneChannel }

// All waits for every future and returns their values in order, together
// with the first error encountered.
func All[T any](futures ...*Future[T]) ([]T, error) {
	out := make([]T, len(futures))
	var first error
	for i, fut := range futures {
		v, err := fut.Await()
		out[i] = v
		if err != nil && first == nil {
			first = err
		}
	}
	return out, first
}

// complete sets the result exactly once and closes doneChannel.
func (f *Future[T]) complete(v T, err error) {
	f.once.Do(func() {
		f.res = result[T]{v: v, err: err}
		close(f.doneChannel)
	})
}
