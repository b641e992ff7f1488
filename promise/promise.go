package promise

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ErrNoPromises is returned by Race and Any when called without promises.
var ErrNoPromises = errors.New("promise: no promises supplied")

// errGoexit rejects a promise whose function called runtime.Goexit.
var errGoexit = errors.New("promise: function exited without returning")

// A Promise represents an asynchronously executing unit of work that
// eventually produces a T or fails with an error.
type Promise[T any] struct {
	mu       sync.Mutex
	complete bool
	done     chan struct{}
	result   T
	err      error
	noCopy
}

// Used to trigger lint rules if a promise is copied
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// PanicError is the rejection reason of a promise whose function panicked.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic() during promise execution: %v", e.Value)
}

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// AggregateError is the rejection reason of Any when every input rejected.
// Errors are in input order.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("all %d promises rejected: %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

func pending[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// settle records the outcome of p. Only the first call has any effect.
func (p *Promise[T]) settle(v T, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.complete {
		return false
	}
	if err != nil {
		var zero T
		v = zero
	}
	p.result = v
	p.err = err
	p.complete = true
	close(p.done)
	return true
}

func (p *Promise[T]) reject(err error) bool {
	var zero T
	return p.settle(zero, err)
}

func (p *Promise[T]) run(f func() (T, error)) {
	returned := false
	// Catch panics
	defer func() {
		if r := recover(); r != nil {
			p.reject(&PanicError{Value: r})
			return
		}
		if !returned {
			p.reject(errGoexit)
		}
	}()
	v, err := f()
	returned = true
	p.settle(v, err)
}

// New returns a promise that resolves when f completes. A non-nil error
// from f rejects the promise with that error unchanged. Any panic()
// encountered is returned as a *PanicError from Wait().
func New[T any](f func() (T, error)) *Promise[T] {
	if f == nil {
		panic(errors.New("promise: New called with a nil function"))
	}
	p := pending[T]()
	go p.run(f)
	return p
}

// Resolve returns a promise already fulfilled with v.
func Resolve[T any](v T) *Promise[T] {
	p := pending[T]()
	p.settle(v, nil)
	return p
}

// Reject returns a promise already rejected with err.
func Reject[T any](err error) *Promise[T] {
	if err == nil {
		panic(errors.New("promise: Reject called with a nil error"))
	}
	p := pending[T]()
	p.reject(err)
	return p
}

// Then returns a promise that begins execution when p fulfils. If p
// rejects, f is never called and the returned promise rejects with the
// same error.
func Then[T, U any](p *Promise[T], f func(T) (U, error)) *Promise[U] {
	if f == nil {
		panic(errors.New("promise: Then called with a nil function"))
	}
	next := pending[U]()
	go next.run(func() (U, error) {
		v, err := p.Wait()
		if err != nil {
			var zero U
			return zero, err
		}
		return f(v)
	})
	return next
}

// Chain is Then for callbacks that themselves return a promise. The
// returned promise adopts the state of the promise produced by f.
func Chain[T, U any](p *Promise[T], f func(T) *Promise[U]) *Promise[U] {
	if f == nil {
		panic(errors.New("promise: Chain called with a nil function"))
	}
	return Then(p, func(v T) (U, error) {
		inner := f(v)
		if inner == nil {
			var zero U
			return zero, errors.New("promise: Chain callback returned a nil promise")
		}
		return inner.Wait()
	})
}

// All returns a promise that resolves if all of the passed promises
// succeed or fails as soon as any of them fails. Results keep the
// position of their promise in the argument list.
func All[T any](promises ...*Promise[T]) *Promise[[]T] {
	if len(promises) == 0 {
		return Resolve([]T{})
	}
	p := pending[[]T]()
	results := make([]T, len(promises))
	remaining := int64(len(promises))

	for i := range promises {
		go func(index int, prior *Promise[T]) {
			v, err := prior.Wait()
			if err != nil {
				p.reject(err)
				return
			}
			results[index] = v
			if atomic.AddInt64(&remaining, -1) == 0 {
				p.settle(results, nil)
			}
		}(i, promises[i])
	}
	return p
}

// Pair holds the results of Join.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Join is All for two promises of different types.
func Join[A, B any](a *Promise[A], b *Promise[B]) *Promise[Pair[A, B]] {
	p := pending[Pair[A, B]]()
	var pair Pair[A, B]
	remaining := int64(2)

	go func() {
		v, err := a.Wait()
		if err != nil {
			p.reject(err)
			return
		}
		pair.First = v
		if atomic.AddInt64(&remaining, -1) == 0 {
			p.settle(pair, nil)
		}
	}()
	go func() {
		v, err := b.Wait()
		if err != nil {
			p.reject(err)
			return
		}
		pair.Second = v
		if atomic.AddInt64(&remaining, -1) == 0 {
			p.settle(pair, nil)
		}
	}()
	return p
}

// Race returns a promise that settles the same way as the first of the
// passed promises to settle.
func Race[T any](promises ...*Promise[T]) *Promise[T] {
	if len(promises) == 0 {
		return Reject[T](ErrNoPromises)
	}
	if len(promises) == 1 {
		return promises[0]
	}
	p := pending[T]()
	for i := range promises {
		go func(prior *Promise[T]) {
			v, err := prior.Wait()
			p.settle(v, err)
		}(promises[i])
	}
	return p
}

// Any returns a promise that resolves with the first of the passed
// promises to succeed. If all of them fail, it fails with an
// *AggregateError.
func Any[T any](promises ...*Promise[T]) *Promise[T] {
	if len(promises) == 0 {
		return Reject[T](ErrNoPromises)
	}
	p := pending[T]()
	errs := make([]error, len(promises))
	remaining := int64(len(promises))

	for i := range promises {
		go func(index int, prior *Promise[T]) {
			v, err := prior.Wait()
			if err == nil {
				p.settle(v, nil)
				return
			}
			errs[index] = err
			if atomic.AddInt64(&remaining, -1) == 0 {
				p.reject(&AggregateError{Errors: errs})
			}
		}(i, promises[i])
	}
	return p
}

// Wait blocks until the promise settles and returns its value or the
// reason it was rejected.
func (p *Promise[T]) Wait() (T, error) {
	<-p.done
	return p.result, p.err
}

// WaitContext is Wait bounded by ctx. Giving up on the wait does not
// affect the promise itself.
func (p *Promise[T]) WaitContext(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		var zero T
		return zero, errors.Wrap(ctx.Err(), "promise: wait abandoned")
	}
}

// Done returns a channel that is closed once the promise settles.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// Settled reports whether the promise has settled, without blocking.
func (p *Promise[T]) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
