/*
Package promise builds something similar to JS style promises, or
Futures (as seen in Java and other languages), on top of goroutines and
generics.

Every step of a chain is an explicit *Promise[T]. A callback that returns
a plain value is attached with Then; a callback that returns another
promise is attached with Chain. Nothing is flattened behind the caller's
back, so the type flowing between two steps is always visible.

Examples

Single promise:
	p := promise.New(func() (int, error) {
		return 1, nil
	})
	resolved, err := p.Wait()

Chained promise:
	timesTwo := promise.Then(p, func(x int) (int, error) {
		return x * 2, nil
	})
	resolved, err := timesTwo.Wait()

Promise.all:
	all := promise.All(p, timesTwo)
	results, err := all.Wait() // []int{1, 2}, in argument order

Heterogeneous join:
	both := promise.Join(profiles, token)
	pair, err := both.Wait() // pair.First, pair.Second

Error handling:
	p := promise.New(func() (*http.Response, error) {
		return http.Get("http://example.com")
	})
	// Do other work while Get processes in a goroutine...
	r, err := p.Wait()
	// Errors are returned unchanged by Wait. Panics become *PanicError.
*/
package promise
