// Package lazy provides a construct-once guard for process-scoped shared
// state. Unlike sync.Once, a failed construction attempt is not recorded:
// every later call may retry from scratch, while concurrent callers of an
// in-flight attempt wait for it and share its outcome (singleflight).
package lazy

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Once holds a single shared value of type T constructed on first use.
//
// Guarantees:
//   - At most one build runs at a time; concurrent callers wait for the
//     in-flight attempt and observe its result (success or failure).
//   - A successful build is stored permanently; later calls return the
//     stored value without invoking build again.
//   - A failed build stores nothing; the next call retries.
//
// The build function receives the context of the caller that won the race.
// Waiters therefore cannot cancel a construction they merely observe.
type Once[T any] struct {
	group singleflight.Group

	mu    sync.RWMutex
	value T
	done  bool
}

// Get returns the shared value, constructing it via build if it does not
// exist yet.
func (o *Once[T]) Get(ctx context.Context, build func(ctx context.Context) (T, error)) (T, error) {
	o.mu.RLock()
	if o.done {
		v := o.value
		o.mu.RUnlock()
		return v, nil
	}
	o.mu.RUnlock()

	v, err, _ := o.group.Do("init", func() (interface{}, error) {
		// A winner may have stored the value between the fast-path check
		// and joining the flight.
		o.mu.RLock()
		if o.done {
			v := o.value
			o.mu.RUnlock()
			return v, nil
		}
		o.mu.RUnlock()

		val, err := build(ctx)
		if err != nil {
			return nil, err
		}

		o.mu.Lock()
		o.value = val
		o.done = true
		o.mu.Unlock()

		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Peek returns the stored value without triggering construction. The second
// return reports whether construction has completed successfully.
func (o *Once[T]) Peek() (T, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.value, o.done
}
