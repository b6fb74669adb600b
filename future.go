package conclave

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/conclave-ai/conclave/pkg/stdx"
)

// Promise is the write side of a future.
type Promise interface {
	Complete(string)
	Error(error)
}

// Future is the read side: Get blocks until a result or error arrives.
type Future[T any] interface {
	Get() (T, error)
}

// CompletableFuture couples both sides.
type CompletableFuture[T any] interface {
	Future[T]
	Promise
}

// DefaultUnmarshal picks a decoder for T: gjson.Result parses lazily,
// strings pass through, everything else uses JSON unmarshaling.
func DefaultUnmarshal[T any]() func([]byte) (T, error) {
	var t T
	if _, isGjsonResult := any(t).(gjson.Result); isGjsonResult {
		return func(data []byte) (T, error) {
			return any(gjson.ParseBytes(data)).(T), nil
		}
	}
	if reflect.TypeFor[T]().Kind() == reflect.String {
		return func(data []byte) (T, error) {
			return any(string(data)).(T), nil
		}
	}
	return func(data []byte) (T, error) {
		var v T
		err := json.Unmarshal(data, &v)
		return v, err
	}
}

type futState struct {
	value string
	err   error
}

type futResult[T any] struct {
	result T
	err    error
	done   bool
}

type future[T any] struct {
	unmarshal func([]byte) (T, error)
	ch        chan futState
	result    atomic.Value // holds *futResult[T]
	once      sync.Once
	mu        sync.Mutex
}

// NewFuture returns a single-assignment future that decodes its completion
// payload with the given unmarshaler.
func NewFuture[T any](unmarshal func([]byte) (T, error)) CompletableFuture[T] {
	f := &future[T]{
		unmarshal: unmarshal,
		ch:        make(chan futState, 1),
	}
	f.result.Store(&futResult[T]{})
	return f
}

func (f *future[T]) Get() (T, error) {
	res := f.result.Load().(*futResult[T])
	if res.done {
		return res.result, res.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	res = f.result.Load().(*futResult[T])
	if res.done {
		return res.result, res.err
	}

	r := <-f.ch
	var newResult futResult[T]
	if r.err != nil {
		newResult = futResult[T]{
			result: stdx.Zero[T](),
			err:    r.err,
			done:   true,
		}
	} else {
		result, err := f.unmarshal([]byte(r.value))
		newResult = futResult[T]{
			result: result,
			err:    err,
			done:   true,
		}
	}
	f.result.Store(&newResult)
	return newResult.result, newResult.err
}

func (f *future[T]) Complete(data string) {
	f.once.Do(func() {
		f.ch <- futState{value: data}
	})
}

func (f *future[T]) Error(err error) {
	f.once.Do(func() {
		f.ch <- futState{err: err}
	})
}

// RunAsync drives the orchestrator in a goroutine and resolves a typed
// future with the final task's result. A failed final task resolves the
// future with its failure reason as the error.
func RunAsync[T any](ctx context.Context, o *Orchestrator, tasks ...*Task) Future[T] {
	fut := NewFuture(taskUnmarshal[T]())
	if len(tasks) == 0 {
		fut.Error(errors.New("no tasks to run"))
		return fut
	}

	go func() {
		if err := o.Run(ctx, tasks...); err != nil {
			fut.Error(err)
			return
		}
		last := tasks[len(tasks)-1]
		if last.Status() != TaskSuccessful {
			fut.Error(fmt.Errorf("task %s failed: %s", last.ID(), last.FailureReason()))
			return
		}
		fut.Complete(last.Result().Raw)
	}()
	return fut
}
