package conclave

import (
	"context"
	"errors"
	"fmt"

	"github.com/conclave-ai/conclave/events"
)

// Hook observes a run end to end: every orchestration event, the typed final
// result, and a close notification once the run is over.
type Hook[T any] interface {
	events.Hook
	OnResult(context.Context, T)
	OnClose(context.Context)
}

// RunObserved drives the orchestrator like RunAsync while routing events and
// the typed final result to hook. OnClose fires exactly once, after OnResult
// on success or after the failure is recorded on the future.
func RunObserved[T any](ctx context.Context, o *Orchestrator, hook Hook[T], tasks ...*Task) Future[T] {
	fut := NewFuture(taskUnmarshal[T]())
	if len(tasks) == 0 {
		fut.Error(errors.New("no tasks to run"))
		hook.OnClose(ctx)
		return fut
	}

	o.mu.Lock()
	prev := o.hook
	o.hook = events.Fanout(prev, hook)
	o.mu.Unlock()

	go func() {
		defer func() {
			o.mu.Lock()
			o.hook = prev
			o.mu.Unlock()
			hook.OnClose(ctx)
		}()

		if err := o.Run(ctx, tasks...); err != nil {
			fut.Error(err)
			return
		}
		last := tasks[len(tasks)-1]
		if last.Status() != TaskSuccessful {
			fut.Error(fmt.Errorf("task %s failed: %s", last.ID(), last.FailureReason()))
			return
		}

		raw := last.Result().Raw
		fut.Complete(raw)

		value, err := taskUnmarshal[T]()([]byte(raw))
		if err != nil {
			return
		}
		hook.OnResult(ctx, value)
	}()
	return fut
}
