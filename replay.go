package conclave

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/conclave-ai/conclave/events"
)

// Replay applies a recorded event log to the given tasks, reconstructing the
// terminal states a run produced without invoking any model or tool. Only
// end-turn tool results carry task outcomes; every other event is skipped.
// Replaying the same log twice is a no-op the second time.
func Replay(log []events.Event, tasks ...*Task) error {
	byID := make(map[string]*Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID()] = t
	}

	for i, ev := range log {
		res, ok := ev.(events.EndTurnToolResult)
		if !ok || res.IsError {
			continue
		}

		task, exists := byID[res.TaskID]
		if !exists {
			return fmt.Errorf("event %d names unknown task %s", i, res.TaskID)
		}

		switch TaskStatus(res.Status) {
		case TaskSuccessful:
			task.restore(TaskSuccessful, gjson.Parse(res.Result), "")
		case TaskFailed:
			task.restore(TaskFailed, gjson.Result{}, res.Result)
		case "":
			// delegate_to_agent and post_message results carry no status
		default:
			return fmt.Errorf("event %d carries unknown task status %q", i, res.Status)
		}
	}
	return nil
}
