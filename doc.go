/*
Package conclave orchestrates AI agents over typed tasks. An Orchestrator
drives a sequential turn loop: it picks the next eligible task, hands the turn
to an agent, streams the model's reply, dispatches tool calls, and keeps going
until every task reaches a terminal state.

The package is organized around a few abstractions:

  - Tasks: units of work with a typed result expectation and a small state
    machine (pending, running, successful, failed)
  - Agents: named, model-backed actors with templated instructions and tools
  - Teams: composite actors that select a member per turn
  - Events: the immutable record of everything a run did, observable through
    hooks and replayable without rerunning models
  - Providers: pluggable model backends that stream structured events

# Basic Usage

A minimal run wires an agent, a task, and an orchestrator:

	greeter := agent.New(
		agent.Name("greeter"),
		agent.Model(openai.GPT4oMini()),
		agent.Instructions("You greet people warmly."),
	)

	task := conclave.NewTask[string]("Say 'Hello'")

	o := conclave.New(conclave.Actors(greeter))
	if err := o.Run(ctx, task); err != nil {
		// handle a fatal fault; tool and validation errors never land here
	}

	result, err := conclave.ResultOf[string](task)

Typed results are validated against a schema derived from the result type.
A rejected result keeps the task running, feeds the rejection back to the
model, and counts against the retry budget.

# Turn-ending tools

Agents finish work through reserved tools rather than free text:
mark_task_successful and mark_task_failed settle a task, delegate_to_agent
hands the conversation to another actor, and post_message adds a note without
settling anything. Ordinary tool calls in the same reply always run first.

# Observation and replay

Every state change surfaces as an event. Attach hooks with WithHook to watch
a run live, record it with events.Recorder, and reconstruct task outcomes
later with Replay. Recorded logs are the source of truth: replay bypasses
validation and never invokes a model or a tool.
*/
package conclave
