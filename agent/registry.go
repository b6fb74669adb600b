package agent

import (
	"github.com/conclave-ai/conclave/api"
	"github.com/conclave-ai/conclave/internal/registry"
)

// Global resolves agents by name for hand-off tools that return a name
// instead of a value.
var Global = registry.New[api.Agent]()

func Add(agent api.Agent) {
	Global.Add(agent.Name(), agent)
}

func Get(name string) (api.Agent, bool) {
	return Global.Get(name)
}

func Del(name string) {
	Global.Del(name)
}
