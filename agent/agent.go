// Package agent provides the default api.Agent implementation: a named
// model-backed actor with templated instructions, tools, and tool-server
// handles, assembled through functional options.
package agent

import (
	"strings"
	"text/template"

	"github.com/fogfish/opts"

	"github.com/conclave-ai/conclave/api"
	"github.com/conclave-ai/conclave/provider/openai"
	"github.com/conclave-ai/conclave/tool"
	"github.com/conclave-ai/conclave/types"
)

var _ api.Agent = (*defaultAgent)(nil)

type defaultAgent struct {
	name         string
	model        api.Model
	instructions string
	tools        []tool.Definition
	toolServers  []tool.Server
}

// Name returns the agent's name.
func (a *defaultAgent) Name() string {
	return a.name
}

// Model returns the agent's model.
func (a *defaultAgent) Model() api.Model {
	return a.model
}

// Tools returns the agent's tool definitions.
func (a *defaultAgent) Tools() []tool.Definition {
	return a.tools
}

// ToolServers returns the agent's remote tool handles.
func (a *defaultAgent) ToolServers() []tool.Server {
	return a.toolServers
}

func (a *defaultAgent) Instructions() string {
	return a.instructions
}

// RenderInstructions renders the agent's instructions with the provided
// context variables. Instructions without template actions pass through
// without touching text/template.
func (a *defaultAgent) RenderInstructions(cv types.ContextVars) (string, error) {
	if !strings.Contains(a.instructions, "{{") {
		return a.instructions, nil
	}
	return renderTemplate("instructions", a.instructions, cv)
}

func renderTemplate(name, templateStr string, cv types.ContextVars) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, cv); err != nil {
		return "", err
	}

	return buf.String(), nil
}

var (
	Name         = opts.ForName[defaultAgent, string]("name")
	Model        = opts.ForName[defaultAgent, api.Model]("model")
	Instructions = opts.ForName[defaultAgent, string]("instructions")
)

func Tools(tool tool.Definition, extraTools ...tool.Definition) opts.Option[defaultAgent] {
	return opts.Type[defaultAgent](func(o *defaultAgent) error {
		o.tools = append(o.tools, tool)
		o.tools = append(o.tools, extraTools...)
		return nil
	})
}

func ToolServers(server tool.Server, extraServers ...tool.Server) opts.Option[defaultAgent] {
	return opts.Type[defaultAgent](func(o *defaultAgent) error {
		o.toolServers = append(o.toolServers, server)
		o.toolServers = append(o.toolServers, extraServers...)
		return nil
	})
}

// New creates an agent with the provided options. The model defaults to
// GPT-4o mini.
func New(options ...opts.Option[defaultAgent]) api.Agent {
	agent := &defaultAgent{
		model: openai.GPT4oMini(),
	}
	if err := opts.Apply(agent, options); err != nil {
		panic(err)
	}
	return agent
}
