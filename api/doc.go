// Package api holds the contracts that tie the framework together: actors
// that can take a turn, agents that wrap a model with tools and
// instructions, and composites that delegate turn-taking among a group.
// Implementations live in the agent package and in the root package's team
// strategies; keeping only interfaces here lets providers, tools, and the
// orchestrator depend on each other without cycles.
package api
