package conclave

import (
	"sync"

	"github.com/conclave-ai/conclave/api"
)

// Team is a composite actor: it satisfies api.Composite and hands each turn
// to one of its members. Selection is the only behavior a team adds; tools
// and tool servers always come from the selected member.
type Team interface {
	api.Composite
	Reset()
}

// RoundRobin builds a team that cycles through its members, one per turn.
func RoundRobin(name string, member api.Actor, extraMembers ...api.Actor) Team {
	return &roundRobinTeam{
		name:    name,
		members: append([]api.Actor{member}, extraMembers...),
	}
}

type roundRobinTeam struct {
	name    string
	members []api.Actor

	mu   sync.Mutex
	next int
}

func (t *roundRobinTeam) Name() string { return t.name }

func (t *roundRobinTeam) Select() api.Actor {
	t.mu.Lock()
	defer t.mu.Unlock()
	member := t.members[t.next%len(t.members)]
	t.next++
	return member
}

// Reset restarts the rotation from the first member.
func (t *roundRobinTeam) Reset() {
	t.mu.Lock()
	t.next = 0
	t.mu.Unlock()
}

// Leader builds a team that always selects its leader. The other members
// are reachable through hand-off tools, not through turn rotation.
func Leader(name string, leader api.Actor, members ...api.Actor) Team {
	return &leaderTeam{
		name:    name,
		leader:  leader,
		members: members,
	}
}

type leaderTeam struct {
	name    string
	leader  api.Actor
	members []api.Actor
}

func (t *leaderTeam) Name() string      { return t.name }
func (t *leaderTeam) Select() api.Actor { return t.leader }
func (t *leaderTeam) Reset()            {}

// Members lists the non-leader members of a leader team.
func (t *leaderTeam) Members() []api.Actor { return t.members }
