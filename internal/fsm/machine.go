// Package fsm defines the lifecycle state machines shared by every
// back-end-backed entity.
package fsm

import (
	"github.com/opennode/waldur-core-sub000/internal/model"
)

// Transition names a permitted move. An empty From means any state.
type Transition struct {
	Name string
	From []model.State
	To   model.State
}

type Machine struct {
	entity      string
	transitions map[string]Transition
	stable      map[model.State]bool
	terminal    map[model.State]bool
}

func newMachine(entity string, stable, terminal []model.State, transitions ...Transition) *Machine {
	m := &Machine{
		entity:      entity,
		transitions: make(map[string]Transition, len(transitions)),
		stable:      make(map[model.State]bool, len(stable)),
		terminal:    make(map[model.State]bool, len(terminal)),
	}
	for _, t := range transitions {
		m.transitions[t.Name] = t
	}
	for _, s := range stable {
		m.stable[s] = true
	}
	for _, s := range terminal {
		m.terminal[s] = true
	}
	return m
}

// Next computes the state reached by applying the named transition from
// the given state.
func (m *Machine) Next(id string, from model.State, name string) (model.State, error) {
	if !m.Can(from, name) {
		return from, &model.StateConflictError{Entity: m.entity, ID: id, State: from, Transition: name}
	}
	return m.transitions[name].To, nil
}

// Can reports whether the transition is permitted from the given state.
func (m *Machine) Can(from model.State, name string) bool {
	t, ok := m.transitions[name]
	if !ok || m.terminal[from] {
		return false
	}
	if len(t.From) == 0 {
		return true
	}
	for _, s := range t.From {
		if s == from {
			return true
		}
	}
	return false
}

// IsStable reports whether an entity in state s may start new work.
func (m *Machine) IsStable(s model.State) bool {
	return m.stable[s]
}
