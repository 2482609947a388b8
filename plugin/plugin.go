// Package plugin models plugin metadata and its lifecycle state machine.
// Dynamic plugin loading itself is out of scope here; this package
// specifies the metadata and valid state transitions a loader would need
// to honor.
package plugin

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Type enumerates the plugin implementation kinds.
type Type string

const (
	Wasm           Type = "Wasm"
	ExternalProcess Type = "ExternalProcess"
	SharedLibrary  Type = "SharedLibrary"
	Script         Type = "Script"
	Container      Type = "Container"
)

// State enumerates the plugin lifecycle states.
type State string

const (
	Uninstalled State = "Uninstalled"
	Installing  State = "Installing"
	Installed   State = "Installed"
	Loading     State = "Loading"
	Loaded      State = "Loaded"
	Active      State = "Active"
	ErrorState  State = "Error"
	Disabled    State = "Disabled"
	Unloading   State = "Unloading"
)

// stableSequence is the monotone install→activate path.
var stableSequence = []State{Uninstalled, Installing, Installed, Loading, Loaded, Active}

func sequenceIndex(s State) int {
	for i, v := range stableSequence {
		if v == s {
			return i
		}
	}
	return -1
}

// Dependency describes one entry of PluginMetadata.dependencies.
type Dependency struct {
	PluginID   string
	MinVersion *semver.Version
	MaxVersion *semver.Version
	Optional   bool
	Features   []string
}

// Metadata is the immutable plugin descriptor.
type Metadata struct {
	ID          string
	Name        string
	Version     *semver.Version
	Type        Type
	EntryPoint  string
	Permissions []string
	Dependencies []Dependency
}

// Machine tracks one plugin instance's lifecycle state, enforcing a
// monotonicity invariant: state transitions are monotone along
// stableSequence except that any state except Uninstalled may move to
// Error(msg) and back to the prior stable state on reload.
type Machine struct {
	meta         Metadata
	current      State
	errorMessage string
	priorStable  State
}

// NewMachine constructs a Machine in the Uninstalled state.
func NewMachine(meta Metadata) *Machine {
	return &Machine{meta: meta, current: Uninstalled, priorStable: Uninstalled}
}

// State returns the current lifecycle state.
func (m *Machine) State() State { return m.current }

// ErrorMessage returns the message associated with an Error state, if any.
func (m *Machine) ErrorMessage() string { return m.errorMessage }

// Advance moves the machine to the next state in stableSequence. Returns an
// error if next does not immediately follow current in the sequence.
func (m *Machine) Advance(next State) error {
	if m.current == ErrorState {
		return fmt.Errorf("plugin %s: cannot advance from Error state; call Recover first", m.meta.ID)
	}
	curIdx := sequenceIndex(m.current)
	nextIdx := sequenceIndex(next)
	if curIdx == -1 || nextIdx != curIdx+1 {
		return fmt.Errorf("plugin %s: invalid transition %s -> %s", m.meta.ID, m.current, next)
	}
	m.current = next
	return nil
}

// Fail transitions the machine to Error(msg) from any state except
// Uninstalled, recording the prior stable state for Recover.
func (m *Machine) Fail(msg string) error {
	if m.current == Uninstalled {
		return fmt.Errorf("plugin %s: cannot fail from Uninstalled", m.meta.ID)
	}
	if m.current != ErrorState {
		m.priorStable = m.current
	}
	m.current = ErrorState
	m.errorMessage = msg
	return nil
}

// Recover moves the machine from Error(msg) back to the prior stable state
// it held before Fail was called.
func (m *Machine) Recover() error {
	if m.current != ErrorState {
		return fmt.Errorf("plugin %s: Recover only valid from Error state", m.meta.ID)
	}
	m.current = m.priorStable
	m.errorMessage = ""
	return nil
}

// Disable transitions an Active or Loaded plugin to Disabled.
func (m *Machine) Disable() error {
	if m.current != Active && m.current != Loaded {
		return fmt.Errorf("plugin %s: can only disable from Active or Loaded, got %s", m.meta.ID, m.current)
	}
	m.current = Disabled
	return nil
}

// Unload moves a Disabled, Active or Loaded plugin to Unloading;
// FinishUnload then completes the move to Uninstalled.
func (m *Machine) Unload() error {
	switch m.current {
	case Disabled, Active, Loaded:
		m.current = Unloading
		return nil
	default:
		return fmt.Errorf("plugin %s: cannot unload from %s", m.meta.ID, m.current)
	}
}

// FinishUnload completes an in-progress Unloading transition.
func (m *Machine) FinishUnload() error {
	if m.current != Unloading {
		return fmt.Errorf("plugin %s: FinishUnload only valid from Unloading", m.meta.ID)
	}
	m.current = Uninstalled
	m.priorStable = Uninstalled
	return nil
}
