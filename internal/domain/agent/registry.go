package agent

import (
	"fmt"

	"github.com/kailas-cloud/equidex/internal/domain"
)

// Set selects which panel a run uses.
type Set string

const (
	// SetPrimary runs the core panel.
	SetPrimary Set = "primary"
	// SetExtended runs the optional richer panel.
	SetExtended Set = "extended"
	// SetAll runs the core panel followed by the extended panel.
	SetAll Set = "all"
)

// ParseSet converts a string into a Set; empty means primary.
func ParseSet(s string) (Set, error) {
	switch Set(s) {
	case "":
		return SetPrimary, nil
	case SetPrimary, SetExtended, SetAll:
		return Set(s), nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownAgentSet, s)
	}
}

// Registry is the fixed, ordered catalog of analysis agents. Loaded once, read-only afterwards.
type Registry struct {
	primary  []Agent
	extended []Agent
	byName   map[string]Agent
}

// NewRegistry creates a registry over the given panels. Agent names must be unique across both.
func NewRegistry(primary, extended []Agent) (*Registry, error) {
	byName := make(map[string]Agent, len(primary)+len(extended))
	for _, panel := range [][]Agent{primary, extended} {
		for _, a := range panel {
			if _, dup := byName[a.Name()]; dup {
				return nil, fmt.Errorf("%w: duplicate agent name %q", domain.ErrInvalidTemplate, a.Name())
			}
			byName[a.Name()] = a
		}
	}
	return &Registry{
		primary:  append([]Agent(nil), primary...),
		extended: append([]Agent(nil), extended...),
		byName:   byName,
	}, nil
}

// DefaultRegistry returns the built-in primary and extended panels.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Primary(), Extended())
	if err != nil {
		panic(err)
	}
	return r
}

// Select returns a fresh ordered slice of the agents in set.
func (r *Registry) Select(set Set) ([]Agent, error) {
	switch set {
	case SetPrimary, "":
		return append([]Agent(nil), r.primary...), nil
	case SetExtended:
		return append([]Agent(nil), r.extended...), nil
	case SetAll:
		out := make([]Agent, 0, len(r.primary)+len(r.extended))
		out = append(out, r.primary...)
		return append(out, r.extended...), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAgentSet, set)
	}
}

// Lookup finds an agent by name.
func (r *Registry) Lookup(name string) (Agent, bool) {
	a, ok := r.byName[name]
	return a, ok
}
