package workflow

import (
	"errors"
	"fmt"
)

// CatalogBuilder assembles an immutable Catalog from reference data
type CatalogBuilder interface {
	// AddStatus registers a status. Order of registration is preserved.
	AddStatus(info StatusInfo) CatalogBuilder

	// Configure returns a transition configuration for the given source status
	Configure(from Status) StatusConfiguration

	// Build validates the graph and returns the catalog
	Build() (*Catalog, error)
}

// StatusConfiguration configures outgoing transitions for one status
type StatusConfiguration interface {
	// Permit allows action to move the incident to the target status
	Permit(action Action, to Status, initiator Initiator, opts ...PermitOption) StatusConfiguration
}

// PermitOption customises a permitted transition
type PermitOption func(*Transition)

// WithTransitionID carries the persisted id of the transition row
func WithTransitionID(id string) PermitOption {
	return func(t *Transition) { t.ID = id }
}

// Reassigning marks the transition as one that sets the assignee
func Reassigning() PermitOption {
	return func(t *Transition) { t.Reassigns = true }
}

type statusConfig struct {
	builder *catalogBuilder
	from    Status
}

type catalogBuilder struct {
	assigneeRole string
	statuses     []StatusInfo
	transitions  []Transition
	errs         []error
}

// NewBuilder creates a catalog builder. assigneeRole is the role an actor
// must hold to invoke assignee-initiated transitions.
func NewBuilder(assigneeRole string) CatalogBuilder {
	return &catalogBuilder{assigneeRole: assigneeRole}
}

func (b *catalogBuilder) AddStatus(info StatusInfo) CatalogBuilder {
	b.statuses = append(b.statuses, info)
	return b
}

func (b *catalogBuilder) Configure(from Status) StatusConfiguration {
	return &statusConfig{builder: b, from: from}
}

func (c *statusConfig) Permit(action Action, to Status, initiator Initiator, opts ...PermitOption) StatusConfiguration {
	t := Transition{From: c.from, To: to, Action: action, Initiator: initiator}
	for _, opt := range opts {
		opt(&t)
	}
	c.builder.transitions = append(c.builder.transitions, t)
	return c
}

func (b *catalogBuilder) fail(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidCatalog}, args...)...))
}

// Build validates the catalog:
//   - status codes are unique and exactly one status is initial
//   - every transition references known statuses and a known initiator
//   - (from, action) is unique
//   - designated terminal statuses have no outgoing transitions
//   - every status reachable from the initial one has an outgoing
//     transition or is designated terminal
func (b *catalogBuilder) Build() (*Catalog, error) {
	if b.assigneeRole == "" {
		b.fail("assignee role is required")
	}

	cat := &Catalog{
		assigneeRole: b.assigneeRole,
		statuses:     make(map[Status]StatusInfo, len(b.statuses)),
		byID:         make(map[string]Status, len(b.statuses)),
		edges:        make(map[Status]map[Action]Transition),
		outgoing:     make(map[Status][]Transition),
	}

	initials := 0
	for _, s := range b.statuses {
		if s.Code == "" {
			b.fail("status %q has an empty code", s.ID)
			continue
		}
		if _, dup := cat.statuses[s.Code]; dup {
			b.fail("duplicate status code %q", s.Code)
			continue
		}
		cat.statuses[s.Code] = s
		cat.order = append(cat.order, s.Code)
		if s.ID != "" {
			cat.byID[s.ID] = s.Code
		}
		if s.Initial {
			initials++
			cat.initial = s.Code
		}
	}
	if initials != 1 {
		b.fail("expected exactly one initial status, found %d", initials)
	}

	for _, t := range b.transitions {
		if _, ok := cat.statuses[t.From]; !ok {
			b.fail("transition %q references unknown status %q", t.Action, t.From)
			continue
		}
		if _, ok := cat.statuses[t.To]; !ok {
			b.fail("transition %q references unknown status %q", t.Action, t.To)
			continue
		}
		if t.Initiator != InitiatorCreator && t.Initiator != InitiatorAssignee {
			b.fail("transition %s/%s has unknown initiator %q", t.From, t.Action, t.Initiator)
			continue
		}
		if t.Action == "" {
			b.fail("transition from %q has an empty action code", t.From)
			continue
		}
		if cat.edges[t.From] == nil {
			cat.edges[t.From] = make(map[Action]Transition)
		}
		if _, dup := cat.edges[t.From][t.Action]; dup {
			b.fail("action %q is defined twice from status %q", t.Action, t.From)
			continue
		}
		cat.edges[t.From][t.Action] = t
		cat.outgoing[t.From] = append(cat.outgoing[t.From], t)
	}

	for _, code := range cat.order {
		if cat.statuses[code].Terminal && len(cat.outgoing[code]) > 0 {
			b.fail("terminal status %q has outgoing transitions", code)
		}
	}

	if initials == 1 {
		for _, code := range cat.reachable() {
			if len(cat.outgoing[code]) == 0 && !cat.statuses[code].Terminal {
				b.fail("status %q is reachable but has no outgoing transitions and is not terminal", code)
			}
		}
	}

	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	return cat, nil
}
