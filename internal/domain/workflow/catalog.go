package workflow

// Catalog is the in-memory transition table keyed by (status, action).
// It is immutable after Build and safe for concurrent use.
type Catalog struct {
	assigneeRole string
	initial      Status
	order        []Status
	statuses     map[Status]StatusInfo
	byID         map[string]Status
	edges        map[Status]map[Action]Transition
	outgoing     map[Status][]Transition
}

// AssigneeRole returns the role required for assignee-initiated transitions
func (c *Catalog) AssigneeRole() string {
	return c.assigneeRole
}

// Initial returns the status new incidents are created in
func (c *Catalog) Initial() StatusInfo {
	return c.statuses[c.initial]
}

// Status returns the status with the given code
func (c *Catalog) Status(code Status) (StatusInfo, bool) {
	s, ok := c.statuses[code]
	return s, ok
}

// StatusByID resolves a persisted status id
func (c *Catalog) StatusByID(id string) (StatusInfo, bool) {
	code, ok := c.byID[id]
	if !ok {
		return StatusInfo{}, false
	}
	return c.statuses[code], true
}

// Statuses returns all statuses in registration order
func (c *Catalog) Statuses() []StatusInfo {
	out := make([]StatusInfo, 0, len(c.order))
	for _, code := range c.order {
		out = append(out, c.statuses[code])
	}
	return out
}

// Lookup returns the unique active transition for (from, action)
func (c *Catalog) Lookup(from Status, action Action) (Transition, bool) {
	t, ok := c.edges[from][action]
	return t, ok
}

// From returns all active transitions leaving a status
func (c *Catalog) From(from Status) []Transition {
	return append([]Transition(nil), c.outgoing[from]...)
}

// IsTerminal reports whether a status has no outgoing active transitions
func (c *Catalog) IsTerminal(code Status) bool {
	return len(c.outgoing[code]) == 0
}

// IsEditable reports whether the creator may edit incidents in this status
func (c *Catalog) IsEditable(code Status) bool {
	return c.statuses[code].Editable
}

// reachable walks the graph breadth-first from the initial status
func (c *Catalog) reachable() []Status {
	seen := map[Status]bool{c.initial: true}
	queue := []Status{c.initial}
	var out []Status
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		out = append(out, s)
		for _, t := range c.outgoing[s] {
			if !seen[t.To] {
				seen[t.To] = true
				queue = append(queue, t.To)
			}
		}
	}
	return out
}

// Reachable returns every status reachable from the initial one
func (c *Catalog) Reachable() []Status {
	return c.reachable()
}
