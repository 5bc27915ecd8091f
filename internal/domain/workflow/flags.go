package workflow

import "github.com/garyjia/incident-intake/internal/domain/entity"

// ActionFlags is what an actor may do with an incident right now.
type ActionFlags struct {
	NextActions     []Action `json:"nextActions"`
	CanSendToReview bool     `json:"canSendToReview"`
	CanAccept       bool     `json:"canAccept"`
	CanReject       bool     `json:"canReject"`
	CanEdit         bool     `json:"canEdit"`
}

// Allows reports whether action is among the next actions
func (f ActionFlags) Allows(action Action) bool {
	for _, a := range f.NextActions {
		if a == action {
			return true
		}
	}
	return false
}

// Authorize applies the initiator rule of a transition to an actor.
// It is the only authorization rule; ComputeFlags and the executor both call it.
func (c *Catalog) Authorize(t Transition, incident *entity.Incident, actor entity.Actor) error {
	if incident == nil || actor.ID == "" {
		return Forbidden(t.From, t.Action, "actor is not allowed to %s this incident", t.Action)
	}

	switch t.Initiator {
	case InitiatorCreator:
		if actor.ID != incident.CreatorUserID {
			return Forbidden(t.From, t.Action, "only creator may %s", t.Action)
		}
		return nil
	case InitiatorAssignee:
		if actor.ID != incident.Assignee() {
			return Forbidden(t.From, t.Action, "only assignee may %s", t.Action)
		}
		if actor.RoleName != c.assigneeRole {
			return Forbidden(t.From, t.Action, "action '%s' requires role '%s'", t.Action, c.assigneeRole)
		}
		return nil
	default:
		return Forbidden(t.From, t.Action, "transition %s has no usable initiator", t.Action)
	}
}

// ComputeFlags returns the actions actor may invoke on incident. Missing
// incident or actor yields empty flags.
func (c *Catalog) ComputeFlags(incident *entity.Incident, actor entity.Actor) ActionFlags {
	flags := ActionFlags{NextActions: []Action{}}
	if incident == nil || actor.ID == "" {
		return flags
	}

	current := Status(incident.StatusCode)
	for _, t := range c.outgoing[current] {
		if c.Authorize(t, incident, actor) != nil {
			continue
		}
		flags.NextActions = append(flags.NextActions, t.Action)
		switch t.Action {
		case ActionSendToReview:
			flags.CanSendToReview = true
		case ActionAccept:
			flags.CanAccept = true
		case ActionReject:
			flags.CanReject = true
		}
	}

	flags.CanEdit = actor.ID == incident.CreatorUserID && c.IsEditable(current)
	return flags
}
