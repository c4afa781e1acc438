package duplicates

type WriteKind int

const (
	WriteCreate WriteKind = iota
	WriteUpdate
)

func (k WriteKind) String() string {
	if k == WriteUpdate {
		return "update"
	}
	return "create"
}

// Transition describes the status change a write performs. Previous is empty
// on create; an empty Target means the write does not touch the status.
type Transition struct {
	Kind     WriteKind
	Previous Status
	Target   Status
}

// Resolved returns the status the requisition ends up in.
func (t Transition) Resolved() Status {
	if t.Target != "" {
		return t.Target
	}
	if t.Kind == WriteCreate || t.Previous == "" {
		return StatusRegistered
	}
	return t.Previous
}

// RequiresCheck reports whether the duplicate check must run before the
// write commits. Registered requisitions are checked on every save; sent
// ones only on the transition into sent.
func (t Transition) RequiresCheck() bool {
	target := t.Resolved()
	switch t.Kind {
	case WriteCreate:
		return target == StatusRegistered || target == StatusSent
	case WriteUpdate:
		if target == StatusRegistered {
			return true
		}
		return target == StatusSent && t.Previous != StatusSent
	}
	return false
}
