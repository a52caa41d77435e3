package contest

import "fmt"

// Operation names one operator action against a contest. It shows up in
// precondition errors and observer notifications.
type Operation string

const (
	OpPublish   Operation = "publish"
	OpLock      Operation = "lock"
	OpSetAnswer Operation = "set answer"
	OpResolve   Operation = "resolve"
	OpCancel    Operation = "cancel"
	OpDelete    Operation = "delete"
	OpPayout    Operation = "payout"
	OpEnter     Operation = "enter"
)

// CheckTransition validates that op is legal from the contest's current
// status. It only inspects status; callers re-run it inside their
// transaction after re-reading the contest, so the check-then-act window
// closes at the store's isolation level.
func (c *Contest) CheckTransition(op Operation) error {
	switch op {
	case OpPublish:
		if c.Status != StatusDraft {
			return &PreconditionError{Op: op, Rule: fmt.Sprintf("cannot publish a %s contest", c.Status)}
		}
	case OpLock:
		if c.Status != StatusPublished {
			return &PreconditionError{Op: op, Rule: fmt.Sprintf("cannot lock a %s contest", c.Status)}
		}
	case OpSetAnswer:
		if c.Status != StatusLocked {
			return &PreconditionError{Op: op, Rule: fmt.Sprintf("cannot set answers on a %s contest", c.Status)}
		}
	case OpResolve:
		if c.Status == StatusResolved {
			return &PreconditionError{Op: op, Rule: "contest already resolved"}
		}
		if c.Status != StatusLocked {
			return &PreconditionError{Op: op, Rule: fmt.Sprintf("cannot resolve a %s contest", c.Status)}
		}
	case OpCancel:
		if c.Status == StatusCancelled {
			return &PreconditionError{Op: op, Rule: "contest already cancelled"}
		}
		if c.Status != StatusDraft && c.Status != StatusPublished {
			return &PreconditionError{Op: op, Rule: fmt.Sprintf("cannot cancel a %s contest", c.Status)}
		}
	case OpDelete:
		if c.Status != StatusDraft && c.Status != StatusCancelled {
			return &PreconditionError{Op: op, Rule: fmt.Sprintf("cannot delete a %s contest", c.Status)}
		}
	case OpPayout:
		if c.Status != StatusResolved {
			return &PreconditionError{Op: op, Rule: fmt.Sprintf("cannot pay out a %s contest", c.Status)}
		}
		if c.PaidOut {
			return &PreconditionError{Op: op, Rule: "winners already paid out"}
		}
	case OpEnter:
		if c.Status != StatusPublished {
			return &PreconditionError{Op: op, Rule: fmt.Sprintf("cannot enter a %s contest", c.Status)}
		}
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
	return nil
}
