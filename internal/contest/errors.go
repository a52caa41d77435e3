package contest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound means the contest id (or a choice id inside it) does not
	// resolve to anything stored.
	ErrNotFound = errors.New("contest not found")

	// ErrStoreUnavailable wraps transient persistence failures. The whole
	// operation is safe to retry: nothing was committed.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// PreconditionError is a state-machine rule violation. It is never retried
// automatically; the operator has to change the contest's state first.
type PreconditionError struct {
	Op   Operation
	Rule string
}

func (e *PreconditionError) Error() string { return e.Rule }

// ConflictError is returned when concurrent writers kept colliding past the
// retry budget. The caller may retry after re-fetching current state.
type ConflictError struct {
	Op Operation
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting concurrent %s, re-fetch contest state before retrying", e.Op)
}

// PartialInputError reports choices that still lack a correct answer when a
// resolve was requested.
type PartialInputError struct {
	ChoiceIDs []uuid.UUID
}

func (e *PartialInputError) Error() string {
	ids := make([]string, len(e.ChoiceIDs))
	for i, id := range e.ChoiceIDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("choices missing a correct answer: %s", strings.Join(ids, ", "))
}
