package core

import (
	"fmt"
	"time"
)

// Action names a lifecycle event recorded for an expense.
type Action string

const (
	ActionCreated     Action = "created"
	ActionUpdated     Action = "updated"
	ActionApproved    Action = "approved"
	ActionRejected    Action = "rejected"
	ActionResubmitted Action = "resubmitted"
	ActionDeleted     Action = "deleted"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionApproved, ActionRejected, ActionResubmitted, ActionDeleted:
		return true
	}
	return false
}

// AuditEvent is the durable record of one lifecycle action.
type AuditEvent struct {
	ID         int64     `json:"id"`
	EventID    string    `json:"eventId"`
	ExpenseID  int64     `json:"expenseId"`
	Action     Action    `json:"action"`
	ActorID    string    `json:"actorId"`
	OwnerID    string    `json:"ownerId"`
	FromStatus Status    `json:"fromStatus,omitempty"`
	ToStatus   Status    `json:"toStatus,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// transitions is the complete table of legal status changes.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusRejected: {StatusPending},
}

// CanTransition reports whether from -> to is in the lifecycle table.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition returns an InvalidStateError unless from -> to is legal.
func Transition(from, to Status) error {
	if !from.IsValid() || !to.IsValid() {
		return &InvalidStateError{Message: fmt.Sprintf("unknown status transition %q -> %q", from, to)}
	}
	if !CanTransition(from, to) {
		return &InvalidStateError{Message: fmt.Sprintf("cannot change status from %s to %s", from, to)}
	}
	return nil
}

// ActionFor names the action that moves an expense into status to.
func ActionFor(to Status) Action {
	switch to {
	case StatusApproved:
		return ActionApproved
	case StatusRejected:
		return ActionRejected
	default:
		return ActionResubmitted
	}
}

// CanView: owners see their own expenses, reviewers see everything.
func CanView(a Actor, e Expense) error {
	if a.ID == e.UserID || a.IsReviewer() {
		return nil
	}
	return &AuthorizationError{Message: RoleApprover.Capability()}
}

// CanEdit applies the edit rules: reviewers edit at any status, owners only
// while the expense is not approved.
func CanEdit(a Actor, e Expense) error {
	if a.IsReviewer() {
		return nil
	}
	if a.ID != e.UserID {
		return &AuthorizationError{Message: RoleApprover.Capability()}
	}
	if e.Status == StatusApproved {
		return &InvalidStateError{Message: "approved expenses can no longer be edited"}
	}
	return nil
}

// CanDelete mirrors CanEdit for deletion.
func CanDelete(a Actor, e Expense) error {
	if a.IsReviewer() {
		return nil
	}
	if a.ID != e.UserID {
		return &AuthorizationError{Message: RoleApprover.Capability()}
	}
	if e.Status == StatusApproved {
		return &InvalidStateError{Message: "approved expenses can no longer be deleted"}
	}
	return nil
}

// CanSetStatus checks a review decision. Only approved and rejected are
// targets here; going back to pending is a resubmission.
func CanSetStatus(a Actor, e Expense, to Status) error {
	if err := RequireRole(a, RoleApprover); err != nil {
		return err
	}
	if to != StatusApproved && to != StatusRejected {
		return NewValidationError("status must be approved or rejected", ErrInvalidStatus)
	}
	return Transition(e.Status, to)
}

// CanResubmit allows the owner or a reviewer to send a rejected expense back
// to review.
func CanResubmit(a Actor, e Expense) error {
	if a.ID != e.UserID && !a.IsReviewer() {
		return &AuthorizationError{Message: RoleApprover.Capability()}
	}
	return Transition(e.Status, StatusPending)
}

// CanForceStatus checks a status carried by an update patch. Reviewers may set
// any status directly to force a re-review; owners may not change status at all.
func CanForceStatus(a Actor, to Status) error {
	if !to.IsValid() {
		return NewValidationError("invalid status "+quote(string(to)), ErrInvalidStatus)
	}
	return RequireRole(a, RoleApprover)
}
