package services

import (
	"context"
	"fmt"
	"time"

	"expenseflow/internal/core"
	"expenseflow/internal/log"

	"github.com/google/uuid"
)

// ReferenceChecker resolves the owner and category an expense points at.
type ReferenceChecker interface {
	GetUser(ctx context.Context, id string) (core.User, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
}

// ExpenseService applies the expense rules and lifecycle. The row is saved
// first; the lifecycle event is published afterwards and a publish failure
// never fails the request.
type ExpenseService struct {
	store     ExpenseStore
	refs      ReferenceChecker
	publisher EventPublisher
	ceiling   core.Money
	now       func() time.Time
	logger    *log.Logger
	audit     *log.StructuredLogger
}

// NewExpenseService wires the service. publisher may be nil when events are
// disabled; a zero ceiling disables the per-expense limit.
func NewExpenseService(store ExpenseStore, refs ReferenceChecker, publisher EventPublisher, ceiling core.Money) *ExpenseService {
	return &ExpenseService{
		store:     store,
		refs:      refs,
		publisher: publisher,
		ceiling:   ceiling,
		now:       time.Now,
		logger:    log.Default(log.ComponentExpense),
		audit:     log.NewStructuredLogger(log.Default(log.ComponentAudit)),
	}
}

// Create submits an expense. A reviewer naming another owner submits on
// their behalf and is recorded as the submitter.
func (s *ExpenseService) Create(ctx context.Context, actor core.Actor, in core.ExpenseInput) (core.Expense, error) {
	e := core.Expense{
		UserID:      actor.ID,
		CategoryID:  in.CategoryID,
		Description: in.Description,
		Amount:      in.Amount,
		Date:        in.Date,
		Status:      core.StatusPending,
		Notes:       in.Notes,
		ReceiptURL:  in.ReceiptURL,
	}
	if in.OwnerID != "" && in.OwnerID != actor.ID {
		if !actor.IsReviewer() {
			return core.Expense{}, &core.AuthorizationError{Message: core.RoleApprover.Capability()}
		}
		submitter := actor.ID
		e.UserID = in.OwnerID
		e.SubmittedBy = &submitter
	}
	if e.Date.IsZero() {
		e.Date = core.DateOf(s.now())
	}
	e.Apply(core.ExpensePatch{Description: &in.Description, Notes: in.Notes, ReceiptURL: in.ReceiptURL})

	if err := e.Validate(s.ceiling); err != nil {
		return core.Expense{}, err
	}
	if err := s.checkReferences(ctx, e.UserID, e.CategoryID); err != nil {
		return core.Expense{}, err
	}

	saved, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense submitted",
		log.FieldExpenseID, saved.ID,
		log.FieldUserID, saved.UserID,
		log.FieldActorID, actor.ID,
		log.FieldAmountCents, saved.Amount.Cents)
	s.publish(ctx, actor, saved, core.ActionCreated, "", saved.Status)
	return saved, nil
}

// Get returns the joined view of one expense if the actor may see it.
func (s *ExpenseService) Get(ctx context.Context, actor core.Actor, id int64) (core.ExpenseView, error) {
	v, err := s.store.GetExpenseView(ctx, id)
	if err != nil {
		return core.ExpenseView{}, err
	}
	if err := core.CanView(actor, v.Expense); err != nil {
		return core.ExpenseView{}, err
	}
	return v, nil
}

// History returns the recorded lifecycle events of one expense, oldest
// first. Visibility follows Get.
func (s *ExpenseService) History(ctx context.Context, actor core.Actor, id int64) ([]core.AuditEvent, error) {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := core.CanView(actor, e); err != nil {
		return nil, err
	}
	events, err := s.store.ListAuditEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("expense history: %w", err)
	}
	if events == nil {
		events = []core.AuditEvent{}
	}
	return events, nil
}

// Query lists expenses. Restricting the global view is the caller's job.
func (s *ExpenseService) Query(ctx context.Context, f core.ExpenseFilter) ([]core.ExpenseView, error) {
	views, err := s.store.QueryExpenses(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	return views, nil
}

// Update merges p into the expense. Only reviewers may change the status
// through an update, which bypasses the lifecycle table.
func (s *ExpenseService) Update(ctx context.Context, actor core.Actor, id int64, p core.ExpensePatch) (core.Expense, error) {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if err := core.CanEdit(actor, e); err != nil {
		return core.Expense{}, err
	}
	from := e.Status
	to := e.Status
	if p.Status != nil && *p.Status != e.Status {
		if err := core.CanForceStatus(actor, *p.Status); err != nil {
			return core.Expense{}, err
		}
		to = *p.Status
	}

	prevCategory := e.CategoryID
	e.Apply(p)
	e.Status = to
	// Only a new amount is held to the ceiling.
	var ceiling core.Money
	if p.Amount != nil {
		ceiling = s.ceiling
	}
	if err := e.Validate(ceiling); err != nil {
		return core.Expense{}, err
	}
	if e.CategoryID != prevCategory {
		if err := s.checkReferences(ctx, "", e.CategoryID); err != nil {
			return core.Expense{}, err
		}
	}

	updated, err := s.store.UpdateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if from != to {
		s.audit.LogAudit(ctx, "Expense status forced", actor.ID, string(actor.Role), id, string(core.ActionUpdated), string(from), string(to))
		s.publish(ctx, actor, updated, core.ActionUpdated, from, to)
	} else {
		s.publish(ctx, actor, updated, core.ActionUpdated, "", "")
	}
	return updated, nil
}

// Delete removes an expense. Deletions by a reviewer are written to the audit
// log.
func (s *ExpenseService) Delete(ctx context.Context, actor core.Actor, id int64) error {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if err := core.CanDelete(actor, e); err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if actor.IsReviewer() {
		s.audit.LogAudit(ctx, "Expense deleted by reviewer", actor.ID, string(actor.Role), id, string(core.ActionDeleted), string(e.Status), "")
	}
	s.publish(ctx, actor, e, core.ActionDeleted, e.Status, "")
	return nil
}

// SetStatus records a review decision: approved or rejected, from pending.
func (s *ExpenseService) SetStatus(ctx context.Context, actor core.Actor, id int64, to core.Status) (core.Expense, error) {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if err := core.CanSetStatus(actor, e, to); err != nil {
		return core.Expense{}, err
	}
	return s.transition(ctx, actor, e, to)
}

func (s *ExpenseService) Approve(ctx context.Context, actor core.Actor, id int64) (core.Expense, error) {
	return s.SetStatus(ctx, actor, id, core.StatusApproved)
}

func (s *ExpenseService) Reject(ctx context.Context, actor core.Actor, id int64) (core.Expense, error) {
	return s.SetStatus(ctx, actor, id, core.StatusRejected)
}

// Resubmit sends a rejected expense back to pending.
func (s *ExpenseService) Resubmit(ctx context.Context, actor core.Actor, id int64) (core.Expense, error) {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if err := core.CanResubmit(actor, e); err != nil {
		return core.Expense{}, err
	}
	return s.transition(ctx, actor, e, core.StatusPending)
}

func (s *ExpenseService) transition(ctx context.Context, actor core.Actor, e core.Expense, to core.Status) (core.Expense, error) {
	from := e.Status
	e.Status = to
	updated, err := s.store.UpdateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense status: %w", err)
	}
	action := core.ActionFor(to)
	s.audit.LogAudit(ctx, "Expense status changed", actor.ID, string(actor.Role), e.ID, string(action), string(from), string(to))
	s.publish(ctx, actor, updated, action, from, to)
	return updated, nil
}

func (s *ExpenseService) checkReferences(ctx context.Context, ownerID string, categoryID int64) error {
	var problems []error
	if ownerID != "" {
		if _, err := s.refs.GetUser(ctx, ownerID); err != nil {
			if !core.IsNotFound(err) {
				return err
			}
			problems = append(problems, fmt.Errorf("user %s does not exist", ownerID))
		}
	}
	if _, err := s.refs.GetCategory(ctx, categoryID); err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		problems = append(problems, fmt.Errorf("category %d does not exist", categoryID))
	}
	if len(problems) > 0 {
		return core.NewValidationError("invalid expense", problems...)
	}
	return nil
}

func (s *ExpenseService) publish(ctx context.Context, actor core.Actor, e core.Expense, action core.Action, from, to core.Status) {
	if s.publisher == nil {
		return
	}
	ev := core.AuditEvent{
		EventID:    uuid.NewString(),
		ExpenseID:  e.ID,
		Action:     action,
		ActorID:    actor.ID,
		OwnerID:    e.UserID,
		FromStatus: from,
		ToStatus:   to,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish expense event",
			log.FieldExpenseID, e.ID,
			log.FieldAction, action,
			log.FieldError, err)
	}
}
