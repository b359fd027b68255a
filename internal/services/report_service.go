package services

import (
	"context"
	"fmt"
	"time"

	"expenseflow/internal/core"

	"golang.org/x/sync/errgroup"
)

const recentExpenses = 5

// ResolveScope turns the requested view into a filter. all asks for every
// user's expenses; ownerID asks for one user's. Anything beyond the actor's own
// expenses needs a reviewer.
func ResolveScope(actor core.Actor, ownerID string, all bool) (core.ExpenseFilter, error) {
	switch {
	case all:
		if err := core.RequireRole(actor, core.RoleApprover); err != nil {
			return core.ExpenseFilter{}, err
		}
		return core.ExpenseFilter{}, nil
	case ownerID != "" && ownerID != actor.ID:
		if err := core.RequireRole(actor, core.RoleApprover); err != nil {
			return core.ExpenseFilter{}, err
		}
		return core.ExpenseFilter{OwnerID: ownerID}, nil
	default:
		return core.ExpenseFilter{OwnerID: actor.ID}, nil
	}
}

// Dashboard gathers the sections of the home screen.
type Dashboard struct {
	Stats          core.Stats           `json:"stats"`
	ByCategory     []core.CategoryTotal `json:"byCategory"`
	ByMonth        []core.PeriodTotal   `json:"byMonth"`
	ByStatus       []core.StatusTotal   `json:"byStatus"`
	Recent         []core.ExpenseView   `json:"recent"`
	AwaitingReview int                  `json:"awaitingReview"`
}

// ReportService runs the aggregations over the expenses a filter selects.
type ReportService struct {
	store ExpenseStore
	now   func() time.Time
}

func NewReportService(store ExpenseStore) *ReportService {
	return &ReportService{store: store, now: time.Now}
}

func (s *ReportService) load(ctx context.Context, f core.ExpenseFilter) ([]core.ExpenseView, error) {
	views, err := s.store.QueryExpenses(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("load expenses for report: %w", err)
	}
	return views, nil
}

func (s *ReportService) ByCategory(ctx context.Context, f core.ExpenseFilter) ([]core.CategoryTotal, error) {
	views, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return core.GroupByCategory(views), nil
}

// ByMonth covers the last months calendar months, oldest first.
func (s *ReportService) ByMonth(ctx context.Context, f core.ExpenseFilter, months int) ([]core.PeriodTotal, error) {
	if months <= 0 || months > 120 {
		months = 12
	}
	views, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return core.GroupByMonth(views, s.now(), months), nil
}

// ByQuarter uses the current year when year is zero.
func (s *ReportService) ByQuarter(ctx context.Context, f core.ExpenseFilter, year int) ([]core.PeriodTotal, error) {
	if year == 0 {
		year = s.now().Year()
	}
	views, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return core.GroupByQuarter(views, year), nil
}

// ByDay uses the current month when year or month is zero.
func (s *ReportService) ByDay(ctx context.Context, f core.ExpenseFilter, year, month int) ([]core.PeriodTotal, error) {
	now := s.now()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		return nil, core.NewValidationError(fmt.Sprintf("invalid month %d", month))
	}
	views, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return core.GroupByDay(views, year, month), nil
}

func (s *ReportService) ByStatus(ctx context.Context, f core.ExpenseFilter) ([]core.StatusTotal, error) {
	views, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return core.GroupByStatus(views), nil
}

func (s *ReportService) Stats(ctx context.Context, f core.ExpenseFilter) (core.Stats, error) {
	views, err := s.load(ctx, f)
	if err != nil {
		return core.Stats{}, err
	}
	return core.ComputeStats(views, s.now()), nil
}

// Dashboard loads the scoped expenses and, for reviewers, the global review
// queue concurrently, then computes every section.
func (s *ReportService) Dashboard(ctx context.Context, actor core.Actor, f core.ExpenseFilter) (Dashboard, error) {
	var (
		views   []core.ExpenseView
		pending []core.ExpenseView
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		views, err = s.load(gctx, f)
		return err
	})
	if actor.IsReviewer() {
		g.Go(func() error {
			var err error
			pending, err = s.load(gctx, core.ExpenseFilter{Status: core.StatusPending})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	now := s.now()
	d := Dashboard{
		Stats:          core.ComputeStats(views, now),
		ByCategory:     core.GroupByCategory(views),
		ByMonth:        core.GroupByMonth(views, now, 12),
		ByStatus:       core.GroupByStatus(views),
		Recent:         views[:min(len(views), recentExpenses)],
		AwaitingReview: len(pending),
	}
	if d.Recent == nil {
		d.Recent = []core.ExpenseView{}
	}
	if d.ByCategory == nil {
		d.ByCategory = []core.CategoryTotal{}
	}
	return d, nil
}
