package services

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"expenseflow/internal/core"
	"expenseflow/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.AuditEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev core.AuditEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) actions() []core.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.Action, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Action)
	}
	return out
}

type recordingSheet struct {
	header []string
	rows   [][]string
}

func (w *recordingSheet) WriteRows(_ context.Context, header []string, rows [][]string) (string, error) {
	w.header, w.rows = header, rows
	return "Export!A1", nil
}

var testNow = time.Date(2025, 3, 20, 15, 0, 0, 0, time.UTC)

// ServiceTestSuite runs the services against a fresh SQLite file per test.
type ServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	repo      *storage.Repository
	publisher *recordingPublisher
	sheet     *recordingSheet

	categories *CategoryService
	expenses   *ExpenseService
	users      *UserService
	reports    *ReportService
	transfer   *TransferService

	admin    core.Actor
	approver core.Actor
	alice    core.Actor
	bob      core.Actor
	travel   core.Category
}

func (s *ServiceTestSuite) SetupTest() {
	repo, err := storage.NewSQLiteRepository(filepath.Join(s.T().TempDir(), "services.db"))
	require.NoError(s.T(), err)
	s.repo = repo
	s.ctx = context.Background()
	s.publisher = &recordingPublisher{}
	s.sheet = &recordingSheet{}

	s.categories = NewCategoryService(repo, time.Minute)
	s.expenses = NewExpenseService(repo, repo, s.publisher, core.Money{Cents: 1_000_000})
	s.expenses.now = func() time.Time { return testNow }
	s.users = NewUserService(repo, []string{"Root@Example.com"})
	s.reports = NewReportService(repo)
	s.reports.now = func() time.Time { return testNow }
	s.transfer = NewTransferService(repo, repo, s.categories, s.sheet)
	s.transfer.now = func() time.Time { return testNow }

	s.admin = s.actor("root", "root@example.com")
	s.approver = s.actor("boss", "boss@example.com")
	_, err = s.users.SetRole(s.ctx, s.admin, "boss", core.RoleApprover)
	require.NoError(s.T(), err)
	s.approver.Role = core.RoleApprover
	s.alice = s.actor("alice", "alice@example.com")
	s.bob = s.actor("bob", "bob@example.com")

	s.travel, err = s.categories.Create(s.ctx, s.admin, core.CategoryInput{Name: "Travel"})
	require.NoError(s.T(), err)
}

func (s *ServiceTestSuite) TearDownTest() {
	if s.repo != nil {
		s.repo.Close()
	}
}

func (s *ServiceTestSuite) actor(sub, email string) core.Actor {
	u, err := s.users.UpsertFromIdentity(s.ctx, Identity{Subject: sub, Email: email, FirstName: strings.ToUpper(sub[:1]) + sub[1:]})
	require.NoError(s.T(), err)
	return core.Actor{ID: u.ID, Role: u.Role}
}

func (s *ServiceTestSuite) submit(actor core.Actor, desc, amount string) core.Expense {
	m, err := core.ParseAmount(amount)
	require.NoError(s.T(), err)
	e, err := s.expenses.Create(s.ctx, actor, core.ExpenseInput{
		CategoryID:  s.travel.ID,
		Description: desc,
		Amount:      m,
		Date:        core.NewDate(2025, 3, 10),
	})
	require.NoError(s.T(), err)
	return e
}

func (s *ServiceTestSuite) TestBootstrapAdminAndRoles() {
	assert.Equal(s.T(), core.RoleAdmin, s.admin.Role)
	assert.Equal(s.T(), core.RoleUser, s.alice.Role)

	_, err := s.users.SetRole(s.ctx, s.alice, "bob", core.RoleAdmin)
	var ae *core.AuthorizationError
	require.ErrorAs(s.T(), err, &ae)
	assert.Equal(s.T(), "Administrator access required", ae.Message)

	_, err = s.users.SetRole(s.ctx, s.admin, "root", core.RoleUser)
	var ise *core.InvalidStateError
	require.ErrorAs(s.T(), err, &ise, "the last admin cannot step down")

	_, err = s.users.SetRole(s.ctx, s.admin, "bob", core.Role("owner"))
	var ve *core.ValidationError
	require.ErrorAs(s.T(), err, &ve)

	_, err = s.users.List(s.ctx, s.alice)
	require.ErrorAs(s.T(), err, &ae)
	list, err := s.users.List(s.ctx, s.approver)
	require.NoError(s.T(), err)
	assert.Len(s.T(), list, 4)

	_, err = s.users.UpsertFromIdentity(s.ctx, Identity{Email: "nobody@example.com"})
	require.ErrorAs(s.T(), err, &ve)
}

func (s *ServiceTestSuite) TestCategoryRules() {
	_, err := s.categories.Create(s.ctx, s.approver, core.CategoryInput{Name: "Meals"})
	var ae *core.AuthorizationError
	require.ErrorAs(s.T(), err, &ae)

	flights, err := s.categories.Create(s.ctx, s.admin, core.CategoryInput{Name: "Flights", ParentID: &s.travel.ID})
	require.NoError(s.T(), err)

	_, err = s.categories.Create(s.ctx, s.admin, core.CategoryInput{Name: "Window seats", ParentID: &flights.ID})
	var ve *core.ValidationError
	require.ErrorAs(s.T(), err, &ve, "a third level must be rejected")

	_, err = s.categories.Create(s.ctx, s.admin, core.CategoryInput{Name: "  "})
	require.ErrorAs(s.T(), err, &ve)
	assert.ErrorIs(s.T(), err, core.ErrEmptyName)

	missing := int64(404)
	_, err = s.categories.Create(s.ctx, s.admin, core.CategoryInput{Name: "Lost", ParentID: &missing})
	assert.True(s.T(), core.IsNotFound(err))

	_, err = s.categories.Update(s.ctx, s.admin, s.travel.ID, core.CategoryPatch{ParentID: &s.travel.ID})
	require.ErrorAs(s.T(), err, &ve, "a category cannot be its own parent")

	meals, err := s.categories.Create(s.ctx, s.admin, core.CategoryInput{Name: "Meals"})
	require.NoError(s.T(), err)
	_, err = s.categories.Update(s.ctx, s.admin, s.travel.ID, core.CategoryPatch{ParentID: &meals.ID})
	require.ErrorAs(s.T(), err, &ve, "a parent with children cannot become a child")

	color := "#123456"
	updated, err := s.categories.Update(s.ctx, s.admin, flights.ID, core.CategoryPatch{Color: &color, ClearParent: true})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "#123456", updated.Color)
	assert.Nil(s.T(), updated.ParentID)
}

func (s *ServiceTestSuite) TestCategoryListIsCachedAndInvalidated() {
	forest, err := s.categories.List(s.ctx)
	require.NoError(s.T(), err)
	require.Len(s.T(), forest, 1)

	_, err = s.categories.Create(s.ctx, s.admin, core.CategoryInput{Name: "accommodation"})
	require.NoError(s.T(), err)
	_, err = s.categories.Create(s.ctx, s.admin, core.CategoryInput{Name: "Hotels", ParentID: &s.travel.ID})
	require.NoError(s.T(), err)

	forest, err = s.categories.List(s.ctx)
	require.NoError(s.T(), err)
	require.Len(s.T(), forest, 2)
	assert.Equal(s.T(), "accommodation", forest[0].Name, "names sort case-insensitively")
	assert.Equal(s.T(), "Travel", forest[1].Name)
	require.Len(s.T(), forest[1].Subcategories, 1)
	assert.Equal(s.T(), "Hotels", forest[1].Subcategories[0].Name)

	require.NoError(s.T(), s.categories.Delete(s.ctx, s.admin, forest[0].ID))
	forest, err = s.categories.List(s.ctx)
	require.NoError(s.T(), err)
	assert.Len(s.T(), forest, 1)
}

func (s *ServiceTestSuite) TestDeleteCategoryInUse() {
	s.submit(s.alice, "Taxi", "20.00")
	err := s.categories.Delete(s.ctx, s.admin, s.travel.ID)
	var rie *core.ReferentialIntegrityError
	require.ErrorAs(s.T(), err, &rie)
	assert.Equal(s.T(), "Cannot delete category: it is used by 1 expense(s). Reassign or delete those expenses first.", rie.Message)
}

func (s *ServiceTestSuite) TestCreateExpense() {
	e := s.submit(s.alice, "  Taxi  ", "250.00")
	assert.Equal(s.T(), "alice", e.UserID)
	assert.Nil(s.T(), e.SubmittedBy)
	assert.Equal(s.T(), "Taxi", e.Description)
	assert.Equal(s.T(), core.StatusPending, e.Status)

	delegated, err := s.expenses.Create(s.ctx, s.approver, core.ExpenseInput{
		OwnerID: "alice", CategoryID: s.travel.ID, Description: "Hotel", Amount: core.Money{Cents: 9900},
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "alice", delegated.UserID)
	require.NotNil(s.T(), delegated.SubmittedBy)
	assert.Equal(s.T(), "boss", *delegated.SubmittedBy)
	assert.Equal(s.T(), "2025-03-20", delegated.Date.String(), "missing date defaults to today")

	_, err = s.expenses.Create(s.ctx, s.alice, core.ExpenseInput{
		OwnerID: "bob", CategoryID: s.travel.ID, Description: "Hotel", Amount: core.Money{Cents: 100},
	})
	var ae *core.AuthorizationError
	require.ErrorAs(s.T(), err, &ae)

	_, err = s.expenses.Create(s.ctx, s.alice, core.ExpenseInput{
		CategoryID: s.travel.ID, Description: "Yacht", Amount: core.Money{Cents: 1_000_001},
	})
	assert.ErrorIs(s.T(), err, core.ErrAmountTooLarge)

	_, err = s.expenses.Create(s.ctx, s.alice, core.ExpenseInput{
		CategoryID: 9999, Description: "Ghost", Amount: core.Money{Cents: 100},
	})
	var ve *core.ValidationError
	require.ErrorAs(s.T(), err, &ve)
	assert.Contains(s.T(), ve.Error(), "category 9999 does not exist")

	_, err = s.expenses.Create(s.ctx, s.approver, core.ExpenseInput{
		OwnerID: "ghost", CategoryID: s.travel.ID, Description: "Ghost", Amount: core.Money{Cents: 100},
	})
	require.ErrorAs(s.T(), err, &ve)

	assert.Equal(s.T(), []core.Action{core.ActionCreated, core.ActionCreated}, s.publisher.actions())
}

func (s *ServiceTestSuite) TestUpdateRules() {
	e := s.submit(s.alice, "Taxi", "20.00")

	desc := "Airport taxi"
	updated, err := s.expenses.Update(s.ctx, s.alice, e.ID, core.ExpensePatch{Description: &desc})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Airport taxi", updated.Description)

	_, err = s.expenses.Update(s.ctx, s.bob, e.ID, core.ExpensePatch{Description: &desc})
	var ae *core.AuthorizationError
	require.ErrorAs(s.T(), err, &ae)

	approved := core.StatusApproved
	_, err = s.expenses.Update(s.ctx, s.alice, e.ID, core.ExpensePatch{Status: &approved})
	require.ErrorAs(s.T(), err, &ae, "owners cannot change status")

	_, err = s.expenses.Approve(s.ctx, s.approver, e.ID)
	require.NoError(s.T(), err)
	_, err = s.expenses.Update(s.ctx, s.alice, e.ID, core.ExpensePatch{Description: &desc})
	var ise *core.InvalidStateError
	require.ErrorAs(s.T(), err, &ise)

	pending := core.StatusPending
	forced, err := s.expenses.Update(s.ctx, s.approver, e.ID, core.ExpensePatch{Status: &pending})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), core.StatusPending, forced.Status, "reviewers can force a re-review")

	big := core.Money{Cents: 2_000_000}
	_, err = s.expenses.Update(s.ctx, s.approver, e.ID, core.ExpensePatch{Amount: &big})
	assert.ErrorIs(s.T(), err, core.ErrAmountTooLarge)
}

func (s *ServiceTestSuite) TestLifecycle() {
	e := s.submit(s.alice, "Taxi", "20.00")

	_, err := s.expenses.Approve(s.ctx, s.alice, e.ID)
	var ae *core.AuthorizationError
	require.ErrorAs(s.T(), err, &ae)
	assert.Equal(s.T(), "Approver access required", ae.Message)

	rejected, err := s.expenses.Reject(s.ctx, s.approver, e.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), core.StatusRejected, rejected.Status)

	_, err = s.expenses.Approve(s.ctx, s.approver, e.ID)
	var ise *core.InvalidStateError
	require.ErrorAs(s.T(), err, &ise, "rejected expenses must be resubmitted first")

	_, err = s.expenses.Resubmit(s.ctx, s.bob, e.ID)
	require.ErrorAs(s.T(), err, &ae)

	resubmitted, err := s.expenses.Resubmit(s.ctx, s.alice, e.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), core.StatusPending, resubmitted.Status)

	_, err = s.expenses.SetStatus(s.ctx, s.approver, e.ID, core.StatusPending)
	var ve *core.ValidationError
	require.ErrorAs(s.T(), err, &ve)

	approved, err := s.expenses.Approve(s.ctx, s.admin, e.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), core.StatusApproved, approved.Status)

	_, err = s.expenses.Reject(s.ctx, s.admin, e.ID)
	require.ErrorAs(s.T(), err, &ise, "approved is terminal")

	_, err = s.expenses.Resubmit(s.ctx, s.alice, e.ID)
	require.ErrorAs(s.T(), err, &ise)

	assert.Equal(s.T(), []core.Action{
		core.ActionCreated, core.ActionRejected, core.ActionResubmitted, core.ActionApproved,
	}, s.publisher.actions())
	last := s.publisher.events[len(s.publisher.events)-1]
	assert.Equal(s.T(), core.StatusPending, last.FromStatus)
	assert.Equal(s.T(), core.StatusApproved, last.ToStatus)
	assert.Equal(s.T(), "root", last.ActorID)
	assert.Equal(s.T(), "alice", last.OwnerID)
}

func (s *ServiceTestSuite) TestDeleteRules() {
	mine := s.submit(s.alice, "Taxi", "20.00")
	approved := s.submit(s.alice, "Hotel", "120.00")
	_, err := s.expenses.Approve(s.ctx, s.approver, approved.ID)
	require.NoError(s.T(), err)

	var ae *core.AuthorizationError
	require.ErrorAs(s.T(), s.expenses.Delete(s.ctx, s.bob, mine.ID), &ae)
	var ise *core.InvalidStateError
	require.ErrorAs(s.T(), s.expenses.Delete(s.ctx, s.alice, approved.ID), &ise)

	require.NoError(s.T(), s.expenses.Delete(s.ctx, s.alice, mine.ID))
	require.NoError(s.T(), s.expenses.Delete(s.ctx, s.approver, approved.ID))
	assert.True(s.T(), core.IsNotFound(s.expenses.Delete(s.ctx, s.admin, approved.ID)))
}

func (s *ServiceTestSuite) TestGetVisibility() {
	e := s.submit(s.alice, "Taxi", "20.00")

	v, err := s.expenses.Get(s.ctx, s.alice, e.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Travel", v.CategoryName)

	_, err = s.expenses.Get(s.ctx, s.bob, e.ID)
	var ae *core.AuthorizationError
	require.ErrorAs(s.T(), err, &ae)

	_, err = s.expenses.Get(s.ctx, s.approver, e.ID)
	require.NoError(s.T(), err)
}

func (s *ServiceTestSuite) TestPublishFailureDoesNotFailRequest() {
	s.publisher.err = errors.New("circuit breaker is open")
	e := s.submit(s.alice, "Taxi", "20.00")
	assert.NotZero(s.T(), e.ID)
}

func (s *ServiceTestSuite) TestScopeAndReports() {
	_, err := ResolveScope(s.alice, "", true)
	var ae *core.AuthorizationError
	require.ErrorAs(s.T(), err, &ae)
	_, err = ResolveScope(s.alice, "bob", false)
	require.ErrorAs(s.T(), err, &ae)
	f, err := ResolveScope(s.alice, "", false)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "alice", f.OwnerID)
	f, err = ResolveScope(s.approver, "alice", false)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "alice", f.OwnerID)

	s.submit(s.alice, "Taxi", "20.00")
	hotel := s.submit(s.alice, "Hotel", "100.50")
	s.submit(s.bob, "Lunch", "15.00")
	_, err = s.expenses.Approve(s.ctx, s.approver, hotel.ID)
	require.NoError(s.T(), err)

	stats, err := s.reports.Stats(s.ctx, core.ExpenseFilter{OwnerID: "alice"})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(12050), stats.CurrentMonthTotal.Cents)
	assert.Equal(s.T(), int64(10050), stats.ApprovedTotal.Cents)
	assert.Equal(s.T(), int64(2000), stats.PendingTotal.Cents)

	byCat, err := s.reports.ByCategory(s.ctx, core.ExpenseFilter{})
	require.NoError(s.T(), err)
	require.Len(s.T(), byCat, 1)
	assert.Equal(s.T(), int64(13550), byCat[0].Total.Cents)
	assert.Equal(s.T(), 3, byCat[0].Count)

	days, err := s.reports.ByDay(s.ctx, core.ExpenseFilter{}, 2025, 2)
	require.NoError(s.T(), err)
	assert.Len(s.T(), days, 28)
	_, err = s.reports.ByDay(s.ctx, core.ExpenseFilter{}, 2025, 13)
	var ve *core.ValidationError
	require.ErrorAs(s.T(), err, &ve)

	quarters, err := s.reports.ByQuarter(s.ctx, core.ExpenseFilter{}, 0)
	require.NoError(s.T(), err)
	require.Len(s.T(), quarters, 4)
	assert.Equal(s.T(), int64(13550), quarters[0].Total.Cents)

	d, err := s.reports.Dashboard(s.ctx, s.approver, core.ExpenseFilter{OwnerID: "boss"})
	require.NoError(s.T(), err)
	assert.Empty(s.T(), d.Recent)
	assert.NotNil(s.T(), d.Recent)
	assert.Equal(s.T(), 2, d.AwaitingReview)
	assert.Len(s.T(), d.ByMonth, 12)

	d, err = s.reports.Dashboard(s.ctx, s.alice, core.ExpenseFilter{OwnerID: "alice"})
	require.NoError(s.T(), err)
	assert.Len(s.T(), d.Recent, 2)
	assert.Zero(s.T(), d.AwaitingReview)
}

func (s *ServiceTestSuite) TestImport() {
	rows := []map[string]any{
		{"User ID": "alice", "Category": "travel", "Description": "Taxi", "Amount": "12.50", "Date": "2025-01-15"},
		{"userId": "alice", "Category Name": "Conferences", "desc": "Ticket", "Total": 199.99, "Status": "approved", "Submitted By": "boss"},
		{"Description": "", "Amount": ""},
		{"User ID": "ghost", "Category": "Travel", "Description": "x", "Amount": "1"},
		{"User ID": "alice", "Category ID": "9999", "Description": "x", "Amount": "1"},
		{"User ID": "alice", "Category": "Travel", "Description": "x", "Ammount": "5"},
	}

	_, err := s.transfer.Import(s.ctx, s.approver, rows)
	var ae *core.AuthorizationError
	require.ErrorAs(s.T(), err, &ae)

	res, err := s.transfer.Import(s.ctx, s.admin, rows)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, res.Imported)
	assert.NotEmpty(s.T(), res.BatchID)
	require.Len(s.T(), res.Errors, 3)
	assert.Equal(s.T(), "Row 4: user ghost does not exist", res.Errors[0])
	assert.Equal(s.T(), "Row 5: category 9999 does not exist", res.Errors[1])
	assert.Contains(s.T(), res.Errors[2], "Row 6: missing required field(s): amount")
	assert.Contains(s.T(), res.Errors[2], `"Ammount"`)

	imported, err := s.expenses.Query(s.ctx, core.ExpenseFilter{OwnerID: "alice"})
	require.NoError(s.T(), err)
	require.Len(s.T(), imported, 2)
	byDesc := map[string]core.ExpenseView{}
	for _, v := range imported {
		byDesc[v.Description] = v
	}
	taxi := byDesc["Taxi"]
	assert.Equal(s.T(), s.travel.ID, taxi.CategoryID, "category names match case-insensitively")
	require.NotNil(s.T(), taxi.SubmittedBy)
	assert.Equal(s.T(), "alice", *taxi.SubmittedBy)

	ticket := byDesc["Ticket"]
	assert.Equal(s.T(), "Conferences", ticket.CategoryName)
	assert.Equal(s.T(), int64(19999), ticket.Amount.Cents)
	assert.Equal(s.T(), core.StatusApproved, ticket.Status)
	assert.Equal(s.T(), "2025-03-20", ticket.Date.String())

	conf, err := s.repo.FindCategoryByName(s.ctx, "conferences")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), core.DefaultCategoryColor, conf.Color)
	assert.Equal(s.T(), "Auto-created during import", conf.Description)

	forest, err := s.categories.List(s.ctx)
	require.NoError(s.T(), err)
	assert.Len(s.T(), forest, 2, "auto-created categories show up in the cached forest")
}

func (s *ServiceTestSuite) TestImportAcceptsLargeHistoricalAmounts() {
	res, err := s.transfer.Import(s.ctx, s.admin, []map[string]any{
		{"User ID": "alice", "Category": "Travel", "Description": "Fleet purchase", "Amount": "250000.00"},
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, res.Imported)
	assert.Empty(s.T(), res.Errors)

	views, err := s.expenses.Query(s.ctx, core.ExpenseFilter{OwnerID: "alice"})
	require.NoError(s.T(), err)
	require.Len(s.T(), views, 1)
	id := views[0].ID

	notes := "invoice attached"
	for _, actor := range []core.Actor{s.alice, s.approver} {
		e, err := s.expenses.Update(s.ctx, actor, id, core.ExpensePatch{Notes: &notes})
		require.NoError(s.T(), err, actor.ID)
		assert.Equal(s.T(), int64(25_000_000), e.Amount.Cents)
	}

	bigger, err := core.ParseAmount("250000.01")
	require.NoError(s.T(), err)
	_, err = s.expenses.Update(s.ctx, s.approver, id, core.ExpensePatch{Amount: &bigger})
	var ve *core.ValidationError
	require.ErrorAs(s.T(), err, &ve)
	assert.Contains(s.T(), strings.Join(ve.Errors, "; "), "per-expense limit")
}

type failingImportStore struct {
	*storage.Repository
}

func (failingImportStore) ImportExpense(context.Context, core.Expense, string) (core.Expense, error) {
	return core.Expense{}, errors.New("write tcp 10.0.0.5:5432: connection reset by peer")
}

func (s *ServiceTestSuite) TestImportHidesStorageFailures() {
	transfer := NewTransferService(failingImportStore{s.repo}, s.repo, s.categories, nil)
	res, err := transfer.Import(s.ctx, s.admin, []map[string]any{
		{"User ID": "alice", "Category": "Travel", "Description": "Taxi", "Amount": "12.50", "Date": "2025-01-15"},
		{"User ID": "ghost", "Category": "Travel", "Description": "Taxi", "Amount": "12.50"},
	})
	require.NoError(s.T(), err)
	assert.Zero(s.T(), res.Imported)
	assert.Equal(s.T(), []string{"Row 1: internal error", "Row 2: user ghost does not exist"}, res.Errors)
}

func (s *ServiceTestSuite) TestImportWithoutRows() {
	res, err := s.transfer.Import(s.ctx, s.admin, nil)
	require.NoError(s.T(), err)
	assert.Zero(s.T(), res.Imported)
	assert.NotNil(s.T(), res.Errors)
	assert.Empty(s.T(), res.Errors)
}

func (s *ServiceTestSuite) TestHistory() {
	e := s.submit(s.alice, "Taxi", "12.30")
	_, err := s.expenses.Approve(s.ctx, s.approver, e.ID)
	require.NoError(s.T(), err)
	for _, ev := range s.publisher.events {
		_, err := s.repo.InsertAuditEvent(s.ctx, ev)
		require.NoError(s.T(), err)
	}

	for _, actor := range []core.Actor{s.alice, s.approver} {
		events, err := s.expenses.History(s.ctx, actor, e.ID)
		require.NoError(s.T(), err, actor.ID)
		require.Len(s.T(), events, 2)
		assert.Equal(s.T(), core.ActionCreated, events[0].Action)
		assert.Equal(s.T(), core.StatusApproved, events[1].ToStatus)
	}

	_, err = s.expenses.History(s.ctx, s.bob, e.ID)
	var ae *core.AuthorizationError
	assert.ErrorAs(s.T(), err, &ae)

	_, err = s.expenses.History(s.ctx, s.alice, 9999)
	assert.True(s.T(), core.IsNotFound(err))

	quiet := s.submit(s.bob, "Parking", "4.00")
	events, err := s.expenses.History(s.ctx, s.bob, quiet.ID)
	require.NoError(s.T(), err)
	assert.NotNil(s.T(), events)
	assert.Empty(s.T(), events)
}

func (s *ServiceTestSuite) TestExport() {
	s.submit(s.alice, "Taxi, airport", "12.30")

	_, err := s.transfer.ExportRows(s.ctx, s.approver, core.ExpenseFilter{})
	var ae *core.AuthorizationError
	require.ErrorAs(s.T(), err, &ae)

	rows, err := s.transfer.ExportRows(s.ctx, s.admin, core.ExpenseFilter{})
	require.NoError(s.T(), err)
	require.Len(s.T(), rows, 1)
	assert.Equal(s.T(), "Travel", rows[0].CategoryName)
	assert.Equal(s.T(), "alice@example.com", rows[0].OwnerEmail)

	var buf bytes.Buffer
	require.NoError(s.T(), WriteCSV(&buf, rows))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(s.T(), lines, 2)
	assert.True(s.T(), strings.HasPrefix(lines[0], "ID,Date,Description,Amount,Status"))
	assert.Contains(s.T(), lines[1], `"Taxi, airport",12.30,pending`)

	back, err := ReadCSV(strings.NewReader(buf.String()))
	require.NoError(s.T(), err)
	require.Len(s.T(), back, 1)
	assert.Equal(s.T(), "Taxi, airport", back[0]["Description"])

	ref, err := s.transfer.ExportToSheet(s.ctx, s.admin, core.ExpenseFilter{})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Export!A1", ref)
	assert.Equal(s.T(), core.ExportHeaders(), s.sheet.header)
	require.Len(s.T(), s.sheet.rows, 1)

	noSheet := NewTransferService(s.repo, s.repo, s.categories, nil)
	_, err = noSheet.ExportToSheet(s.ctx, s.admin, core.ExpenseFilter{})
	assert.ErrorIs(s.T(), err, ErrSheetsNotConfigured)
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func TestReadCSVStripsBOM(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("\ufeffUser ID,Amount\nalice,1.00\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0]["User ID"])
}

func TestReadCSVRejectsEmptyInput(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "import file is empty", ve.Message)

	rows, err := ReadCSV(strings.NewReader("User ID,Amount\n"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}
