package services

import (
	"context"
	"strings"

	"expenseflow/internal/core"
	"expenseflow/internal/log"
)

// Identity is the profile forwarded by the authenticating proxy.
type Identity struct {
	Subject         string
	Email           string
	FirstName       string
	LastName        string
	ProfileImageURL string
}

// UserService keeps the user table in step with the identity provider and
// guards role changes.
type UserService struct {
	store           UserStore
	bootstrapAdmins map[string]bool
	logger          *log.Logger
}

// NewUserService takes the emails that start out as admin on first sign-in.
func NewUserService(store UserStore, bootstrapAdminEmails []string) *UserService {
	admins := make(map[string]bool, len(bootstrapAdminEmails))
	for _, e := range bootstrapAdminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = true
		}
	}
	return &UserService{store: store, bootstrapAdmins: admins, logger: log.Default(log.ComponentUser)}
}

// UpsertFromIdentity records id and returns the stored user with its role.
func (s *UserService) UpsertFromIdentity(ctx context.Context, id Identity) (core.User, error) {
	subject := strings.TrimSpace(id.Subject)
	if subject == "" {
		return core.User{}, core.NewValidationError("identity subject is required")
	}
	email := strings.TrimSpace(id.Email)
	if email == "" {
		email = subject
	}
	role := core.RoleUser
	if s.bootstrapAdmins[strings.ToLower(email)] {
		role = core.RoleAdmin
	}
	u, err := s.store.UpsertUser(ctx, core.User{
		ID:              subject,
		Email:           email,
		FirstName:       strings.TrimSpace(id.FirstName),
		LastName:        strings.TrimSpace(id.LastName),
		ProfileImageURL: strings.TrimSpace(id.ProfileImageURL),
	}, role)
	if err != nil {
		return core.User{}, err
	}
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id string) (core.User, error) {
	return s.store.GetUser(ctx, id)
}

// List is open to reviewers, who pick the owner of a delegated submission.
func (s *UserService) List(ctx context.Context, actor core.Actor) ([]core.User, error) {
	if err := core.RequireRole(actor, core.RoleApprover); err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx)
}

// SetRole changes a user's role. The last admin cannot be demoted.
func (s *UserService) SetRole(ctx context.Context, actor core.Actor, userID string, role core.Role) (core.User, error) {
	if err := core.RequireRole(actor, core.RoleAdmin); err != nil {
		return core.User{}, err
	}
	if !role.IsValid() {
		return core.User{}, core.NewValidationError("invalid role "+string(role), core.ErrInvalidRole)
	}
	u, err := s.store.UpdateUserRole(ctx, userID, role)
	if err != nil {
		return core.User{}, err
	}
	s.logger.InfoContext(ctx, "User role changed",
		log.FieldUserID, userID,
		log.FieldActorID, actor.ID,
		"role", role)
	return u, nil
}
