package core

import "strings"

// Role is the only authorization attribute of a user. The set is closed.
type Role string

const (
	RoleUser     Role = "user"
	RoleApprover Role = "approver"
	RoleAdmin    Role = "admin"
)

var roleRank = map[Role]int{
	RoleUser:     0,
	RoleApprover: 1,
	RoleAdmin:    2,
}

// Roles lists every role from least to most privileged.
func Roles() []Role { return []Role{RoleUser, RoleApprover, RoleAdmin} }

// ParseRole accepts exactly the known role names (case-insensitive, trimmed).
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", NewValidationError("invalid role "+quote(s)+" (expected user, approver or admin)", ErrInvalidRole)
	}
	return r, nil
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// Rank returns the position of r in the ordering, or -1 for unknown roles.
func (r Role) Rank() int {
	if rank, ok := roleRank[r]; ok {
		return rank
	}
	return -1
}

// UnmarshalText rejects unknown roles at decode time.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Capability is the user-facing name of what the role grants.
func (r Role) Capability() string {
	switch r {
	case RoleAdmin:
		return "Administrator access required"
	case RoleApprover:
		return "Approver access required"
	default:
		return "Authentication required"
	}
}

// HasPermission reports whether actual ranks at or above required. Unknown roles
// never have permission.
func HasPermission(actual, required Role) bool {
	if !actual.IsValid() || !required.IsValid() {
		return false
	}
	return actual.Rank() >= required.Rank()
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string
	Role Role
}

// IsReviewer reports whether the actor may review other users' expenses.
func (a Actor) IsReviewer() bool { return HasPermission(a.Role, RoleApprover) }

// IsAdmin reports whether the actor is an administrator.
func (a Actor) IsAdmin() bool { return HasPermission(a.Role, RoleAdmin) }

// RequireRole returns an AuthorizationError naming the capability when the actor
// ranks below required.
func RequireRole(a Actor, required Role) error {
	if HasPermission(a.Role, required) {
		return nil
	}
	return &AuthorizationError{Message: required.Capability()}
}

func quote(s string) string { return `"` + s + `"` }
