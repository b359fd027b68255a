package core

import (
	"errors"
	"testing"
)

func TestHasPermissionIsMonotonic(t *testing.T) {
	roles := Roles()
	for i, r1 := range roles {
		for j, r2 := range roles {
			got := HasPermission(r2, r1)
			want := j >= i
			if got != want {
				t.Fatalf("HasPermission(%s, %s) = %v, want %v", r2, r1, got, want)
			}
		}
	}
}

func TestHasPermissionUnknownRole(t *testing.T) {
	if HasPermission("superuser", RoleUser) {
		t.Fatal("unknown role must never have permission")
	}
	if HasPermission(RoleAdmin, "superuser") {
		t.Fatal("unknown required role must never be satisfied")
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Approver ")
	if err != nil || r != RoleApprover {
		t.Fatalf("ParseRole = %q, %v", r, err)
	}
	for _, bad := range []string{"", "root", "manager"} {
		_, err := ParseRole(bad)
		var ve *ValidationError
		if !errors.As(err, &ve) || !errors.Is(err, ErrInvalidRole) {
			t.Fatalf("ParseRole(%q) err = %v", bad, err)
		}
	}
}

func TestRequireRoleNamesCapability(t *testing.T) {
	err := RequireRole(Actor{ID: "u1", Role: RoleUser}, RoleAdmin)
	var ae *AuthorizationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	if ae.Message != "Administrator access required" {
		t.Fatalf("message = %q", ae.Message)
	}
	err = RequireRole(Actor{ID: "u1", Role: RoleUser}, RoleApprover)
	if !errors.As(err, &ae) || ae.Message != "Approver access required" {
		t.Fatalf("unexpected %v", err)
	}
	if err := RequireRole(Actor{ID: "a", Role: RoleAdmin}, RoleApprover); err != nil {
		t.Fatalf("admin should pass approver check: %v", err)
	}
}
