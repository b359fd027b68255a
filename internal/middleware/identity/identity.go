// Package identity turns the headers set by the authenticating proxy into a
// core.Actor on the request context.
package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"expenseflow/internal/core"
	"expenseflow/internal/log"
	"expenseflow/internal/services"
)

const (
	HeaderUser              = "X-Forwarded-User"
	HeaderEmail             = "X-Forwarded-Email"
	HeaderPreferredUsername = "X-Forwarded-Preferred-Username"
	HeaderGivenName         = "X-Forwarded-Given-Name"
	HeaderFamilyName        = "X-Forwarded-Family-Name"
	HeaderPicture           = "X-Forwarded-Picture"
)

// ErrUnauthenticated is passed to the error callback when no subject header
// is present.
var ErrUnauthenticated = errors.New("authentication required")

// Resolver records the forwarded identity and returns the stored user.
type Resolver interface {
	UpsertFromIdentity(ctx context.Context, id services.Identity) (core.User, error)
}

type contextKey struct{}

type principal struct {
	actor core.Actor
	user  core.User
}

// FromRequest reads the forwarded identity headers.
func FromRequest(r *http.Request) services.Identity {
	email := strings.TrimSpace(r.Header.Get(HeaderEmail))
	if email == "" {
		email = strings.TrimSpace(r.Header.Get(HeaderPreferredUsername))
	}
	return services.Identity{
		Subject:         strings.TrimSpace(r.Header.Get(HeaderUser)),
		Email:           email,
		FirstName:       r.Header.Get(HeaderGivenName),
		LastName:        r.Header.Get(HeaderFamilyName),
		ProfileImageURL: r.Header.Get(HeaderPicture),
	}
}

// Middleware upserts the caller on every request and stores the resulting
// actor. Failures go to onError so the API renders them in its own format.
func Middleware(resolver Resolver, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromRequest(r)
			if id.Subject == "" {
				onError(w, r, ErrUnauthenticated)
				return
			}
			u, err := resolver.UpsertFromIdentity(r.Context(), id)
			if err != nil {
				onError(w, r, err)
				return
			}
			actor := core.Actor{ID: u.ID, Role: u.Role}
			ctx := NewContext(r.Context(), actor, u)
			ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldActorID, actor.ID, log.FieldActorRole, string(actor.Role)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewContext stores actor and user on ctx.
func NewContext(ctx context.Context, actor core.Actor, u core.User) context.Context {
	return context.WithValue(ctx, contextKey{}, principal{actor: actor, user: u})
}

// ActorFrom returns the authenticated actor.
func ActorFrom(ctx context.Context) (core.Actor, bool) {
	p, ok := ctx.Value(contextKey{}).(principal)
	return p.actor, ok
}

// UserFrom returns the stored profile of the authenticated caller.
func UserFrom(ctx context.Context) (core.User, bool) {
	p, ok := ctx.Value(contextKey{}).(principal)
	return p.user, ok
}
