package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"expenseflow/internal/core"
	"expenseflow/internal/middleware/identity"
	"expenseflow/internal/services"
)

const (
	maxJSONBody   = 1 << 20
	maxImportBody = 10 << 20
)

// decodeJSON reads a single JSON value into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeJSONLimit(w, r, dst, maxJSONBody)
}

func decodeJSONLimit(w http.ResponseWriter, r *http.Request, dst any, limit int64) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			return ve
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.NewValidationError("request body too large")
		}
		if errors.Is(err, io.EOF) {
			return core.NewValidationError("request body is empty")
		}
		return core.NewValidationError("invalid JSON body: " + err.Error())
	}
	return nil
}

// pathID parses the {id} wildcard as a positive integer.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError(fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}

// queryInt returns 0 when key is absent.
func queryInt(q url.Values, key string) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.NewValidationError(fmt.Sprintf("invalid %s %q", key, v))
	}
	return n, nil
}

// ScopeParams is the requested visibility of a list or report.
type ScopeParams struct {
	OwnerID string
	All     bool
}

func ParseScopeParams(q url.Values) ScopeParams {
	return ScopeParams{
		OwnerID: strings.TrimSpace(q.Get("userId")),
		All:     strings.EqualFold(strings.TrimSpace(q.Get("scope")), "all"),
	}
}

// ParseExpenseFilter reads the narrowing parameters of an expense query. The
// owner is resolved separately from ScopeParams.
func ParseExpenseFilter(q url.Values) (core.ExpenseFilter, error) {
	var f core.ExpenseFilter
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		s, err := core.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = s
	}
	if v := strings.TrimSpace(q.Get("categoryId")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return f, core.NewValidationError(fmt.Sprintf("invalid categoryId %q", v))
		}
		f.CategoryID = id
	}
	f.SearchText = strings.TrimSpace(q.Get("q"))
	return f, nil
}

// scopedFilter combines the query filter with the caller's allowed scope.
func scopedFilter(actor core.Actor, q url.Values) (core.ExpenseFilter, error) {
	f, err := ParseExpenseFilter(q)
	if err != nil {
		return f, err
	}
	sp := ParseScopeParams(q)
	scope, err := services.ResolveScope(actor, sp.OwnerID, sp.All)
	if err != nil {
		return f, err
	}
	f.OwnerID = scope.OwnerID
	return f, nil
}

// actorFrom returns the authenticated caller placed by the identity middleware.
func actorFrom(r *http.Request) (core.Actor, error) {
	a, ok := identity.ActorFrom(r.Context())
	if !ok {
		return core.Actor{}, identity.ErrUnauthenticated
	}
	return a, nil
}

// statusBody is the payload of PATCH /api/expenses/{id}/status.
type statusBody struct {
	Status core.Status `json:"status"`
}

// roleBody is the payload of PATCH /api/users/{id}/role.
type roleBody struct {
	Role core.Role `json:"role"`
}

// importBody accepts {"rows": [...]} as well as a bare array.
type importBody struct {
	Rows []map[string]any
}

func (b *importBody) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		return unmarshalNumbers(data, &b.Rows)
	}
	var wrapped struct {
		Rows []map[string]any `json:"rows"`
	}
	if err := unmarshalNumbers(data, &wrapped); err != nil {
		return err
	}
	b.Rows = wrapped.Rows
	return nil
}

// unmarshalNumbers decodes numeric cells as json.Number so large amounts and
// numeric ids keep every digit.
func unmarshalNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
