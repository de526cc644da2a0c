package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeAuthenticator struct {
	identity Identity
	err      error
}

func (f fakeAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	return f.identity, f.err
}

func TestMiddleware(t *testing.T) {
	var denied []DenyEvent
	var seen Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	build := func(a Authenticator) http.Handler {
		return Middleware{
			Authenticator: a,
			Authorize:     MethodRoleAuthorizer(),
			Audit: func(ctx context.Context, event DenyEvent) error {
				denied = append(denied, event)
				return nil
			},
			SkipPrefixes: []string{"/healthz"},
		}.Wrap(next)
	}

	rec := httptest.NewRecorder()
	build(fakeAuthenticator{err: ErrUnauthenticated}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data-types", nil))
	if rec.Code != http.StatusUnauthorized || len(denied) != 1 || denied[0].Reason != "unauthenticated" {
		t.Fatalf("expected 401 unauthenticated, got %d %+v", rec.Code, denied)
	}

	rec = httptest.NewRecorder()
	build(fakeAuthenticator{err: errors.New("expired")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data-types", nil))
	if rec.Code != http.StatusUnauthorized || denied[1].Reason != "invalid_token" {
		t.Fatalf("expected 401 invalid_token, got %d", rec.Code)
	}

	viewer := fakeAuthenticator{identity: Identity{Subject: "bob", Roles: []string{RoleViewer}}}
	rec = httptest.NewRecorder()
	build(viewer).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/validation-runs", nil))
	if rec.Code != http.StatusForbidden || denied[2].Subject != "bob" {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	build(viewer).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/validation-runs/r1", nil))
	if rec.Code != http.StatusNoContent || seen.Subject != "bob" {
		t.Fatalf("expected pass-through with identity, got %d %+v", rec.Code, seen)
	}

	rec = httptest.NewRecorder()
	build(fakeAuthenticator{err: ErrUnauthenticated}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected skipped prefix to pass, got %d", rec.Code)
	}
}
