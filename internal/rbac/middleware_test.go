package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SiroccoBreeze/pony-knows-sub001/internal/perm"
	"github.com/SiroccoBreeze/pony-knows-sub001/internal/shared"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestAs(t *testing.T, userID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if userID == "" {
		return req
	}
	sess := &shared.Session{}
	sess.SetUser(userID)
	return req.WithContext(shared.ContextWithSession(context.Background(), sess))
}

func middlewareWithRoles(roles []Role) Middleware {
	repo := &stubRepo{roles: map[int64][]Role{1: roles}}
	return Middleware{Service: NewService(repo, nil, nil, nil)}
}

func TestRequireAnyAllowsMatch(t *testing.T) {
	mw := middlewareWithRoles([]Role{{Name: "member", Permissions: []any{"post_create"}}})
	rec := httptest.NewRecorder()
	mw.RequireAny(perm.PostCreate, perm.AdminPosts)(okHandler()).ServeHTTP(rec, requestAs(t, "1"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAnyRejectsMiss(t *testing.T) {
	mw := middlewareWithRoles([]Role{{Name: "member", Permissions: []any{"post_create"}}})
	rec := httptest.NewRecorder()
	mw.RequireAny(perm.AdminUsers)(okHandler()).ServeHTTP(rec, requestAs(t, "1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "admin_access", "catalog must not leak on denial")
}

func TestRequireAllNeedsEveryToken(t *testing.T) {
	mw := middlewareWithRoles([]Role{{Name: "member", Permissions: []any{"post_create"}}})
	rec := httptest.NewRecorder()
	mw.RequireAll(perm.PostCreate, perm.CommentCreate)(okHandler()).ServeHTTP(rec, requestAs(t, "1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSuperTokenSatisfiesEverything(t *testing.T) {
	mw := middlewareWithRoles([]Role{{Name: "admin", Permissions: []any{string(perm.Super)}}})

	rec := httptest.NewRecorder()
	mw.RequireAll(perm.AdminUsers, perm.AdminRoles, perm.PostCreate)(okHandler()).ServeHTTP(rec, requestAs(t, "1"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mw.RequireSuper()(okHandler()).ServeHTTP(rec, requestAs(t, "1"))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUnauthenticatedIsNotForbidden(t *testing.T) {
	mw := middlewareWithRoles(nil)
	rec := httptest.NewRecorder()
	mw.RequireAny(perm.PostCreate)(okHandler()).ServeHTTP(rec, requestAs(t, ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireSuperRejectsPlainUser(t *testing.T) {
	mw := middlewareWithRoles([]Role{{Name: "member", Permissions: []any{"post_create"}}})
	rec := httptest.NewRecorder()
	mw.RequireSuper()(okHandler()).ServeHTTP(rec, requestAs(t, "1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
