package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"fashion-store/models"
	"fashion-store/utils"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ownerHandler(t *testing.T, got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, ok := Owner(r.Context())
		require.True(t, ok)
		*got = owner
	})
}

func TestAuthMiddleware(t *testing.T) {
	utils.JwtKey = []byte("test-secret")
	token, err := utils.GenerateJWT("user-1", "sari@example.com", models.RoleUser)
	require.NoError(t, err)

	var owner string
	h := AuthMiddleware(ownerHandler(t, &owner))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", owner)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalAuth_IssuesGuestCookie(t *testing.T) {
	var owner string
	h := OptionalAuth(ownerHandler(t, &owner))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, GuestCookie, cookies[0].Name)
	assert.Equal(t, "guest:"+cookies[0].Value, owner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, "guest:"+cookies[0].Value, owner)
}

func TestAdminMiddleware(t *testing.T) {
	utils.JwtKey = []byte("test-secret")
	userToken, _ := utils.GenerateJWT("user-1", "u@example.com", models.RoleUser)
	adminToken, _ := utils.GenerateJWT("admin-1", "a@example.com", models.RoleAdmin)
	h := AuthMiddleware(AdminMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	for token, want := range map[string]int{userToken: http.StatusForbidden, adminToken: http.StatusOK} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code)
	}
}

func TestLoggingAndRecovery(t *testing.T) {
	log, hook := test.NewNullLogger()
	h := Logging(log)(Recovery(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "panic recovered", entries[0].Message)
	assert.Equal(t, logrus.ErrorLevel, entries[1].Level)
	assert.Equal(t, http.StatusInternalServerError, entries[1].Data["status"])
}
