// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/redinnova/innovanet/internal/auth"
	"github.com/redinnova/innovanet/internal/auth/authtest"
	"github.com/redinnova/innovanet/internal/auth/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testSecret = "0123456789abcdef0123456789abcdef"

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	handler http.Handler
	svc     *auth.CredentialService
	tokens  *TokenMaker
	admin   *auth.Account
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, codes ...string) *testEnv {
	t.Helper()
	store := memory.NewStore()
	svc, err := auth.NewCredentialService(store, store, authtest.FastHasher(),
		auth.WithClock(authtest.NewFakeClock(t0)),
		auth.WithCodeGenerator(authtest.NewSequenceCodes(codes...)),
		auth.WithLogger(discardLogger()),
	)
	require.NoError(t, err)

	tokens, err := NewTokenMaker(testSecret, time.Hour)
	require.NoError(t, err)

	admin, err := svc.CreateAccount(context.Background(), auth.AccountData{
		Email:          "admin@example.org",
		Name:           "Administrador",
		EnrollmentCode: "ADMIN-1",
		Role:           auth.RoleAdmin,
		Password:       "admin-pass",
	})
	require.NoError(t, err)

	return &testEnv{
		handler: NewHandler(svc, tokens, discardLogger()).Routes(),
		svc:     svc,
		tokens:  tokens,
		admin:   admin,
	}
}

type envelope struct {
	Status string          `json:"status"`
	Error  string          `json:"error"`
	Data   json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (e *testEnv) tokenFor(t *testing.T, a *auth.Account) string {
	t.Helper()
	token, _, err := e.tokens.Issue(a)
	require.NoError(t, err)
	return token
}

func (e *testEnv) registerManager(t *testing.T, email string) *auth.Account {
	t.Helper()
	a, err := e.svc.Register(context.Background(), auth.RegistrationData{
		Name:           "Lucía",
		LastName:       "Pérez",
		EnrollmentCode: "MED-2024",
		Email:          email,
		Center:         "IES Innova",
	})
	require.NoError(t, err)
	return a
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)

	t.Run("valid password returns a token", func(t *testing.T) {
		rec, env := e.do(t, http.MethodPost, "/api/v1/auth/login",
			map[string]string{"email": "admin@example.org", "password": "admin-pass"}, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, StatusOK, env.Status)

		resp := decodeData[LoginResponse](t, env)
		assert.False(t, resp.PasswordChangeRequired)
		assert.Equal(t, e.admin.ID.String(), resp.Account.ID)
		assert.Equal(t, "admin", resp.Account.Role)

		claims, err := e.tokens.Parse(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, e.admin.ID.String(), claims.Subject)
		assert.Equal(t, "admin", claims.Role)
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		rec, env := e.do(t, http.MethodPost, "/api/v1/auth/login",
			map[string]string{"email": "admin@example.org", "password": "nope"}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, StatusError, env.Status)
		assert.Equal(t, "invalid credentials", env.Error)
	})

	t.Run("unknown email is unauthorized", func(t *testing.T) {
		rec, env := e.do(t, http.MethodPost, "/api/v1/auth/login",
			map[string]string{"email": "ghost@example.org", "password": "admin-pass"}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid credentials", env.Error)
	})

	t.Run("missing fields are listed", func(t *testing.T) {
		rec, env := e.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{}, "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "field email is a required field, field password is a required field", env.Error)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec, env := e.do(t, http.MethodPost, "/api/v1/auth/login", "{not json", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid request body", env.Error)
	})
}

func TestRegister(t *testing.T) {
	e := newTestEnv(t)
	body := map[string]string{
		"name":            "Lucía",
		"last_name":       "Pérez",
		"enrollment_code": "MED-2024",
		"email":           "lucia@example.org",
		"phone":           "600000000",
		"center":          "IES Innova",
	}

	rec, env := e.do(t, http.MethodPost, "/api/v1/auth/register", body, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	view := decodeData[AccountView](t, env)
	assert.Equal(t, "manager", view.Role)
	assert.True(t, view.PasswordChangeRequired)
	assert.Equal(t, "lucia@example.org", view.Email)

	t.Run("enrollment code logs in and asks for a new password", func(t *testing.T) {
		rec, env := e.do(t, http.MethodPost, "/api/v1/auth/login",
			map[string]string{"email": "lucia@example.org", "password": "MED-2024"}, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decodeData[LoginResponse](t, env).PasswordChangeRequired)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		rec, env := e.do(t, http.MethodPost, "/api/v1/auth/register", body, "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "email already registered", env.Error)
	})

	t.Run("invalid email", func(t *testing.T) {
		bad := map[string]string{"name": "X", "enrollment_code": "C", "email": "not-an-email"}
		rec, env := e.do(t, http.MethodPost, "/api/v1/auth/register", bad, "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "field email is not a valid email", env.Error)
	})
}

func TestRecoveryFlow(t *testing.T) {
	// The unknown-email request draws a code too.
	e := newTestEnv(t, "UNUSED", "A1B2C3")
	e.registerManager(t, "lucia@example.org")

	rec, env := e.do(t, http.MethodPost, "/api/v1/auth/recovery",
		map[string]string{"email": "ghost@example.org"}, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, StatusOK, env.Status)
	assert.Empty(t, env.Data)

	rec, env = e.do(t, http.MethodPost, "/api/v1/auth/recovery",
		map[string]string{"email": "lucia@example.org"}, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotContains(t, rec.Body.String(), "A1B2C3")
	assert.Empty(t, env.Data)

	verify := func(code string) bool {
		rec, env := e.do(t, http.MethodPost, "/api/v1/auth/recovery/verify",
			map[string]string{"email": "lucia@example.org", "code": code}, "")
		require.Equal(t, http.StatusOK, rec.Code)
		return decodeData[VerifyResponse](t, env).Valid
	}
	assert.False(t, verify("WRONG1"))
	assert.True(t, verify("A1B2C3"))

	rec, _ = e.do(t, http.MethodPost, "/api/v1/auth/recovery/reset",
		map[string]string{"email": "lucia@example.org", "code": "A1B2C3", "new_password": "n3w-secret"}, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = e.do(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "lucia@example.org", "password": "n3w-secret"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	t.Run("code is single use", func(t *testing.T) {
		rec, env := e.do(t, http.MethodPost, "/api/v1/auth/recovery/reset",
			map[string]string{"email": "lucia@example.org", "code": "A1B2C3", "new_password": "other"}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid or expired recovery code", env.Error)
	})

	t.Run("reset requires a new password", func(t *testing.T) {
		rec, env := e.do(t, http.MethodPost, "/api/v1/auth/recovery/reset",
			map[string]string{"email": "lucia@example.org", "code": "A1B2C3"}, "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "field new_password is a required field", env.Error)
	})
}

func TestChangePassword(t *testing.T) {
	e := newTestEnv(t)
	manager := e.registerManager(t, "lucia@example.org")
	body := map[string]string{"new_password": "mi-clave-nueva"}

	t.Run("without token", func(t *testing.T) {
		rec, env := e.do(t, http.MethodPost, "/api/v1/me/password", body, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "missing or invalid authorization header", env.Error)
	})

	t.Run("with a forged token", func(t *testing.T) {
		forger, err := NewTokenMaker("ffffffffffffffffffffffffffffffff", time.Hour)
		require.NoError(t, err)
		forged, _, err := forger.Issue(manager)
		require.NoError(t, err)

		rec, env := e.do(t, http.MethodPost, "/api/v1/me/password", body, forged)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid or expired token", env.Error)
	})

	t.Run("changes the password and clears the change flag", func(t *testing.T) {
		rec, _ := e.do(t, http.MethodPost, "/api/v1/me/password", body, e.tokenFor(t, manager))
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec, env := e.do(t, http.MethodPost, "/api/v1/auth/login",
			map[string]string{"email": "lucia@example.org", "password": "mi-clave-nueva"}, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decodeData[LoginResponse](t, env).PasswordChangeRequired)

		rec, _ = e.do(t, http.MethodPost, "/api/v1/auth/login",
			map[string]string{"email": "lucia@example.org", "password": "MED-2024"}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("deleted account", func(t *testing.T) {
		gone := e.registerManager(t, "gone@example.org")
		token := e.tokenFor(t, gone)
		require.NoError(t, e.svc.DeleteAccount(context.Background(), gone.ID))

		rec, env := e.do(t, http.MethodPost, "/api/v1/me/password", body, token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "account no longer exists", env.Error)
	})
}

func TestAccountRoutes_RequireAdmin(t *testing.T) {
	e := newTestEnv(t)
	manager := e.registerManager(t, "lucia@example.org")

	rec, env := e.do(t, http.MethodGet, "/api/v1/accounts", nil, e.tokenFor(t, manager))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "insufficient role", env.Error)

	rec, _ = e.do(t, http.MethodGet, "/api/v1/accounts", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccountRoutes_RoleIsReadFromTheAccount(t *testing.T) {
	t.Run("demoted admin is forbidden with a token issued before", func(t *testing.T) {
		e := newTestEnv(t)
		other, err := e.svc.CreateAccount(context.Background(), auth.AccountData{
			Email: "jefa@example.org", Name: "Jefa", EnrollmentCode: "JEFA-1", Role: auth.RoleAdmin,
		})
		require.NoError(t, err)
		token := e.tokenFor(t, other)

		rec, _ := e.do(t, http.MethodGet, "/api/v1/accounts", nil, token)
		require.Equal(t, http.StatusOK, rec.Code)

		rec, _ = e.do(t, http.MethodPatch, "/api/v1/accounts/"+other.ID.String(),
			map[string]string{"role": "manager"}, e.tokenFor(t, e.admin))
		require.Equal(t, http.StatusOK, rec.Code)

		rec, env := e.do(t, http.MethodGet, "/api/v1/accounts", nil, token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "insufficient role", env.Error)
	})

	t.Run("deleted admin is unauthorized with a token issued before", func(t *testing.T) {
		e := newTestEnv(t)
		token := e.tokenFor(t, e.admin)
		require.NoError(t, e.svc.DeleteAccount(context.Background(), e.admin.ID))

		rec, env := e.do(t, http.MethodGet, "/api/v1/accounts", nil, token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "account no longer exists", env.Error)
	})

	t.Run("promoted manager is allowed with a token issued before", func(t *testing.T) {
		e := newTestEnv(t)
		manager := e.registerManager(t, "lucia@example.org")
		token := e.tokenFor(t, manager)

		role := auth.RoleAdmin
		_, err := e.svc.UpdateProfile(context.Background(), manager.ID, auth.ProfileUpdate{Role: &role})
		require.NoError(t, err)

		rec, _ := e.do(t, http.MethodGet, "/api/v1/accounts", nil, token)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAccountRoutes(t *testing.T) {
	e := newTestEnv(t)
	token := e.tokenFor(t, e.admin)

	create := map[string]string{
		"email":           "coord@example.org",
		"name":            "Marta",
		"enrollment_code": "COORD-7",
		"network":         "Red Norte",
		"role":            "subnet_coordinator",
	}
	rec, env := e.do(t, http.MethodPost, "/api/v1/accounts", create, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeData[AccountView](t, env)
	assert.Equal(t, "subnet_coordinator", created.Role)
	assert.True(t, created.PasswordChangeRequired)
	path := "/api/v1/accounts/" + created.ID

	t.Run("create duplicate conflicts", func(t *testing.T) {
		rec, _ := e.do(t, http.MethodPost, "/api/v1/accounts", create, token)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("create rejects unknown role", func(t *testing.T) {
		bad := map[string]string{"email": "x@example.org", "name": "X", "enrollment_code": "X", "role": "root"}
		rec, env := e.do(t, http.MethodPost, "/api/v1/accounts", bad, token)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, env.Error, "field role must be one of")
	})

	t.Run("list", func(t *testing.T) {
		rec, env := e.do(t, http.MethodGet, "/api/v1/accounts", nil, token)
		require.Equal(t, http.StatusOK, rec.Code)
		views := decodeData[[]AccountView](t, env)
		require.Len(t, views, 2)
		assert.Equal(t, e.admin.ID.String(), views[0].ID)
		assert.Equal(t, created.ID, views[1].ID)
		assert.NotContains(t, rec.Body.String(), "argon2id")
	})

	t.Run("get", func(t *testing.T) {
		rec, env := e.do(t, http.MethodGet, path, nil, token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Red Norte", decodeData[AccountView](t, env).Network)
	})

	t.Run("get unknown", func(t *testing.T) {
		rec, env := e.do(t, http.MethodGet, "/api/v1/accounts/"+ulid.Make().String(), nil, token)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "account not found", env.Error)
	})

	t.Run("get with malformed id", func(t *testing.T) {
		rec, env := e.do(t, http.MethodGet, "/api/v1/accounts/nope", nil, token)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid account id", env.Error)
	})

	t.Run("patch", func(t *testing.T) {
		rec, env := e.do(t, http.MethodPatch, path,
			map[string]string{"name": "Marta Ruiz", "role": "general_coordinator"}, token)
		require.Equal(t, http.StatusOK, rec.Code)
		view := decodeData[AccountView](t, env)
		assert.Equal(t, "Marta Ruiz", view.Name)
		assert.Equal(t, "general_coordinator", view.Role)
		assert.Equal(t, "Red Norte", view.Network)
	})

	t.Run("patch rejects unknown role", func(t *testing.T) {
		rec, _ := e.do(t, http.MethodPatch, path, map[string]string{"role": "root"}, token)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("admin reset puts the account back on its enrollment code", func(t *testing.T) {
		_, err := e.svc.ChangePassword(context.Background(), ulid.MustParse(created.ID), "chosen-pass")
		require.NoError(t, err)

		rec, _ := e.do(t, http.MethodPost, path+"/reset-password", nil, token)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec, env := e.do(t, http.MethodPost, "/api/v1/auth/login",
			map[string]string{"email": "coord@example.org", "password": "COORD-7"}, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decodeData[LoginResponse](t, env).PasswordChangeRequired)
	})

	t.Run("admin reset of unknown account", func(t *testing.T) {
		rec, _ := e.do(t, http.MethodPost, "/api/v1/accounts/"+ulid.Make().String()+"/reset-password", nil, token)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec, _ := e.do(t, http.MethodDelete, path, nil, token)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec, _ = e.do(t, http.MethodGet, path, nil, token)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec, _ = e.do(t, http.MethodDelete, path, nil, token)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUnknownRoute(t *testing.T) {
	e := newTestEnv(t)
	rec, env := e.do(t, http.MethodGet, "/api/v1/nothing-here", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "route not found", env.Error)
}

func TestRequestsAreCounted(t *testing.T) {
	e := newTestEnv(t)
	counter := HTTPRequests.WithLabelValues("/api/v1/auth/login", "401")
	before := testutil.ToFloat64(counter)

	e.do(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "ghost@example.org", "password": "x"}, "")

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
