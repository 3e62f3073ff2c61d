package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/portalescola/portalescola/internal/auth"
	"github.com/portalescola/portalescola/internal/authz"
	_ "github.com/portalescola/portalescola/testing"
)

func newAuthRouter(t *testing.T) (*chi.Mux, *facadeFixture) {
	t.Helper()
	fx := newFacadeFixture(t)
	handler := auth.NewHandler(nil, fx.facade)
	router := chi.NewRouter()
	router.Route("/auth", handler.MountRoutes)
	return router, fx
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func signInOverHTTP(t *testing.T, router http.Handler) string {
	t.Helper()
	res := postJSON(t, router, "/auth/sign-in", credentials())
	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		Session struct {
			AccessToken string `json:"accessToken"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.NotEmpty(t, body.Session.AccessToken)
	return body.Session.AccessToken
}

func authedRequest(method, path, token string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestSignInEndpoint(t *testing.T) {
	router, _ := newAuthRouter(t)

	res := postJSON(t, router, "/auth/sign-in", credentials())
	require.Equal(t, http.StatusOK, res.Code)

	var body struct {
		User auth.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Equal(t, "user-1", body.User.ID)
	require.True(t, body.User.ResolvedPermissions.Grants(authz.ModuleMaterialDidatico, authz.ActionWrite))
}

func TestSignInMalformedBody(t *testing.T) {
	router, _ := newAuthRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/sign-in", bytes.NewReader([]byte("{oops")))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

// A structurally invalid sign-in gets the same answer as a wrong
// password, so the endpoint leaks nothing about known accounts.
func TestSignInInvalidInputIndistinguishable(t *testing.T) {
	router, _ := newAuthRouter(t)

	shapeRes := postJSON(t, router, "/auth/sign-in", map[string]string{
		"email": "not-an-email", "password": "x",
	})
	require.Equal(t, http.StatusUnauthorized, shapeRes.Code)

	wrongRes := postJSON(t, router, "/auth/sign-in", map[string]string{
		"email": "prof@escola.example", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, wrongRes.Code)
	require.Equal(t, shapeRes.Body.String(), wrongRes.Body.String())
}

func TestRequireSessionRejectsMissingToken(t *testing.T) {
	router, _ := newAuthRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)

	req = authedRequest(http.MethodGet, "/auth/me", "no-such-token")
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestMeEndpoint(t *testing.T) {
	router, _ := newAuthRouter(t)
	token := signInOverHTTP(t, router)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, authedRequest(http.MethodGet, "/auth/me", token))
	require.Equal(t, http.StatusOK, res.Code)

	var user auth.User
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &user))
	require.Equal(t, "prof@escola.example", user.Email)
}

func TestProbePermissionEndpoint(t *testing.T) {
	router, _ := newAuthRouter(t)
	token := signInOverHTTP(t, router)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, authedRequest(http.MethodGet, "/auth/permissions/material_didatico/write", token))
	require.Equal(t, http.StatusOK, res.Code)

	var body map[string]bool
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.True(t, body["granted"])

	res = httptest.NewRecorder()
	router.ServeHTTP(res, authedRequest(http.MethodGet, "/auth/permissions/financeiro/read", token))
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.False(t, body["granted"])
}

func TestProbeRoleEndpoint(t *testing.T) {
	router, _ := newAuthRouter(t)
	token := signInOverHTTP(t, router)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, authedRequest(http.MethodGet, "/auth/roles/teacher", token))
	require.Equal(t, http.StatusOK, res.Code)

	var body map[string]bool
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.True(t, body["satisfied"])

	res = httptest.NewRecorder()
	router.ServeHTTP(res, authedRequest(http.MethodGet, "/auth/roles/super_admin", token))
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.False(t, body["satisfied"])
}

func TestSignOutEndpoint(t *testing.T) {
	router, _ := newAuthRouter(t)
	token := signInOverHTTP(t, router)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, authedRequest(http.MethodPost, "/auth/sign-out", token))
	require.Equal(t, http.StatusNoContent, res.Code)

	// The revoked token no longer authenticates.
	res = httptest.NewRecorder()
	router.ServeHTTP(res, authedRequest(http.MethodGet, "/auth/me", token))
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	router, _ := newAuthRouter(t)
	token := signInOverHTTP(t, router)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, authedRequest(http.MethodPost, "/auth/refresh", token))
	require.Equal(t, http.StatusOK, res.Code)

	var refreshed struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &refreshed))
	require.NotEqual(t, token, refreshed.AccessToken)

	// The pre-refresh token fails closed.
	res = httptest.NewRecorder()
	router.ServeHTTP(res, authedRequest(http.MethodGet, "/auth/me", token))
	require.Equal(t, http.StatusUnauthorized, res.Code)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, authedRequest(http.MethodGet, "/auth/me", refreshed.AccessToken))
	require.Equal(t, http.StatusOK, res.Code)
}

func TestUpdateProfileEndpoint(t *testing.T) {
	router, fx := newAuthRouter(t)
	token := signInOverHTTP(t, router)

	role, err := fx.registry.AddRole("Coordenador de Laboratório", "", authz.ModulePermissions{
		authz.ModuleFinanceiro: {Read: true},
	}, true)
	require.NoError(t, err)

	data, err := json.Marshal(map[string]any{"dynamicRoleIds": []string{role.ID}})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPatch, "/auth/profile", bytes.NewReader(data))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, authedRequest(http.MethodGet, "/auth/permissions/financeiro/read", token))
	require.Equal(t, http.StatusOK, res.Code)
	var body map[string]bool
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.True(t, body["granted"])
}
