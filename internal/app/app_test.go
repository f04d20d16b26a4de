package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"costura-backend/internal/platform/auth"
	"costura-backend/internal/platform/config"
	"costura-backend/internal/qr"
	"costura-backend/internal/user"
)

func newApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	cfg, err := config.Parse([]byte(`
mode: dev
cache:
  path: ` + filepath.Join(dir, "cache.db") + `
remote:
  type: sqlite
  sqlite_path: ` + filepath.Join(dir, "remote.db") + `
auth:
  jwt_secret: test-secret
attendance:
  timezone: UTC
metrics:
  enabled: true
  namespace: apptest
`))
	require.NoError(t, err)

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	ctx := context.Background()
	_, err = a.Users.Create(ctx, user.CreateUserRequest{
		ID: "a1", Username: "marta", Password: "secret1", Name: "Marta", Role: user.RoleAdmin, Modality: user.ModalityDailyRate,
	})
	require.NoError(t, err)
	_, err = a.Users.Create(ctx, user.CreateUserRequest{
		ID: "w1", Username: "ana", Password: "secret1", Name: "Ana", Role: user.RoleWorker, Modality: user.ModalityPieceRate,
	})
	require.NoError(t, err)
	return a
}

func call(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r http.Handler, username string) string {
	t.Helper()
	w := call(t, r, http.MethodPost, "/api/v1/login", "", auth.LoginRequest{Username: username, Password: "secret1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res auth.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res.Token
}

func TestWorkdayFlow(t *testing.T) {
	a := newApp(t)
	r := a.Router()

	admin := login(t, r, "marta")
	worker := login(t, r, "ana")

	w := call(t, r, http.MethodPost, "/api/v1/operations", admin, map[string]any{"id": "op1", "name": "Pegar botones", "payment_per_unit": "0.40"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// 作業者は管理 API を使えない
	w = call(t, r, http.MethodPost, "/api/v1/operations", worker, map[string]any{"name": "x", "payment_per_unit": "1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	text, err := qr.Encode(qr.Universal(""))
	require.NoError(t, err)
	w = call(t, r, http.MethodPost, "/api/v1/scan", worker, map[string]string{"payload": text})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"action":"ENTRY"`)

	w = call(t, r, http.MethodPost, "/api/v1/production", worker, map[string]any{"operation_id": "op1", "quantity": 50})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"total_payment":"20.00"`)

	w = call(t, r, http.MethodGet, "/api/v1/production/earnings", worker, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":"20.00"`)

	w = call(t, r, http.MethodGet, "/api/v1/attendance/today", worker, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"worker_name":"Ana"`)

	w = call(t, r, http.MethodGet, "/api/v1/reports/dashboard", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"active_workers":1,"total_payment":"20.00"}`, w.Body.String())

	w = call(t, r, http.MethodPost, "/api/v1/sync", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rep SyncReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.Empty(t, rep.Errors)
	assert.Equal(t, 2, rep.Users.Updated)
	assert.Equal(t, 1, rep.Operations.Updated)

	w = call(t, r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `apptest_scans_total{action="ENTRY",result="ok"} 1`)
}

func TestAdminActsForWorker(t *testing.T) {
	a := newApp(t)
	r := a.Router()
	admin := login(t, r, "marta")

	w := call(t, r, http.MethodPost, "/api/v1/attendance/entry", admin, map[string]string{"worker_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())

	w = call(t, r, http.MethodPost, "/api/v1/attendance/entry", admin, map[string]string{"worker_id": "w1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"worker_name":"Ana"`)

	w = call(t, r, http.MethodPatch, "/api/v1/users/w1/active", admin, map[string]bool{"active": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = call(t, r, http.MethodPost, "/api/v1/attendance/exit", admin, map[string]string{"worker_id": "w1"})
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
}

func TestUnauthenticated(t *testing.T) {
	a := newApp(t)
	r := a.Router()

	w := call(t, r, http.MethodGet, "/api/v1/attendance/today", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = call(t, r, http.MethodPost, "/api/v1/login", "", auth.LoginRequest{Username: "ana", Password: "wrong1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = call(t, r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "ok"))
}

func TestOpenRemoteUnknown(t *testing.T) {
	_, err := OpenRemote(context.Background(), config.RemoteConfig{Type: "couchdb"})
	assert.Error(t, err)
}
