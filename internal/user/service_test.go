package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"costura-backend/internal/cache"
	"costura-backend/internal/docstore"
	"costura-backend/internal/docstore/docstoretest"
	"costura-backend/internal/docstore/sqlstore"
	"costura-backend/internal/platform/apierr"
	"costura-backend/internal/platform/i18n"
	"costura-backend/internal/platform/ids"
)

type fixture struct {
	svc    *Service
	remote *docstoretest.Flaky
	local  *cache.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	rs, err := sqlstore.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close(context.Background()) })
	local, err := cache.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	remote := docstoretest.Wrap(rs)
	clock := ids.NewFixedClock(time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC))
	return fixture{
		svc:    NewService(remote, local, clock, ids.NewULIDGen(), zap.NewNop()),
		remote: remote,
		local:  local,
	}
}

func createAna(t *testing.T, f fixture) User {
	t.Helper()
	u, err := f.svc.Create(context.Background(), CreateUserRequest{
		ID: "w1", Username: "ana", Password: "secret1", Name: "Ana", Role: RoleWorker, Modality: ModalityPieceRate,
	})
	require.NoError(t, err)
	return u
}

func TestCreateAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := createAna(t, f)
	assert.Equal(t, "w1", u.ID)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	got, err := f.svc.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "ana", got.Username)
	assert.True(t, got.Active)
	assert.True(t, got.Stats.TotalEarnings.IsZero())

	// キャッシュにも載る
	cu, err := f.local.GetUser(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", cu.Name)
}

func TestCreateGeneratesID(t *testing.T) {
	f := newFixture(t)
	u, err := f.svc.Create(context.Background(), CreateUserRequest{
		Username: "luis", Password: "secret1", Name: "Luis", Role: RoleAdmin, Modality: ModalityDailyRate,
	})
	require.NoError(t, err)
	assert.Len(t, u.ID, 26)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := CreateUserRequest{Username: "x", Password: "secret1", Name: "X", Role: RoleWorker, Modality: ModalityPieceRate}

	bad := base
	bad.Role = "BOSS"
	_, err := f.svc.Create(ctx, bad)
	assert.True(t, apierr.Is(err, apierr.CodeInvalidArgument))

	bad = base
	bad.Password = "123"
	_, err = f.svc.Create(ctx, bad)
	assert.True(t, apierr.Is(err, apierr.CodeInvalidArgument))

	bad = base
	bad.ID = "a/b"
	_, err = f.svc.Create(ctx, bad)
	assert.True(t, apierr.Is(err, apierr.CodeInvalidArgument))
}

func TestCreateDuplicateUsername(t *testing.T) {
	f := newFixture(t)
	createAna(t, f)
	_, err := f.svc.Create(context.Background(), CreateUserRequest{
		ID: "w2", Username: "ana", Password: "secret2", Name: "Ana B", Role: RoleWorker, Modality: ModalityPieceRate,
	})
	assert.True(t, apierr.Is(err, apierr.CodeConflict))
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	createAna(t, f)

	u, err := f.svc.Authenticate(ctx, "ana", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "w1", u.ID)

	_, err = f.svc.Authenticate(ctx, "ana", "wrong")
	assert.True(t, apierr.Is(err, apierr.CodeUnauthenticated))

	_, err = f.svc.Authenticate(ctx, "nobody", "secret1")
	assert.True(t, apierr.Is(err, apierr.CodeUnauthenticated))

	p, err := f.svc.Login(ctx, "ana", "secret1")
	require.NoError(t, err)
	assert.Equal(t, RoleWorker, p.Role)
	assert.Equal(t, "Ana", p.Name)
}

func TestAuthenticateOffline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	createAna(t, f)

	f.remote.Offline(true)
	// キャッシュ済みならオフラインでもログインできる
	_, err := f.svc.Authenticate(ctx, "ana", "secret1")
	require.NoError(t, err)

	// キャッシュに無い利用者は通信エラーとして返す
	_, err = f.svc.Authenticate(ctx, "luis", "secret1")
	assert.True(t, apierr.Is(err, apierr.CodeUnavailable))
}

func TestAuthenticateRemoteCachesUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	createAna(t, f)

	// 別端末を想定してキャッシュを作り直す
	fresh, err := cache.NewMemory()
	require.NoError(t, err)
	defer fresh.Close()
	svc := NewService(f.remote, fresh, ids.RealClock{}, ids.NewULIDGen(), zap.NewNop())

	_, err = fresh.GetUserByUsername(ctx, "ana")
	require.ErrorIs(t, err, cache.ErrNotFound)

	_, err = svc.Authenticate(ctx, "ana", "secret1")
	require.NoError(t, err)
	cu, err := fresh.GetUserByUsername(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, "w1", cu.ID)
}

func TestSetActiveBlocksLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	createAna(t, f)

	u, err := f.svc.SetActive(ctx, "w1", false)
	require.NoError(t, err)
	assert.False(t, u.Active)

	_, err = f.svc.Authenticate(ctx, "ana", "secret1")
	assert.True(t, apierr.Is(err, apierr.CodeForbidden))

	workers, err := f.svc.ListWorkers(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, workers)
	workers, err = f.svc.ListWorkers(ctx, false)
	require.NoError(t, err)
	assert.Len(t, workers, 1)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	createAna(t, f)

	name := "Ana María"
	pw := "newpass"
	u, err := f.svc.Update(ctx, "w1", UpdateUserRequest{Name: &name, Password: &pw})
	require.NoError(t, err)
	assert.Equal(t, "Ana María", u.Name)

	_, err = f.svc.Authenticate(ctx, "ana", "newpass")
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, "w1", UpdateUserRequest{})
	assert.True(t, apierr.Is(err, apierr.CodeInvalidArgument))
	_, err = f.svc.Update(ctx, "ghost", UpdateUserRequest{Name: &name})
	assert.True(t, apierr.Is(err, apierr.CodeNotFound))
}

func TestGetDistinguishesNotFoundFromTransport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, "ghost")
	assert.True(t, apierr.Is(err, apierr.CodeNotFound))

	f.remote.Offline(true)
	_, err = f.svc.Get(ctx, "ghost")
	assert.True(t, apierr.Is(err, apierr.CodeUnavailable))
}

func TestLookupWorker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	createAna(t, f)

	name, active, err := f.svc.LookupWorker(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", name)
	assert.True(t, active)

	_, _, err = f.svc.LookupWorker(ctx, "ghost")
	assert.True(t, apierr.Is(err, apierr.CodeNotFound))

	_, err = f.svc.SetActive(ctx, "w1", false)
	require.NoError(t, err)

	// 通信断ではキャッシュから
	f.remote.Offline(true)
	name, active, err = f.svc.LookupWorker(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", name)
	assert.False(t, active)

	_, _, err = f.svc.LookupWorker(ctx, "ghost")
	assert.True(t, apierr.Is(err, apierr.CodeUnavailable))
}

func TestGetMalformedDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// role を欠いた文書は既定値で埋めずにエラー
	require.NoError(t, f.remote.Create(ctx, docstore.UserPath("bad"), map[string]any{
		"basicInfo":  map[string]any{"name": "X", "username": "x", "passwordHash": "h", "modality": "PIECE_RATE", "isActive": true},
		"timestamps": map[string]any{"createdAt": "2024-01-01T00:00:00.000Z"},
	}, ""))

	_, err := f.svc.Get(ctx, "bad")
	assert.True(t, apierr.Is(err, apierr.CodeInternal))
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	createAna(t, f)
	require.NoError(t, f.remote.Create(ctx, docstore.UserPath("bad"), map[string]any{
		"basicInfo": map[string]any{"name": "X"},
	}, ""))

	rep, err := f.svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, RefreshReport{Updated: 1, Invalid: 1}, rep)

	f.remote.Offline(true)
	_, err = f.svc.Refresh(ctx)
	assert.True(t, apierr.Is(err, apierr.CodeUnavailable))
}

func TestHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	tr, err := i18n.New()
	require.NoError(t, err)
	r := gin.New()
	RegisterAdminRoutes(r, f.svc, tr)

	body := `{"id":"w9","username":"rosa","password":"secret1","name":"Rosa","role":"WORKER","modality":"DAILY_RATE"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/users/w9", w.Header().Get("Location"))

	var res UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "0.00", res.TotalEarnings)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/users/w9/active", strings.NewReader(`{"active":false}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"active":false`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users?all=true", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"rosa"`)

	req := httptest.NewRequest(http.MethodGet, "/users/ghost", nil)
	req.Header.Set("Accept-Language", "es")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "No encontrado")
}
