package machine

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
	"costura-backend/internal/platform/apierr"
	"costura-backend/internal/platform/auth"
	"costura-backend/internal/platform/i18n"
	"costura-backend/internal/platform/ids"
)

func newService(t *testing.T) (*Service, *ids.FixedClock) {
	t.Helper()
	local, err := cache.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })
	clock := ids.NewFixedClock(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC))
	return NewService(local, clock, zap.NewNop()), clock
}

func create(t *testing.T, s *Service, number string) Machine {
	t.Helper()
	m, err := s.Create(context.Background(), CreateMachineRequest{Name: "Recta", Number: number, Type: "Plana"})
	require.NoError(t, err)
	return m
}

func TestCreateAndList(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	a := create(t, s, "M-02")
	create(t, s, "M-01")
	assert.Equal(t, StatusOperational, a.Status)
	assert.Nil(t, a.LastMaintenance)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "M-01", all[0].Number)

	_, err = s.Create(ctx, CreateMachineRequest{Name: " ", Number: "M-03", Type: "x"})
	assert.True(t, apierr.Is(err, apierr.CodeInvalidArgument))
	_, err = s.ListByStatus(ctx, "EXPLODED")
	assert.True(t, apierr.Is(err, apierr.CodeInvalidArgument))
}

func TestProblemAndRepairCycle(t *testing.T) {
	s, clock := newService(t)
	ctx := context.Background()
	m := create(t, s, "M-01")

	got, err := s.ReportProblem(ctx, m.ID, "Aguja rota")
	require.NoError(t, err)
	assert.Equal(t, StatusMaintenance, got.Status)

	hist, err := s.History(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, HistoryProblemReported, hist[0].Type)
	assert.Equal(t, "Aguja rota", hist[0].Description)
	assert.Equal(t, "M-01", hist[0].MachineNumber)

	inMaint, err := s.ListByStatus(ctx, StatusMaintenance)
	require.NoError(t, err)
	assert.Len(t, inMaint, 1)

	clock.Advance(2 * time.Hour)
	got, err = s.MarkAsRepaired(ctx, m.ID, "Cambio de aguja", "Luis")
	require.NoError(t, err)
	assert.Equal(t, StatusOperational, got.Status)
	require.NotNil(t, got.LastMaintenance)
	assert.True(t, got.LastMaintenance.Equal(clock.Now()))

	hist, err = s.History(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, HistoryProblemSolved, hist[0].Type)
	assert.Equal(t, "Cambio de aguja", hist[0].Solution)
	assert.Equal(t, "Luis", hist[0].SolvedBy)

	stored, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastMaintenance)
}

func TestRepairRequiresFault(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	m := create(t, s, "M-01")

	_, err := s.MarkAsRepaired(ctx, m.ID, "nada", "")
	assert.True(t, apierr.Is(err, apierr.CodeConflict))

	// 失敗した遷移は履歴を残さない
	hist, err := s.History(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, hist)

	_, err = s.ReportProblem(ctx, "ghost", "x")
	assert.True(t, apierr.Is(err, apierr.CodeNotFound))
	_, err = s.ReportProblem(ctx, m.ID, "")
	assert.True(t, apierr.Is(err, apierr.CodeInvalidArgument))
}

func TestUpdate(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	m := create(t, s, "M-01")

	broken := StatusBroken
	desc := "motor quemado"
	got, err := s.Update(ctx, m.ID, UpdateMachineRequest{Status: &broken, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, StatusBroken, got.Status)
	assert.Equal(t, "Recta", got.Name)

	bad := "FLYING"
	_, err = s.Update(ctx, m.ID, UpdateMachineRequest{Status: &bad})
	assert.True(t, apierr.Is(err, apierr.CodeInvalidArgument))

	_, err = s.Update(ctx, "ghost", UpdateMachineRequest{Description: &desc})
	assert.True(t, apierr.Is(err, apierr.CodeNotFound))
}

func TestDeleteRemovesHistory(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	m := create(t, s, "M-01")
	other := create(t, s, "M-02")
	_, err := s.ReportProblem(ctx, m.ID, "ruido")
	require.NoError(t, err)
	_, err = s.ReportProblem(ctx, other.ID, "aceite")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, m.ID))
	_, err = s.Get(ctx, m.ID)
	assert.True(t, apierr.Is(err, apierr.CodeNotFound))

	all, err := s.History(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, other.ID, all[0].MachineID)

	assert.True(t, apierr.Is(s.Delete(ctx, m.ID), apierr.CodeNotFound))
}

func TestHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s, clock := newService(t)
	tr, err := i18n.New()
	require.NoError(t, err)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		auth.SetPrincipal(c, auth.Principal{UserID: "a1", Role: auth.RoleAdmin, Name: "Marta"})
		c.Next()
	})
	RegisterAdminRoutes(r, s, tr)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/machines",
		strings.NewReader(`{"name":"Overlock","machine_number":"M-07","type":"Remalladora"}`)))
	require.Equal(t, http.StatusCreated, w.Code)
	var m MachineResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, "/machines/"+m.ID, w.Header().Get("Location"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/machines/"+m.ID+"/problems", strings.NewReader(`{"description":"hilo"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"MAINTENANCE"`)

	clock.Advance(time.Minute)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/machines/"+m.ID+"/repairs", strings.NewReader(`{"solution":"tensión ajustada"}`)))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/machines/"+m.ID+"/history", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var hist []HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Len(t, hist, 2)
	assert.Equal(t, "Marta", hist[0].SolvedBy)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/machines?status=BROKEN", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/machines/"+m.ID, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/machines/"+m.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
