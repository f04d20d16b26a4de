package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"

	"costura-backend/internal/cache"
	"costura-backend/internal/platform/apierr"
	"costura-backend/internal/platform/i18n"
	"costura-backend/internal/platform/ids"
)

func newService(t *testing.T) *Service {
	t.Helper()
	local, err := cache.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })
	seed(t, local)
	clock := ids.NewFixedClock(time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC))
	return NewService(local, time.UTC, clock, zap.NewNop())
}

func seed(t *testing.T, local *cache.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, local.UpsertUsers(ctx, []cache.User{
		{ID: "w1", Username: "ana", Name: "Ana", Role: "WORKER", Active: true},
		{ID: "w2", Username: "luis", Name: "Luis", Role: "WORKER", Active: true},
		{ID: "w3", Username: "sato", Name: "佐藤", Role: "WORKER", Active: false},
		{ID: "w4", Username: "rosa", Name: "Rosa", Role: "WORKER", Active: true},
		{ID: "a1", Username: "admin", Name: "Marta", Role: "ADMIN", Active: true},
	}))
	for _, a := range []cache.AttendanceRecord{
		{ID: "at1", WorkerID: "w1", WorkerName: "Ana", Date: "2024-03-04", EntryTime: "07:55", ExitTime: "17:00", Status: "PRESENT", YearMonth: "2024-03", Synced: true},
		{ID: "at2", WorkerID: "w2", WorkerName: "Luis", Date: "2024-03-04", EntryTime: "08:30", Status: "LATE", YearMonth: "2024-03", Synced: true},
		{ID: "at3", WorkerID: "w1", WorkerName: "Ana", Date: "2024-03-01", EntryTime: "08:00", ExitTime: "16:00", Status: "PRESENT", YearMonth: "2024-03", Synced: true},
	} {
		require.NoError(t, local.PutAttendance(ctx, a))
	}
	for _, p := range []cache.ProductionRecord{
		prod("p1", "w1", "Pegar botones", 50, "0.40", time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)),
		prod("p2", "w1", "Pegar botones", 10, "0.40", time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)),
		prod("p3", "w2", "Ojal", 8, "1.25", time.Date(2024, 3, 3, 11, 0, 0, 0, time.UTC)),
		prod("p4", "w3", "Remate", 4, "0.125", time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)),
		prod("p5", "w2", "Ojal", 1, "1.25", time.Date(2024, 2, 28, 9, 0, 0, 0, time.UTC)),
	} {
		require.NoError(t, local.InsertProduction(ctx, p))
	}
}

func prod(id, worker, op string, qty int64, rate string, at time.Time) cache.ProductionRecord {
	r := decimal.RequireFromString(rate)
	return cache.ProductionRecord{
		ID: id, WorkerID: worker, OperationID: op, OperationName: op, Quantity: qty,
		PaymentPerUnit: r, TotalPayment: r.Mul(decimal.NewFromInt(qty)),
		Date: at, YearMonth: at.Format("2006-01"), Synced: true,
	}
}

func TestDailyProgress(t *testing.T) {
	s := newService(t)
	d, err := s.DailyProgress(context.Background(), "2024-03-04")
	require.NoError(t, err)

	require.Len(t, d.Workers, 3) // 在籍中の作業者のみ
	byID := map[string]WorkerDay{}
	for _, w := range d.Workers {
		byID[w.WorkerID] = w
	}
	assert.Equal(t, "PRESENT", byID["w1"].Status)
	assert.Equal(t, int64(60), byID["w1"].Units)
	assert.Equal(t, "24.00", byID["w1"].Earnings.StringFixed(2))
	assert.Equal(t, "LATE", byID["w2"].Status)
	assert.Equal(t, int64(0), byID["w2"].Units)
	assert.Equal(t, "ABSENT", byID["w4"].Status)

	assert.Equal(t, 2, d.Present)
	assert.Equal(t, 1, d.Late)
	assert.Equal(t, 1, d.Absent)
	assert.Equal(t, int64(60), d.Units)
	assert.Equal(t, "24.00", d.Earnings.StringFixed(2))

	_, err = s.DailyProgress(context.Background(), "04/03/2024")
	assert.True(t, apierr.Is(err, apierr.CodeInvalidArgument))
}

func TestDashboard(t *testing.T) {
	s := newService(t)
	d, err := s.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, d.ActiveWorkers)
	// 20 + 4 + 10 + 0.5 + 1.25
	assert.Equal(t, "35.75", d.TotalPayment.StringFixed(2))
}

func TestExportXLSX(t *testing.T) {
	s := newService(t)
	f, err := s.Export(context.Background(), ExportQuery{Month: "2024-03"})
	require.NoError(t, err)
	assert.Equal(t, "production_2024-03.xlsx", f.Name)

	x, err := excelize.OpenReader(bytes.NewReader(f.Data))
	require.NoError(t, err)
	defer x.Close()
	rows, err := x.GetRows("Produccion", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 5) // ヘッダ + 3 月分 4 件
	assert.Equal(t, "Operación", rows[0][3])
	// 古い順
	assert.Equal(t, "2024-03-02 09:00", rows[1][0])
	assert.Equal(t, "佐藤", rows[1][2])
	assert.Equal(t, "50", rows[3][4])
}

func TestExportAttendanceCSV(t *testing.T) {
	s := newService(t)
	f, err := s.Export(context.Background(), ExportQuery{Month: "2024-03", Kind: KindAttendance, Format: FormatCSV})
	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", f.ContentType)

	recs, err := csv.NewReader(bytes.NewReader(f.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, []string{"2024-03-01", "w1", "Ana", "08:00", "16:00", "PRESENT"}, recs[1])
	assert.Equal(t, "w2", recs[2][1])
	assert.Equal(t, "", recs[2][4])
}

func TestExportLegacyEncodings(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	f, err := s.Export(ctx, ExportQuery{Month: "2024-03", Format: FormatCSV, Encoding: "windows-1252"})
	require.NoError(t, err)
	assert.True(t, bytes.Contains(f.Data, []byte{'O', 'p', 'e', 'r', 'a', 'c', 'i', 0xF3, 'n'}))
	dec, err := charmap.Windows1252.NewDecoder().Bytes(f.Data)
	require.NoError(t, err)
	recs, err := csv.NewReader(bytes.NewReader(dec)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "Operación", recs[0][3])
	// 単価は桁を落とさない
	assert.Equal(t, "0.125", recs[1][5])
	assert.Equal(t, "0.50", recs[1][6])

	f, err = s.Export(ctx, ExportQuery{Month: "2024-03", Format: FormatCSV, Encoding: "shift_jis"})
	require.NoError(t, err)
	dec, err = japanese.ShiftJIS.NewDecoder().Bytes(f.Data)
	require.NoError(t, err)
	assert.Contains(t, string(dec), "佐藤")

	_, err = s.Export(ctx, ExportQuery{Month: "2024-03", Format: FormatCSV, Encoding: "ebcdic"})
	assert.True(t, apierr.Is(err, apierr.CodeInvalidArgument))
	_, err = s.Export(ctx, ExportQuery{Month: "marzo"})
	assert.True(t, apierr.Is(err, apierr.CodeInvalidArgument))
}

func TestHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newService(t)
	tr, err := i18n.New()
	require.NoError(t, err)
	r := gin.New()
	RegisterAdminRoutes(r, s, tr)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/daily", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"date":"2024-03-04"`)
	assert.Contains(t, w.Body.String(), `"earnings":"24.00"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/dashboard", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"active_workers":3,"total_payment":"35.75"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/export?month=2024-03&format=csv", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="production_2024-03.csv"`, w.Header().Get("Content-Disposition"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/export?month=2024-03&format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
