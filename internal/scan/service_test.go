package scan

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"costura-backend/internal/attendance"
	"costura-backend/internal/cache"
	"costura-backend/internal/docstore/docstoretest"
	"costura-backend/internal/docstore/sqlstore"
	"costura-backend/internal/platform/apierr"
	"costura-backend/internal/platform/auth"
	"costura-backend/internal/platform/config"
	"costura-backend/internal/platform/i18n"
	"costura-backend/internal/platform/ids"
	"costura-backend/internal/platform/metrics"
	"costura-backend/internal/qr"
)

type recorder struct {
	metrics.Nop
	scans []string
}

func (r *recorder) ScanHandled(action, result string) {
	r.scans = append(r.scans, action+"/"+result)
}

type fixture struct {
	svc    *Service
	ledger *MemoryLedger
	remote *docstoretest.Flaky
	clock  *ids.FixedClock
	rec    *recorder
}

func newFixture(t *testing.T, allowed ...string) fixture {
	t.Helper()
	rs, err := sqlstore.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close(context.Background()) })
	local, err := cache.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	policy, err := attendance.NewPolicy(config.AttendanceConfig{WorkStart: "08:00", LateThresholdMinutes: 15}, time.UTC)
	require.NoError(t, err)
	clock := ids.NewFixedClock(time.Date(2024, 3, 4, 8, 5, 0, 0, time.UTC))
	remote := docstoretest.Wrap(rs)
	att := attendance.NewService(remote, local, policy, clock, ids.NewULIDGen(), metrics.Nop{}, zap.NewNop())

	ledger := NewMemoryLedger()
	rec := &recorder{}
	return fixture{
		svc:    NewService(att, ledger, config.ScanConfig{LockTTL: time.Second, AllowedLocations: allowed}, rec, zap.NewNop()),
		ledger: ledger,
		remote: remote,
		clock:  clock,
		rec:    rec,
	}
}

func payload(t *testing.T, p qr.Payload) string {
	t.Helper()
	text, err := qr.Encode(p)
	require.NoError(t, err)
	return text
}

func TestScanAlternatesEntryAndExit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	text := payload(t, qr.Universal(""))

	res, err := f.svc.Scan(ctx, "w1", "Ana", text)
	require.NoError(t, err)
	assert.Equal(t, ActionEntry, res.Action)
	assert.Equal(t, qr.DefaultLocation, res.LocationID)
	assert.Equal(t, attendance.StatusPresent, res.Record.Status)
	assert.Equal(t, "08:05", res.Record.EntryTime)

	f.clock.Set(time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC))
	res, err = f.svc.Scan(ctx, "w1", "Ana", text)
	require.NoError(t, err)
	assert.Equal(t, ActionExit, res.Action)
	assert.Equal(t, "17:00", res.Record.ExitTime)

	// 退勤後は入室扱いだが、同日の記録があるので拒否
	_, err = f.svc.Scan(ctx, "w1", "Ana", text)
	assert.True(t, apierr.Is(err, apierr.CodeConflict))

	assert.Equal(t, []string{"ENTRY/ok", "EXIT/ok", "ENTRY/conflict"}, f.rec.scans)
}

func TestScanNextDayStartsOver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	text := payload(t, qr.Universal(""))

	_, err := f.svc.Scan(ctx, "w1", "Ana", text)
	require.NoError(t, err)

	f.clock.Set(time.Date(2024, 3, 5, 8, 30, 0, 0, time.UTC))
	res, err := f.svc.Scan(ctx, "w1", "Ana", text)
	require.NoError(t, err)
	assert.Equal(t, ActionEntry, res.Action)
	assert.Equal(t, attendance.StatusLate, res.Record.Status)
}

func TestScanRejectsBadPayload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, text := range []string{"", "hola", `{"locationId":1}`, `[]`} {
		_, err := f.svc.Scan(ctx, "w1", "Ana", text)
		assert.True(t, apierr.Is(err, apierr.CodeInvalidArgument), text)
	}
	_, err := f.svc.Scan(ctx, "", "Ana", payload(t, qr.Universal("")))
	assert.True(t, apierr.Is(err, apierr.CodeInvalidArgument))
	assert.Equal(t, "none/invalid_argument", f.rec.scans[0])
}

func TestScanAllowedLocations(t *testing.T) {
	f := newFixture(t, "taller_a")
	ctx := context.Background()

	_, err := f.svc.Scan(ctx, "w1", "Ana", payload(t, qr.Universal("taller_b")))
	assert.True(t, apierr.Is(err, apierr.CodeForbidden))

	_, err = f.svc.Scan(ctx, "w1", "Ana", payload(t, qr.Universal("taller_a")))
	assert.NoError(t, err)
}

func TestScanBusy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, ok, err := f.ledger.Acquire(ctx, "w1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.Scan(ctx, "w1", "Ana", payload(t, qr.Universal("")))
	assert.True(t, apierr.Is(err, apierr.CodeScanBusy))

	// 別の作業者は影響を受けない
	_, err = f.svc.Scan(ctx, "w2", "Luis", payload(t, qr.Universal("")))
	assert.NoError(t, err)

	require.NoError(t, f.ledger.Release(ctx, "w1", tok))
	_, err = f.svc.Scan(ctx, "w1", "Ana", payload(t, qr.Universal("")))
	assert.NoError(t, err)
}

func TestScanReleasesLockOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	text := payload(t, qr.Universal(""))

	f.remote.Offline(true)
	_, err := f.svc.Scan(ctx, "w1", "Ana", text)
	assert.True(t, apierr.Is(err, apierr.CodeUnavailable))

	f.remote.Offline(false)
	_, err = f.svc.Scan(ctx, "w1", "Ana", text)
	assert.NoError(t, err)
}

func TestSingleUseQR(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	text := payload(t, qr.OneTime("", qr.KindEntry))

	res, err := f.svc.Scan(ctx, "w1", "Ana", text)
	require.NoError(t, err)
	assert.Equal(t, ActionEntry, res.Action)

	// 同じコードは他の作業者でも使えない
	_, err = f.svc.Scan(ctx, "w2", "Luis", text)
	assert.True(t, apierr.Is(err, apierr.CodeConflict))
}

func TestLegacyDirectiveIgnored(t *testing.T) {
	f := newFixture(t)
	// type=EXIT でも本日の記録が無ければ入室
	res, err := f.svc.Scan(context.Background(), "w1", "Ana", `{"locationId":"costura_pro","type":"EXIT"}`)
	require.NoError(t, err)
	assert.Equal(t, ActionEntry, res.Action)
}

type brokenAttendance struct{ Attendance }

func (brokenAttendance) Today(context.Context, string) (attendance.Record, error) {
	return attendance.Record{}, errors.New("boom")
}

func TestNextActionWrapsUntypedErrors(t *testing.T) {
	svc := NewService(brokenAttendance{}, NewMemoryLedger(), config.ScanConfig{}, metrics.Nop{}, zap.NewNop())
	_, err := svc.Scan(context.Background(), "w1", "Ana", `{"locationId":"x"}`)
	assert.True(t, apierr.Is(err, apierr.CodeUnavailable))
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	tr, err := i18n.New()
	require.NoError(t, err)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		auth.SetPrincipal(c, auth.Principal{UserID: "w1", Role: "WORKER", Name: "Ana"})
		c.Next()
	})
	RegisterRoutes(r, f.svc, tr)

	body, err := json.Marshal(ScanRequest{Payload: payload(t, qr.Universal(""))})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scan", strings.NewReader(string(body))))
	require.Equal(t, http.StatusCreated, w.Code)
	var res ScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, ActionEntry, res.Action)
	assert.Equal(t, "Ana", res.Record.WorkerName)

	f.clock.Advance(9 * time.Hour)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scan", strings.NewReader(string(body))))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"action":"EXIT"`)

	// 他人の代理は管理者のみ
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scan", strings.NewReader(`{"payload":"{}","worker_id":"w2"}`)))
	assert.Equal(t, http.StatusForbidden, w.Code)

	_, _, _ = f.ledger.Acquire(context.Background(), "w1", time.Minute)
	req := httptest.NewRequest(http.MethodPost, "/scan", strings.NewReader(string(body)))
	req.Header.Set("Accept-Language", "es")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Procesando el escaneo anterior")
}
