package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costura-backend/internal/platform/config"
)

func TestDomainCounters(t *testing.T) {
	m := New(config.MetricsConfig{Namespace: "test"})

	m.AttendanceRegistered("entry", "LATE")
	m.AttendanceRegistered("entry", "LATE")
	m.ProductionRegistered(50)
	m.SyncPushed("attendance", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attendance.WithLabelValues("entry", "LATE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.prodCnt))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.prodUnits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncCnt.WithLabelValues("attendance", "ok")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(config.MetricsConfig{Namespace: "test"})

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/ping/:id", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping/7", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpReqCnt.WithLabelValues("GET", "/ping/:id", "200")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(w.Body)
	assert.Contains(t, string(body), "test_http_requests_total")
}
