package report

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"costura-backend/internal/platform/apierr"
	"costura-backend/internal/platform/i18n"
)

type Handler struct {
	svc *Service
	tr  *i18n.Translator
}

func RegisterAdminRoutes(r gin.IRoutes, svc *Service, tr *i18n.Translator) {
	h := &Handler{svc: svc, tr: tr}

	r.GET("/reports/daily", h.Daily) // ?date=YYYY-MM-DD（省略時は本日）
	r.GET("/reports/dashboard", h.Dashboard)
	r.GET("/reports/export", h.Export)
}

func (h *Handler) Daily(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = h.svc.Today()
	}
	d, err := h.svc.DailyProgress(c.Request.Context(), date)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, d.toDTO())
}

func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, DashboardResponse{ActiveWorkers: d.ActiveWorkers, TotalPayment: d.TotalPayment.StringFixed(2)})
}

func (h *Handler) Export(c *gin.Context) {
	var q ExportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.tr.Error(c, apierr.ErrInvalid("invalid export parameters"))
		return
	}
	f, err := h.svc.Export(c.Request.Context(), q)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, f.Name))
	c.Data(http.StatusOK, f.ContentType, f.Data)
}
