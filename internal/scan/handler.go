package scan

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"costura-backend/internal/platform/apierr"
	"costura-backend/internal/platform/auth"
	"costura-backend/internal/platform/i18n"
)

type Handler struct {
	svc *Service
	tr  *i18n.Translator
}

func RegisterRoutes(r gin.IRoutes, svc *Service, tr *i18n.Translator) {
	h := &Handler{svc: svc, tr: tr}
	r.POST("/scan", h.Scan)
}

func (h *Handler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.tr.Error(c, apierr.ErrInvalid("payload is required"))
		return
	}
	p, err := auth.ActingWorker(c, req.WorkerID)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	res, err := h.svc.Scan(c.Request.Context(), p.UserID, p.Name, req.Payload)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	status := http.StatusOK
	if res.Action == ActionEntry {
		status = http.StatusCreated
	}
	c.JSON(status, ScanResponse{Action: res.Action, LocationID: res.LocationID, Record: res.Record.ToDTO()})
}
