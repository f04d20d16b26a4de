package production

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"costura-backend/internal/operation"
	"costura-backend/internal/platform/apierr"
	"costura-backend/internal/platform/auth"
	"costura-backend/internal/platform/i18n"
)

// OperationLookup: 単価と名前はサーバ側で解決する
type OperationLookup interface {
	Lookup(ctx context.Context, id string) (operation.Operation, error)
}

type Handler struct {
	svc *Service
	ops OperationLookup
	tr  *i18n.Translator
}

func RegisterRoutes(r gin.IRoutes, svc *Service, ops OperationLookup, tr *i18n.Translator) {
	h := &Handler{svc: svc, ops: ops, tr: tr}

	r.POST("/production", h.Register)
	r.GET("/production/today", h.Today)
	r.GET("/production/earnings", h.Earnings)
	r.GET("/production/month/:ym", h.Month)
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.tr.Error(c, apierr.ErrInvalid("invalid json or missing required fields"))
		return
	}
	p, err := auth.ActingWorker(c, req.WorkerID)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	op, err := h.ops.Lookup(c.Request.Context(), req.OperationID)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	if !op.Active {
		h.tr.Error(c, apierr.ErrConflict("operation is inactive"))
		return
	}

	rec, err := h.svc.Register(c.Request.Context(), RegisterInput{
		WorkerID:       p.UserID,
		OperationID:    op.ID,
		OperationName:  op.Name,
		PaymentPerUnit: op.PaymentPerUnit,
		Quantity:       req.Quantity,
	})
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.Header("Location", "/production/"+rec.ID)
	c.JSON(http.StatusCreated, rec.toDTO())
}

func (h *Handler) Today(c *gin.Context) {
	p, err := auth.ActingWorker(c, c.Query("worker_id"))
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	recs, err := h.svc.Today(c.Request.Context(), p.UserID)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toDTOs(recs))
}

func (h *Handler) Earnings(c *gin.Context) {
	p, err := auth.ActingWorker(c, c.Query("worker_id"))
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	e, err := h.svc.TotalEarnings(c.Request.Context(), p.UserID)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, EarningsResponse{WorkerID: p.UserID, Total: e.Total.StringFixed(2), Source: e.Source})
}

func (h *Handler) Month(c *gin.Context) {
	p, err := auth.ActingWorker(c, c.Query("worker_id"))
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	ym := c.Param("ym")
	recs, err := h.svc.ByMonth(c.Request.Context(), p.UserID, ym)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	var units int64
	for _, r := range recs {
		units += r.Quantity
	}
	c.JSON(http.StatusOK, MonthResponse{
		WorkerID:  p.UserID,
		YearMonth: ym,
		Units:     units,
		Earnings:  sumPayments(recs).StringFixed(2),
		Records:   toDTOs(recs),
	})
}

func toDTOs(recs []Record) []RecordResponse {
	out := make([]RecordResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toDTO())
	}
	return out
}
