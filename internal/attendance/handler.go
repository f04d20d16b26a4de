package attendance

import (
	"net/http"
	"time"

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

	r.POST("/attendance/entry", h.Entry)
	r.POST("/attendance/exit", h.Exit)
	// GET /attendance/today?worker_id=
	r.GET("/attendance/today", h.Today)
	// GET /attendance/history?ref=YYYY-MM-DD または ?month=YYYY-MM
	r.GET("/attendance/history", h.History)
	r.GET("/attendance/stats", h.Stats)
}

func RegisterAdminRoutes(r gin.IRoutes, svc *Service, tr *i18n.Translator) {
	h := &Handler{svc: svc, tr: tr}
	// DELETE /attendance/cache?before=YYYY-MM-DD
	r.DELETE("/attendance/cache", h.Prune)
}

func (h *Handler) Entry(c *gin.Context) {
	var req EntryRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.tr.Error(c, apierr.ErrInvalid("invalid json"))
			return
		}
	}
	p, err := auth.ActingWorker(c, req.WorkerID)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	name := req.WorkerName
	if name == "" {
		name = p.Name
	}
	rec, err := h.svc.RegisterEntry(c.Request.Context(), p.UserID, name)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec.ToDTO())
}

func (h *Handler) Exit(c *gin.Context) {
	var req ExitRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.tr.Error(c, apierr.ErrInvalid("invalid json"))
			return
		}
	}
	p, err := auth.ActingWorker(c, req.WorkerID)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	rec, err := h.svc.RegisterExit(c.Request.Context(), p.UserID)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, rec.ToDTO())
}

func (h *Handler) Today(c *gin.Context) {
	p, err := auth.ActingWorker(c, c.Query("worker_id"))
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	rec, err := h.svc.Today(c.Request.Context(), p.UserID)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, rec.ToDTO())
}

func (h *Handler) History(c *gin.Context) {
	p, err := auth.ActingWorker(c, c.Query("worker_id"))
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	var recs []Record
	if m := c.Query("month"); m != "" {
		recs, err = h.svc.HistoryByMonth(c.Request.Context(), p.UserID, m)
	} else {
		ref, perr := h.ref(c)
		if perr != nil {
			h.tr.Error(c, perr)
			return
		}
		recs, err = h.svc.History(c.Request.Context(), p.UserID, ref)
	}
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	out := make([]RecordResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ToDTO())
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Stats(c *gin.Context) {
	p, err := auth.ActingWorker(c, c.Query("worker_id"))
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	ref, err := h.ref(c)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	st, err := h.svc.Statistics(c.Request.Context(), p.UserID, ref)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) Prune(c *gin.Context) {
	n, err := h.svc.Prune(c.Request.Context(), c.Query("before"))
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// ref 省略時は今日
func (h *Handler) ref(c *gin.Context) (time.Time, error) {
	v := c.Query("ref")
	if v == "" {
		return h.svc.clock.Now(), nil
	}
	t, err := time.ParseInLocation(DateLayout, v, h.svc.policy.loc)
	if err != nil {
		return time.Time{}, apierr.ErrInvalid("ref must be YYYY-MM-DD")
	}
	return t, nil
}
