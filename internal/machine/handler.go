package machine

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

func RegisterAdminRoutes(r gin.IRoutes, svc *Service, tr *i18n.Translator) {
	h := &Handler{svc: svc, tr: tr}

	r.POST("/machines", h.Create)
	r.GET("/machines", h.List) // ?status=MAINTENANCE
	r.GET("/machines/:id", h.Get)
	r.PUT("/machines/:id", h.Update)
	r.DELETE("/machines/:id", h.Delete)
	r.POST("/machines/:id/problems", h.ReportProblem)
	r.POST("/machines/:id/repairs", h.Repair)
	r.GET("/machines/:id/history", h.History)
	r.GET("/machine-history", h.AllHistory)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.tr.Error(c, apierr.ErrInvalid("invalid json or missing required fields"))
		return
	}
	m, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.Header("Location", "/machines/"+m.ID)
	c.JSON(http.StatusCreated, m.toDTO())
}

func (h *Handler) List(c *gin.Context) {
	var (
		ms  []Machine
		err error
	)
	if st := c.Query("status"); st != "" {
		ms, err = h.svc.ListByStatus(c.Request.Context(), st)
	} else {
		ms, err = h.svc.List(c.Request.Context())
	}
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	out := make([]MachineResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.toDTO())
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Get(c *gin.Context) {
	m, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, m.toDTO())
}

func (h *Handler) Update(c *gin.Context) {
	var req UpdateMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.tr.Error(c, apierr.ErrInvalid("invalid json"))
		return
	}
	m, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, m.toDTO())
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.tr.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ReportProblem(c *gin.Context) {
	var req ReportProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.tr.Error(c, apierr.ErrInvalid("description is required"))
		return
	}
	m, err := h.svc.ReportProblem(c.Request.Context(), c.Param("id"), req.Description)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, m.toDTO())
}

func (h *Handler) Repair(c *gin.Context) {
	var req RepairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.tr.Error(c, apierr.ErrInvalid("solution is required"))
		return
	}
	// 未指定ならログイン中の管理者名
	if req.SolvedBy == "" {
		if p, ok := auth.PrincipalFrom(c); ok {
			req.SolvedBy = p.Name
		}
	}
	m, err := h.svc.MarkAsRepaired(c.Request.Context(), c.Param("id"), req.Solution, req.SolvedBy)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, m.toDTO())
}

func (h *Handler) History(c *gin.Context) {
	h.writeHistory(c, c.Param("id"))
}

func (h *Handler) AllHistory(c *gin.Context) {
	h.writeHistory(c, "")
}

func (h *Handler) writeHistory(c *gin.Context, machineID string) {
	hs, err := h.svc.History(c.Request.Context(), machineID)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	out := make([]HistoryResponse, 0, len(hs))
	for _, e := range hs {
		out = append(out, e.toDTO())
	}
	c.JSON(http.StatusOK, out)
}
