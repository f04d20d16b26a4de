package operation

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"costura-backend/internal/platform/apierr"
	"costura-backend/internal/platform/i18n"
)

type Handler struct {
	svc *Service
	tr  *i18n.Translator
}

// RegisterRoutes: 認証済みなら誰でも一覧を見られる
func RegisterRoutes(r gin.IRoutes, svc *Service, tr *i18n.Translator) {
	h := &Handler{svc: svc, tr: tr}
	// GET /operations?all=true は無効化済みも含める
	r.GET("/operations", h.List)
}

func RegisterAdminRoutes(r gin.IRoutes, svc *Service, tr *i18n.Translator) {
	h := &Handler{svc: svc, tr: tr}
	r.POST("/operations", h.Create)
	r.PUT("/operations/:id", h.Update)
	r.PATCH("/operations/:id/active", h.SetActive)
}

func (h *Handler) List(c *gin.Context) {
	all, _ := strconv.ParseBool(c.Query("all"))
	var (
		ops []Operation
		err error
	)
	if all {
		ops, err = h.svc.ListAll(c.Request.Context())
	} else {
		ops, err = h.svc.ListActive(c.Request.Context())
	}
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	out := make([]OperationResponse, 0, len(ops))
	for _, o := range ops {
		out = append(out, o.toDTO())
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.tr.Error(c, apierr.ErrInvalid("invalid json or missing required fields"))
		return
	}
	o, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.Header("Location", "/operations/"+o.ID)
	c.JSON(http.StatusCreated, o.toDTO())
}

func (h *Handler) Update(c *gin.Context) {
	var req UpdateOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.tr.Error(c, apierr.ErrInvalid("invalid json"))
		return
	}
	o, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, o.toDTO())
}

func (h *Handler) SetActive(c *gin.Context) {
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.tr.Error(c, apierr.ErrInvalid("active is required"))
		return
	}
	o, err := h.svc.SetActive(c.Request.Context(), c.Param("id"), *req.Active)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, o.toDTO())
}
