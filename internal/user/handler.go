package user

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

// RegisterAdminRoutes: ADMIN グループに載せる
func RegisterAdminRoutes(r gin.IRoutes, svc *Service, tr *i18n.Translator) {
	h := &Handler{svc: svc, tr: tr}

	r.POST("/users", h.CreateUser)
	// GET /users?all=true で無効化済みも含める
	r.GET("/users", h.ListWorkers)
	r.GET("/users/:id", h.GetUser)
	r.PUT("/users/:id", h.UpdateUser)
	r.PATCH("/users/:id/active", h.SetActive)
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.tr.Error(c, apierr.ErrInvalid("invalid json or missing required fields"))
		return
	}
	u, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.Header("Location", "/users/"+u.ID)
	c.JSON(http.StatusCreated, u.toDTO())
}

func (h *Handler) ListWorkers(c *gin.Context) {
	all, _ := strconv.ParseBool(c.Query("all"))
	users, err := h.svc.ListWorkers(c.Request.Context(), !all)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, u.toDTO())
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, u.toDTO())
}

func (h *Handler) UpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.tr.Error(c, apierr.ErrInvalid("invalid json"))
		return
	}
	u, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, u.toDTO())
}

func (h *Handler) SetActive(c *gin.Context) {
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.tr.Error(c, apierr.ErrInvalid("active is required"))
		return
	}
	u, err := h.svc.SetActive(c.Request.Context(), c.Param("id"), *req.Active)
	if err != nil {
		h.tr.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, u.toDTO())
}
