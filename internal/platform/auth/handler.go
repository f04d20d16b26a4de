package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"costura-backend/internal/platform/apierr"
	"costura-backend/internal/platform/i18n"
)

// Authenticator: 資格情報の照合は user パッケージ側
type Authenticator interface {
	Login(ctx context.Context, username, password string) (Principal, error)
}

type AuthHandler struct {
	svc Authenticator
	iss *Issuer
	tr  *i18n.Translator
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Principal `json:"user"`
}

func RegisterRoutes(r gin.IRoutes, svc Authenticator, iss *Issuer, tr *i18n.Translator) {
	h := &AuthHandler{svc: svc, iss: iss, tr: tr}
	r.POST("/login", h.Login)
}

// RegisterMeRoute: 認証済みグループに載せる
func RegisterMeRoute(r gin.IRoutes) {
	r.GET("/me", func(c *gin.Context) {
		p, _ := PrincipalFrom(c)
		c.JSON(http.StatusOK, p)
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.tr.Error(c, apierr.ErrInvalid("invalid request"))
		return
	}

	p, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.tr.Error(c, err)
		return
	}

	token, exp, err := h.iss.Issue(p)
	if err != nil {
		h.tr.Error(c, apierr.ErrInternal("token issue failed"))
		return
	}

	c.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresAt: exp, User: p})
}
