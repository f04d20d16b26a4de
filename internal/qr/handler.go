package qr

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"costura-backend/internal/platform/apierr"
	"costura-backend/internal/platform/i18n"
)

type Handler struct {
	defaultLocation string
	tr              *i18n.Translator
}

// RegisterAdminRoutes: GET /qr?location=&size=&kind= 。kind 指定時は旧形式の使い捨て QR
func RegisterAdminRoutes(r gin.IRoutes, defaultLocation string, tr *i18n.Translator) {
	h := &Handler{defaultLocation: defaultLocation, tr: tr}
	r.GET("/qr", h.Render)
}

func (h *Handler) Render(c *gin.Context) {
	loc := c.DefaultQuery("location", h.defaultLocation)
	size := 512
	if v := c.Query("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 64 || n > 2048 {
			h.tr.Error(c, apierr.ErrInvalid("size must be between 64 and 2048"))
			return
		}
		size = n
	}

	p := Universal(loc)
	switch k := Kind(c.Query("kind")); k {
	case "":
	case KindEntry, KindExit:
		p = OneTime(loc, k)
	default:
		h.tr.Error(c, apierr.ErrInvalid("kind must be ENTRY or EXIT"))
		return
	}

	png, err := PNG(p, size)
	if err != nil {
		h.tr.Error(c, apierr.ErrInternal("render qr failed"))
		return
	}
	if p.UniqueID != "" {
		c.Header("X-QR-Unique-Id", p.UniqueID)
	}
	c.Data(http.StatusOK, "image/png", png)
}
