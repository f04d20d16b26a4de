package auth

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"costura-backend/internal/platform/apierr"
	"costura-backend/internal/platform/i18n"
)

const (
	ctxPrincipalKey = "principal"
	ctxDirectoryKey = "worker_directory"
)

// Directory: 代理操作の対象作業者を引く
type Directory interface {
	LookupWorker(ctx context.Context, id string) (name string, active bool, err error)
}

// WithDirectory: ActingWorker で代理先の存在と有効性を確かめる
func WithDirectory(d Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxDirectoryKey, d)
		c.Next()
	}
}

const RoleAdmin = "ADMIN"

// RequireAuth: Authorization: Bearer <token> を検証して context に Principal を詰める
func RequireAuth(iss *Issuer, tr *i18n.Translator) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			tr.Abort(c, apierr.ErrUnauthenticated("missing Authorization header"))
			return
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			tr.Abort(c, apierr.ErrUnauthenticated("invalid Authorization header"))
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			tr.Abort(c, apierr.ErrUnauthenticated("empty token"))
			return
		}

		p, err := iss.Parse(tokenStr)
		if err != nil {
			tr.Abort(c, apierr.ErrUnauthenticated("invalid token"))
			return
		}

		SetPrincipal(c, p)
		c.Next()
	}
}

// RequireRole: 例) ADMIN のみ許可したい時に追加
func RequireRole(tr *i18n.Translator, roles ...string) gin.HandlerFunc {
	roleSet := make(map[string]struct{})
	for _, r := range roles {
		if r == "" {
			continue
		}
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok || p.Role == "" {
			tr.Abort(c, apierr.ErrForbidden("missing role"))
			return
		}
		if _, allowed := roleSet[p.Role]; !allowed {
			tr.Abort(c, apierr.ErrForbidden("forbidden"))
			return
		}
		c.Next()
	}
}

func SetPrincipal(c *gin.Context, p Principal) { c.Set(ctxPrincipalKey, p) }

func PrincipalFrom(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(ctxPrincipalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// ActingWorker: ADMIN は worker_id で他人の代理操作ができる。WORKER は常に本人
func ActingWorker(c *gin.Context, requested string) (Principal, error) {
	p, ok := PrincipalFrom(c)
	if !ok {
		return Principal{}, apierr.ErrUnauthenticated("not logged in")
	}
	if requested == "" || requested == p.UserID {
		return p, nil
	}
	if p.Role != RoleAdmin {
		return Principal{}, apierr.ErrForbidden("cannot act for another worker")
	}
	target := Principal{UserID: requested, Role: p.Role}
	v, _ := c.Get(ctxDirectoryKey)
	d, ok := v.(Directory)
	if !ok || d == nil {
		// 名前は呼び出し側で解決する
		return target, nil
	}
	ctx := context.Background()
	if c.Request != nil {
		ctx = c.Request.Context()
	}
	name, active, err := d.LookupWorker(ctx, requested)
	if err != nil {
		return Principal{}, err
	}
	if !active {
		return Principal{}, apierr.ErrForbidden("worker is inactive")
	}
	target.Name = name
	return target, nil
}
