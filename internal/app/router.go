package app

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"costura-backend/internal/attendance"
	"costura-backend/internal/machine"
	"costura-backend/internal/operation"
	"costura-backend/internal/platform/auth"
	"costura-backend/internal/platform/logger"
	"costura-backend/internal/production"
	"costura-backend/internal/qr"
	"costura-backend/internal/report"
	"costura-backend/internal/scan"
	"costura-backend/internal/user"
)

func (a *App) Router() *gin.Engine {
	if a.Cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(logger.Middleware(a.Log), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if a.Cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(a.Cfg.Tracing.ServiceName))
	}
	if a.Metrics != nil {
		r.Use(a.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(a.Metrics.Handler()))
	}

	if a.Cfg.Mode == "dev" {
		// CORS（開発中のみ必要）
		origins := a.Cfg.Server.CORSOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000"}
		}
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept-Language"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Location"},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	// /api/v1
	api := r.Group("/api/v1")
	auth.RegisterRoutes(api, a.Users, a.Issuer, a.Tr)

	worker := api.Group("", auth.RequireAuth(a.Issuer, a.Tr), auth.WithDirectory(a.Users))
	auth.RegisterMeRoute(worker)
	scan.RegisterRoutes(worker, a.Scan, a.Tr)
	attendance.RegisterRoutes(worker, a.Attendance, a.Tr)
	production.RegisterRoutes(worker, a.Production, a.Operations, a.Tr)
	operation.RegisterRoutes(worker, a.Operations, a.Tr)

	admin := worker.Group("", auth.RequireRole(a.Tr, auth.RoleAdmin))
	user.RegisterAdminRoutes(admin, a.Users, a.Tr)
	operation.RegisterAdminRoutes(admin, a.Operations, a.Tr)
	attendance.RegisterAdminRoutes(admin, a.Attendance, a.Tr)
	machine.RegisterAdminRoutes(admin, a.Machines, a.Tr)
	report.RegisterAdminRoutes(admin, a.Reports, a.Tr)
	qr.RegisterAdminRoutes(admin, a.Cfg.Scan.DefaultLocation, a.Tr)
	admin.POST("/sync", func(c *gin.Context) {
		c.JSON(http.StatusOK, a.Sync(c.Request.Context()))
	})

	r.NoRoute(func(c *gin.Context) { c.Status(http.StatusNotFound) })
	return r
}
