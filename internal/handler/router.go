package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mentormatch-api/internal/middleware"
	"github.com/noah-isme/mentormatch-api/internal/models"
)

// Router groups every API handler.
type Router struct {
	Auth                   *AuthHandler
	Partnerships           *PartnershipHandler
	SupervisorPartnerships *SupervisorPartnershipHandler
	Applications           *ApplicationHandler
	Supervisors            *SupervisorHandler
	Dashboard              *DashboardHandler
	Reports                *ReportHandler
	Metrics                *MetricsHandler
}

// RouteMiddleware carries the cross-cutting guards applied by Register.
type RouteMiddleware struct {
	Auth gin.HandlerFunc
	// RateLimit, when set, throttles mutating workflow routes per caller.
	RateLimit gin.HandlerFunc
}

// Register mounts the API under api.
func (rt Router) Register(api gin.IRouter, mw RouteMiddleware) {
	limit := mw.RateLimit
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}
	student := middleware.RequireRoles(models.RoleStudent)
	supervisor := middleware.RequireRoles(models.RoleSupervisor)
	admin := middleware.RequireRoles(models.RoleAdmin)

	api.POST("/auth/login", limit, rt.Auth.Login)

	secured := api.Group("")
	secured.Use(mw.Auth, middleware.WithResponseMeta())
	secured.GET("/auth/me", rt.Auth.Me)

	partnerships := secured.Group("/partnerships", student)
	partnerships.GET("/requests", rt.Partnerships.List)
	partnerships.POST("/requests", limit, rt.Partnerships.Create)
	partnerships.POST("/requests/:id/respond", limit, rt.Partnerships.Respond)
	partnerships.POST("/requests/:id/cancel", limit, rt.Partnerships.Cancel)
	partnerships.POST("/unpair", limit, rt.Partnerships.Unpair)

	coSupervision := secured.Group("/supervisor-partnerships", supervisor)
	coSupervision.GET("/requests", rt.SupervisorPartnerships.List)
	coSupervision.POST("/requests", limit, rt.SupervisorPartnerships.Create)
	coSupervision.POST("/requests/:id/respond", limit, rt.SupervisorPartnerships.Respond)
	coSupervision.POST("/requests/:id/cancel", limit, rt.SupervisorPartnerships.Cancel)
	secured.DELETE("/projects/:id/co-supervisor", supervisor, limit, rt.SupervisorPartnerships.RemoveCoSupervisor)

	applications := secured.Group("/applications")
	applications.GET("", rt.Applications.List)
	applications.POST("", student, limit, rt.Applications.Submit)
	applications.GET("/duplicate-check", student, rt.Applications.DuplicateCheck)
	applications.GET("/:id", rt.Applications.Get)
	applications.PATCH("/:id/status", middleware.RequireRoles(models.RoleSupervisor, models.RoleAdmin), limit, rt.Applications.UpdateStatus)
	applications.POST("/:id/resubmit", student, limit, rt.Applications.Resubmit)

	secured.GET("/dashboard", rt.Dashboard.Get)

	adminGroup := secured.Group("/admin", admin)
	adminGroup.POST("/partnerships/pair", rt.Partnerships.AdminPair)
	adminGroup.POST("/partnerships/unpair", rt.Partnerships.AdminUnpair)
	adminGroup.PATCH("/supervisors/:id/capacity", rt.Supervisors.UpdateCapacity)
	adminGroup.POST("/supervisors/reconcile", rt.Supervisors.Reconcile)
	adminGroup.GET("/reports/supervisors", rt.Reports.SupervisorCapacity)
	if rt.Metrics != nil {
		adminGroup.GET("/metrics", rt.Metrics.Summary)
	}
}
