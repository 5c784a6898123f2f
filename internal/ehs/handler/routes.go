package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sagrado26/ehstoolkit-sub000/internal/middleware"
)

// AuthConfig Secret 为空时 /api 不做认证
type AuthConfig struct {
	Secret string
	Issuer string
}

// RegisterRoutes 注册健康检查和 /api 路由
func RegisterRoutes(r *gin.Engine, h *Handlers, auth AuthConfig) {
	// 健康检查
	r.GET("/health/live", h.Health.Live)
	r.GET("/health/ready", h.Health.Ready)
	r.GET("/version", h.Health.Version)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": 40400, "message": "Not found"})
	})

	api := r.Group("/api")
	// 删除计划和许可需要管理员角色；未启用认证时不做角色检查
	adminOnly := []gin.HandlerFunc{}
	if auth.Secret != "" {
		api.Use(middleware.JWTAuth(auth.Secret, auth.Issuer))
		adminOnly = append(adminOnly, middleware.RequireRole(middleware.RoleAdmin))
	}
	{
		// 安全计划
		plans := api.Group("/safety-plans")
		plans.GET("", h.SafetyPlan.List)
		plans.POST("", h.SafetyPlan.Create)
		plans.GET("/:id", h.SafetyPlan.Get)
		plans.PATCH("/:id", h.SafetyPlan.Patch)
		plans.PUT("/:id", h.SafetyPlan.Edit)
		plans.DELETE("/:id", append(adminOnly, h.SafetyPlan.Delete)...)
		plans.POST("/:id/approve", h.SafetyPlan.Approve)
		plans.POST("/:id/reject", h.SafetyPlan.Reject)
		plans.POST("/:id/reuse-log", h.SafetyPlan.ReuseLog)
		plans.POST("/:id/reuse", h.SafetyPlan.Reuse)
		plans.GET("/:id/audit-logs", h.SafetyPlan.AuditLogs)

		api.GET("/audit-logs", h.AuditLog.List)

		// 报告快照
		reports := api.Group("/reports")
		reports.GET("", h.Report.List)
		reports.POST("", h.Report.Create)
		reports.GET("/safety-plan/:safetyPlanId", h.Report.GetByPlan)
		reports.GET("/:id", h.Report.Get)
		reports.PATCH("/:id", h.Report.Patch)

		// 用户偏好
		api.GET("/user-preferences/:userId", h.Preference.Get)
		api.POST("/user-preferences/:userId", h.Preference.Save)

		// SRB 升级
		srb := api.Group("/srb-records")
		srb.GET("", h.SRB.List)
		srb.POST("", h.SRB.Escalate)
		srb.GET("/safety-plan/:safetyPlanId", h.SRB.GetByPlan)
		srb.GET("/:id", h.SRB.Get)
		srb.PATCH("/:id", h.SRB.Patch)
		srb.DELETE("/:id", h.SRB.Delete)
		srb.POST("/:id/complete", h.SRB.Complete)
		srb.POST("/:id/validate", h.SRB.Validate)

		// 作业许可
		permits := api.Group("/permits")
		permits.GET("", h.Permit.List)
		permits.POST("", h.Permit.Create)
		permits.GET("/:id", h.Permit.Get)
		permits.PATCH("/:id", h.Permit.Patch)
		permits.DELETE("/:id", append(adminOnly, h.Permit.Delete)...)
		permits.GET("/:id/approvals", h.Permit.ListApprovals)
		permits.POST("/:id/approvals", h.Permit.AddApproval)
		permits.PATCH("/:id/approvals/:approvalId", h.Permit.UpdateApproval)
		permits.GET("/:id/sign-offs", h.Permit.ListSignOffs)
		permits.POST("/:id/sign-offs", h.Permit.AddSignOff)
		permits.GET("/:id/gas-measurements", h.Permit.ListGasMeasurements)
		permits.POST("/:id/gas-measurements", h.Permit.AddGasMeasurement)

		// 登记簿
		registerCRUD(api.Group("/crane-inspections"), h.Crane)
		registerCRUD(api.Group("/draeger-calibrations"), h.Draeger)
		registerCRUD(api.Group("/incidents"), h.Incident)
		docs := api.Group("/documents")
		registerCRUD(docs, h.Document.RegisterHandler)
		docs.POST("/:id/file", h.Document.UploadFile)
		docs.GET("/:id/file", h.Document.DownloadFile)

		// 危害目录
		api.GET("/hazards", h.Hazard.List)
		api.GET("/hazards/:name", h.Hazard.Get)

		// 导出
		api.GET("/export/sharepoint", h.Export.SharePoint)
		api.GET("/export/safety-plans.xlsx", h.Export.Workbook)

		// SSE
		api.GET("/events", h.SSE.Stream)
	}
}

type crudHandler interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
	Patch(c *gin.Context)
	Delete(c *gin.Context)
}

func registerCRUD(g *gin.RouterGroup, h crudHandler) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Patch)
	g.DELETE("/:id", h.Delete)
}
