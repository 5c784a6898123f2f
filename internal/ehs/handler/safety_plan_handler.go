package handler

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/entity"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/service"
	"github.com/sagrado26/ehstoolkit-sub000/internal/middleware"
)

// SafetyPlanHandler 安全计划接口
type SafetyPlanHandler struct {
	svc    *service.SafetyPlanService
	audit  *service.AuditLogService
	logger *zap.Logger
}

func NewSafetyPlanHandler(svc *service.SafetyPlanService, audit *service.AuditLogService, logger *zap.Logger) *SafetyPlanHandler {
	return &SafetyPlanHandler{svc: svc, audit: audit, logger: logger}
}

// List GET /api/safety-plans
func (h *SafetyPlanHandler) List(c *gin.Context) {
	plans, err := h.svc.List(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err, "Failed to fetch safety plans")
		return
	}
	Success(c, plans)
}

// Get GET /api/safety-plans/:id
func (h *SafetyPlanHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	plan, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, err, "Failed to fetch safety plan")
		return
	}
	Success(c, plan)
}

// Create POST /api/safety-plans
func (h *SafetyPlanHandler) Create(c *gin.Context) {
	var plan entity.SafetyPlan
	if err := c.ShouldBindJSON(&plan); err != nil {
		BadRequest(c, "Invalid safety plan data", err.Error())
		return
	}
	created, err := h.svc.Create(c.Request.Context(), &plan)
	if err != nil {
		handleError(c, h.logger, err, "Failed to create safety plan")
		return
	}
	Created(c, created)
}

// Patch PATCH /api/safety-plans/:id 局部更新，不写审计
func (h *SafetyPlanHandler) Patch(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	body, ok := rawBody(c)
	if !ok {
		return
	}
	plan, err := h.svc.Patch(c.Request.Context(), id, body)
	if err != nil {
		handleError(c, h.logger, err, "Failed to update safety plan")
		return
	}
	Success(c, plan)
}

// Edit PUT /api/safety-plans/:id 全量编辑并记录差异
func (h *SafetyPlanHandler) Edit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var fields map[string]json.RawMessage
	if err := c.ShouldBindJSON(&fields); err != nil {
		BadRequest(c, "Invalid safety plan data", err.Error())
		return
	}

	var editedBy string
	if raw, exists := fields["editedBy"]; exists {
		json.Unmarshal(raw, &editedBy)
	}
	editedBy = firstNonEmpty(editedBy, middleware.UserName(c))

	plan, err := h.svc.Edit(c.Request.Context(), id, fields, editedBy)
	if err != nil {
		handleError(c, h.logger, err, "Failed to update safety plan")
		return
	}
	Success(c, plan)
}

// Delete DELETE /api/safety-plans/:id 审计记录保留
func (h *SafetyPlanHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		handleError(c, h.logger, err, "Failed to delete safety plan")
		return
	}
	NoContent(c)
}

// Approve POST /api/safety-plans/:id/approve
func (h *SafetyPlanHandler) Approve(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.ApproveRequest
	if !bindJSON(c, &req) {
		return
	}
	plan, err := h.svc.Approve(c.Request.Context(), id, req)
	if err != nil {
		handleError(c, h.logger, err, "Failed to approve safety plan")
		return
	}
	Success(c, plan)
}

// Reject POST /api/safety-plans/:id/reject
func (h *SafetyPlanHandler) Reject(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.RejectRequest
	if !bindJSON(c, &req) {
		return
	}
	plan, err := h.svc.Reject(c.Request.Context(), id, req)
	if err != nil {
		handleError(c, h.logger, err, "Failed to reject safety plan")
		return
	}
	Success(c, plan)
}

// ReuseLog POST /api/safety-plans/:id/reuse-log 旧版客户端的两步复用
func (h *SafetyPlanHandler) ReuseLog(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.ReuseLogRequest
	if !bindJSON(c, &req) {
		return
	}
	req.ReusedBy = firstNonEmpty(req.ReusedBy, middleware.UserName(c))
	if err := h.svc.LogReuse(c.Request.Context(), id, req); err != nil {
		handleError(c, h.logger, err, "Failed to log plan reuse")
		return
	}
	Success(c, gin.H{"success": true})
}

// Reuse POST /api/safety-plans/:id/reuse 复制计划并记录复用
func (h *SafetyPlanHandler) Reuse(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.ReuseRequest
	if !bindJSON(c, &req) {
		return
	}
	req.ReusedBy = firstNonEmpty(req.ReusedBy, middleware.UserName(c))
	plan, err := h.svc.Reuse(c.Request.Context(), id, req)
	if err != nil {
		handleError(c, h.logger, err, "Failed to reuse safety plan")
		return
	}
	Created(c, plan)
}

// AuditLogs GET /api/safety-plans/:id/audit-logs
func (h *SafetyPlanHandler) AuditLogs(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	logs, err := h.audit.List(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, err, "Failed to fetch audit logs")
		return
	}
	Success(c, logs)
}

// AuditLogHandler 审计日志查询
type AuditLogHandler struct {
	svc    *service.AuditLogService
	logger *zap.Logger
}

func NewAuditLogHandler(svc *service.AuditLogService, logger *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{svc: svc, logger: logger}
}

// List GET /api/audit-logs?safetyPlanId=
func (h *AuditLogHandler) List(c *gin.Context) {
	planID, ok := queryID(c, "safetyPlanId")
	if !ok {
		return
	}
	logs, err := h.svc.List(c.Request.Context(), planID)
	if err != nil {
		handleError(c, h.logger, err, "Failed to fetch audit logs")
		return
	}
	Success(c, logs)
}
