package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/service"
	"github.com/sagrado26/ehstoolkit-sub000/internal/middleware"
)

// PermitHandler 作业许可、审批、签字与气体检测
type PermitHandler struct {
	svc    *service.PermitService
	logger *zap.Logger
}

func NewPermitHandler(svc *service.PermitService, logger *zap.Logger) *PermitHandler {
	return &PermitHandler{svc: svc, logger: logger}
}

// List GET /api/permits
func (h *PermitHandler) List(c *gin.Context) {
	permits, err := h.svc.List(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err, "Failed to fetch permits")
		return
	}
	Success(c, permits)
}

// Get GET /api/permits/:id
func (h *PermitHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, err, "Failed to fetch permit")
		return
	}
	Success(c, p)
}

// Create POST /api/permits
func (h *PermitHandler) Create(c *gin.Context) {
	body, ok := rawBody(c)
	if !ok {
		return
	}
	p, err := h.svc.Create(c.Request.Context(), body)
	if err != nil {
		handleError(c, h.logger, err, "Failed to create permit")
		return
	}
	Created(c, p)
}

// Patch PATCH /api/permits/:id
func (h *PermitHandler) Patch(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	body, ok := rawBody(c)
	if !ok {
		return
	}
	p, err := h.svc.Patch(c.Request.Context(), id, body)
	if err != nil {
		handleError(c, h.logger, err, "Failed to update permit")
		return
	}
	Success(c, p)
}

// Delete DELETE /api/permits/:id
func (h *PermitHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		handleError(c, h.logger, err, "Failed to delete permit")
		return
	}
	NoContent(c)
}

// ListApprovals GET /api/permits/:id/approvals
func (h *PermitHandler) ListApprovals(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	approvals, err := h.svc.ListApprovals(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, err, "Failed to fetch approvals")
		return
	}
	Success(c, approvals)
}

// AddApproval POST /api/permits/:id/approvals
func (h *PermitHandler) AddApproval(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.AddApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	a, err := h.svc.AddApproval(c.Request.Context(), id, req)
	if err != nil {
		handleError(c, h.logger, err, "Failed to create approval")
		return
	}
	Created(c, a)
}

// UpdateApproval PATCH /api/permits/:id/approvals/:approvalId
func (h *PermitHandler) UpdateApproval(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	approvalID, ok := paramID(c, "approvalId")
	if !ok {
		return
	}
	var req service.UpdateApprovalRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.svc.UpdateApproval(c.Request.Context(), id, approvalID, req)
	if err != nil {
		handleError(c, h.logger, err, "Failed to update approval")
		return
	}
	Success(c, result)
}

// ListSignOffs GET /api/permits/:id/sign-offs
func (h *PermitHandler) ListSignOffs(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	items, err := h.svc.ListSignOffs(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, err, "Failed to fetch sign-offs")
		return
	}
	Success(c, items)
}

// AddSignOff POST /api/permits/:id/sign-offs
func (h *PermitHandler) AddSignOff(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.AddSignOffRequest
	if !bindJSON(c, &req) {
		return
	}
	req.SignedBy = firstNonEmpty(req.SignedBy, middleware.UserName(c))
	s, err := h.svc.AddSignOff(c.Request.Context(), id, req)
	if err != nil {
		handleError(c, h.logger, err, "Failed to create sign-off")
		return
	}
	Created(c, s)
}

// ListGasMeasurements GET /api/permits/:id/gas-measurements
func (h *PermitHandler) ListGasMeasurements(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	items, err := h.svc.ListGasMeasurements(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, err, "Failed to fetch gas measurements")
		return
	}
	Success(c, items)
}

// AddGasMeasurement POST /api/permits/:id/gas-measurements
func (h *PermitHandler) AddGasMeasurement(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.GasMeasurementRequest
	if !bindJSON(c, &req) {
		return
	}
	req.MeasuredBy = firstNonEmpty(req.MeasuredBy, middleware.UserName(c))
	m, err := h.svc.AddGasMeasurement(c.Request.Context(), id, req)
	if err != nil {
		handleError(c, h.logger, err, "Failed to record gas measurement")
		return
	}
	Created(c, m)
}
