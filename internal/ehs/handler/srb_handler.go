package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/service"
)

// SRBHandler SRB 升级记录
type SRBHandler struct {
	svc    *service.SRBService
	logger *zap.Logger
}

func NewSRBHandler(svc *service.SRBService, logger *zap.Logger) *SRBHandler {
	return &SRBHandler{svc: svc, logger: logger}
}

// List GET /api/srb-records
func (h *SRBHandler) List(c *gin.Context) {
	records, err := h.svc.List(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err, "Failed to fetch SRB records")
		return
	}
	Success(c, records)
}

// Get GET /api/srb-records/:id
func (h *SRBHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	rec, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, err, "Failed to fetch SRB record")
		return
	}
	Success(c, rec)
}

// GetByPlan GET /api/srb-records/safety-plan/:safetyPlanId
func (h *SRBHandler) GetByPlan(c *gin.Context) {
	planID, ok := paramID(c, "safetyPlanId")
	if !ok {
		return
	}
	rec, err := h.svc.GetByPlan(c.Request.Context(), planID)
	if err != nil {
		handleError(c, h.logger, err, "Failed to fetch SRB record")
		return
	}
	Success(c, rec)
}

// Escalate POST /api/srb-records
func (h *SRBHandler) Escalate(c *gin.Context) {
	var req service.EscalateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	rec, err := h.svc.Escalate(c.Request.Context(), req)
	if err != nil {
		handleError(c, h.logger, err, "Failed to create SRB record")
		return
	}
	Created(c, rec)
}

// Patch PATCH /api/srb-records/:id
func (h *SRBHandler) Patch(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req service.PatchSRBRequest
	if !bindJSON(c, &req) {
		return
	}
	rec, err := h.svc.Patch(c.Request.Context(), id, req)
	if err != nil {
		handleError(c, h.logger, err, "Failed to update SRB record")
		return
	}
	Success(c, rec)
}

// Complete POST /api/srb-records/:id/complete
func (h *SRBHandler) Complete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	rec, err := h.svc.Complete(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, err, "Failed to complete SRB record")
		return
	}
	Success(c, rec)
}

// Validate POST /api/srb-records/:id/validate?step=
func (h *SRBHandler) Validate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	result, err := h.svc.ValidateStep(c.Request.Context(), id, c.Query("step"))
	if err != nil {
		handleError(c, h.logger, err, "Failed to validate SRB step")
		return
	}
	Success(c, result)
}

// Delete DELETE /api/srb-records/:id
func (h *SRBHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		handleError(c, h.logger, err, "Failed to delete SRB record")
		return
	}
	NoContent(c)
}
