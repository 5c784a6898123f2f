package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/risk"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/service"
)

// ReportHandler 报告快照
type ReportHandler struct {
	svc    *service.ReportService
	logger *zap.Logger
}

func NewReportHandler(svc *service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{svc: svc, logger: logger}
}

// List GET /api/reports
func (h *ReportHandler) List(c *gin.Context) {
	reports, err := h.svc.List(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err, "Failed to fetch reports")
		return
	}
	Success(c, reports)
}

// Get GET /api/reports/:id
func (h *ReportHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	report, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, err, "Failed to fetch report")
		return
	}
	Success(c, report)
}

// GetByPlan GET /api/reports/safety-plan/:safetyPlanId
func (h *ReportHandler) GetByPlan(c *gin.Context) {
	planID, ok := paramID(c, "safetyPlanId")
	if !ok {
		return
	}
	report, err := h.svc.GetByPlan(c.Request.Context(), planID)
	if err != nil {
		handleError(c, h.logger, err, "Failed to fetch report")
		return
	}
	Success(c, report)
}

// Create POST /api/reports
func (h *ReportHandler) Create(c *gin.Context) {
	body, ok := rawBody(c)
	if !ok {
		return
	}
	report, err := h.svc.Create(c.Request.Context(), body)
	if err != nil {
		handleError(c, h.logger, err, "Failed to create report")
		return
	}
	Created(c, report)
}

// Patch PATCH /api/reports/:id
func (h *ReportHandler) Patch(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	body, ok := rawBody(c)
	if !ok {
		return
	}
	report, err := h.svc.Patch(c.Request.Context(), id, body)
	if err != nil {
		handleError(c, h.logger, err, "Failed to update report")
		return
	}
	Success(c, report)
}

// PreferenceHandler 用户偏好
type PreferenceHandler struct {
	svc    *service.PreferenceService
	logger *zap.Logger
}

func NewPreferenceHandler(svc *service.PreferenceService, logger *zap.Logger) *PreferenceHandler {
	return &PreferenceHandler{svc: svc, logger: logger}
}

// Get GET /api/user-preferences/:userId
func (h *PreferenceHandler) Get(c *gin.Context) {
	pref, err := h.svc.Get(c.Request.Context(), c.Param("userId"))
	if err != nil {
		handleError(c, h.logger, err, "Failed to fetch user preferences")
		return
	}
	Success(c, pref)
}

// Save POST /api/user-preferences/:userId
func (h *PreferenceHandler) Save(c *gin.Context) {
	var req service.SavePreferenceRequest
	if !bindJSON(c, &req) {
		return
	}
	req.UserID = c.Param("userId")
	pref, err := h.svc.Save(c.Request.Context(), req)
	if err != nil {
		handleError(c, h.logger, err, "Failed to save user preferences")
		return
	}
	Success(c, pref)
}

// HazardHandler 危害目录(只读)
type HazardHandler struct {
	catalog *risk.Catalog
}

func NewHazardHandler(catalog *risk.Catalog) *HazardHandler {
	return &HazardHandler{catalog: catalog}
}

// List GET /api/hazards
func (h *HazardHandler) List(c *gin.Context) {
	Success(c, h.catalog.All())
}

// Get GET /api/hazards/:name
func (h *HazardHandler) Get(c *gin.Context) {
	entry, ok := h.catalog.Lookup(c.Param("name"))
	if !ok {
		NotFound(c, "Hazard not found")
		return
	}
	Success(c, entry)
}

// ExportHandler SharePoint 与 Excel 导出
type ExportHandler struct {
	svc    *service.ExportService
	logger *zap.Logger
}

func NewExportHandler(svc *service.ExportService, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{svc: svc, logger: logger}
}

// SharePoint GET /api/export/sharepoint
func (h *ExportHandler) SharePoint(c *gin.Context) {
	payload, err := h.svc.SharePoint(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err, "Failed to export data")
		return
	}
	Success(c, payload)
}

// Workbook GET /api/export/safety-plans.xlsx
func (h *ExportHandler) Workbook(c *gin.Context) {
	f, filename, err := h.svc.Workbook(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err, "Failed to export workbook")
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	if err := f.Write(c.Writer); err != nil {
		h.logger.Error("Failed to write workbook", zap.Error(err))
	}
}

// HealthHandler 存活 / 就绪探针与版本信息
type HealthHandler struct {
	svc   *service.HealthService
	build BuildInfo
}

func NewHealthHandler(svc *service.HealthService, build BuildInfo) *HealthHandler {
	return &HealthHandler{svc: svc, build: build}
}

// Live GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	st := h.svc.Ready(c.Request.Context())
	status := http.StatusOK
	if !st.Ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, st)
}

// Version GET /version
func (h *HealthHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    h.build.Version,
		"build_time": h.build.BuildTime,
	})
}
