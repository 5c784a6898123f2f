// Package handler EHS HTTP 接口
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/entity"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/service"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/sse"
)

// Handlers 所有 handler 的集合
type Handlers struct {
	SafetyPlan *SafetyPlanHandler
	AuditLog   *AuditLogHandler
	Report     *ReportHandler
	Preference *PreferenceHandler
	SRB        *SRBHandler
	Permit     *PermitHandler
	Crane      *RegisterHandler[entity.CraneInspection]
	Draeger    *RegisterHandler[entity.DraegerCalibration]
	Incident   *RegisterHandler[entity.Incident]
	Document   *DocumentHandler
	Hazard     *HazardHandler
	Export     *ExportHandler
	Health     *HealthHandler
	SSE        *SSEHandler
}

// BuildInfo 版本信息，由 main 注入
type BuildInfo struct {
	Version   string
	BuildTime string
}

func NewHandlers(svc *service.Services, hub *sse.Hub, logger *zap.Logger, build BuildInfo) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		SafetyPlan: NewSafetyPlanHandler(svc.SafetyPlans, svc.AuditLogs, logger),
		AuditLog:   NewAuditLogHandler(svc.AuditLogs, logger),
		Report:     NewReportHandler(svc.Reports, logger),
		Preference: NewPreferenceHandler(svc.Preferences, logger),
		SRB:        NewSRBHandler(svc.SRB, logger),
		Permit:     NewPermitHandler(svc.Permits, logger),
		Crane:      NewRegisterHandler(svc.CraneInspections, "crane inspection", logger),
		Draeger:    NewRegisterHandler(svc.DraegerCalibrations, "Draeger calibration", logger),
		Incident:   NewRegisterHandler(svc.Incidents, "incident", logger),
		Document:   NewDocumentHandler(svc.Documents, logger),
		Hazard:     NewHazardHandler(svc.Catalog),
		Export:     NewExportHandler(svc.Export, logger),
		Health:     NewHealthHandler(svc.Health, build),
		SSE:        NewSSEHandler(hub),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Details []string    `json:"details,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// NoContent 删除成功
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error 错误响应，HTTP 状态码为 code/100
func Error(c *gin.Context, code int, message string, details ...string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string, details ...string) {
	Error(c, 40000, message, details...)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// ServiceUnavailable 依赖未配置
func ServiceUnavailable(c *gin.Context, message string) {
	Error(c, 50300, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// handleError 把服务层错误映射为 HTTP 响应；内部错误只记日志，返回 fallback
func handleError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		BadRequest(c, service.PublicMessage(err, fallback), service.ErrorDetails(err)...)
	case errors.Is(err, service.ErrNotFound):
		NotFound(c, service.PublicMessage(err, fallback))
	case errors.Is(err, service.ErrBusinessRule):
		Error(c, 40001, service.PublicMessage(err, fallback))
	case service.IsStorageUnavailable(err):
		ServiceUnavailable(c, "File storage is not configured")
	default:
		logger.Error(fallback,
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err))
		InternalError(c, fallback)
	}
}

// bindError gin 绑定失败时返回字段级明细
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, fe.Field()+" is "+fe.Tag())
		}
		BadRequest(c, "Invalid request data", details...)
		return
	}
	BadRequest(c, "Invalid request body", err.Error())
}

// bindJSON 绑定请求体；空请求体按空对象处理，由服务层给出具体的必填提示
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		bindError(c, err)
		return false
	}
	return true
}

// rawBody 读取 JSON 请求体，不是合法 JSON 对象时直接返回 400
func rawBody(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		BadRequest(c, "Invalid request body")
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		BadRequest(c, "Invalid request body", err.Error())
		return nil, false
	}
	return body, true
}

// paramID 解析路径中的数字 id
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// queryID 可选的数字查询参数，缺省为 0
func queryID(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
