package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/entity"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/service"
)

// RegisterHandler 登记簿(吊车检查、Draeger 校准、事故、文档)的通用增删改查
type RegisterHandler[T any] struct {
	svc    *service.RegisterService[T]
	name   string
	logger *zap.Logger
}

func NewRegisterHandler[T any](svc *service.RegisterService[T], name string, logger *zap.Logger) *RegisterHandler[T] {
	return &RegisterHandler[T]{svc: svc, name: name, logger: logger}
}

// List GET /api/<register>
func (h *RegisterHandler[T]) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err, "Failed to fetch "+h.name+"s")
		return
	}
	Success(c, items)
}

// Get GET /api/<register>/:id
func (h *RegisterHandler[T]) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	item, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, err, "Failed to fetch "+h.name)
		return
	}
	Success(c, item)
}

// Create POST /api/<register>
func (h *RegisterHandler[T]) Create(c *gin.Context) {
	body, ok := rawBody(c)
	if !ok {
		return
	}
	item, err := h.svc.Create(c.Request.Context(), body)
	if err != nil {
		handleError(c, h.logger, err, "Failed to create "+h.name)
		return
	}
	Created(c, item)
}

// Patch PATCH /api/<register>/:id
func (h *RegisterHandler[T]) Patch(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	body, ok := rawBody(c)
	if !ok {
		return
	}
	item, err := h.svc.Patch(c.Request.Context(), id, body)
	if err != nil {
		handleError(c, h.logger, err, "Failed to update "+h.name)
		return
	}
	Success(c, item)
}

// Delete DELETE /api/<register>/:id
func (h *RegisterHandler[T]) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		handleError(c, h.logger, err, "Failed to delete "+h.name)
		return
	}
	NoContent(c)
}

// DocumentHandler 文档登记及文件上传下载
type DocumentHandler struct {
	*RegisterHandler[entity.Document]
	docs *service.DocumentService
}

func NewDocumentHandler(svc *service.DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		RegisterHandler: NewRegisterHandler(svc.RegisterService, "document", logger),
		docs:            svc,
	}
}

// UploadFile POST /api/documents/:id/file (multipart, 字段 file)
func (h *DocumentHandler) UploadFile(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "File is required")
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		BadRequest(c, "Failed to read uploaded file")
		return
	}
	defer src.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	doc, err := h.docs.Upload(c.Request.Context(), id, fileHeader.Filename, src, fileHeader.Size, contentType)
	if err != nil {
		handleError(c, h.logger, err, "Failed to upload document file")
		return
	}
	Success(c, doc)
}

// DownloadFile GET /api/documents/:id/file 返回限时下载链接
func (h *DocumentHandler) DownloadFile(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	url, err := h.docs.DownloadURL(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, err, "Failed to create download link")
		return
	}
	Success(c, gin.H{"url": url})
}
