package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/abundance-ai/abundance/internal/model"
	"github.com/abundance-ai/abundance/internal/pkg/errcode"
	"github.com/abundance-ai/abundance/internal/pkg/response"
	"github.com/abundance-ai/abundance/internal/service"
)

type DocumentHandler struct {
	docs *service.DocumentService
}

func NewDocumentHandler(docs *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "multipart field 'file' is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "cannot read upload")
		return
	}
	defer func() { _ = file.Close() }()
	doc, err := h.docs.Upload(c.Request.Context(), mustUser(c), fileHeader.Filename, fileHeader.Size, file)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

type documentListResponse struct {
	Documents []*model.Document `json:"documents"`
	Total     int64             `json:"total"`
}

func (h *DocumentHandler) List(c *gin.Context) {
	limit, offset := pageParams(c)
	docs, total, err := h.docs.List(c.Request.Context(), mustUser(c).ID, limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, documentListResponse{Documents: docs, Total: total})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.docs.Get(c.Request.Context(), mustUser(c), c.Param("document_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.docs.Delete(c.Request.Context(), mustUser(c), c.Param("document_id")); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c)
}

func (h *DocumentHandler) Process(c *gin.Context) {
	if err := h.docs.Trigger(c.Request.Context(), mustUser(c), c.Param("document_id")); err != nil {
		handleError(c, err)
		return
	}
	response.OK(c)
}
