package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/scholarai/internal/extract"
	"github.com/xxxsen/scholarai/internal/model"
	"github.com/xxxsen/scholarai/internal/pkg/errcode"
	"github.com/xxxsen/scholarai/internal/pkg/response"
	"github.com/xxxsen/scholarai/internal/service"
)

type DocumentHandler struct {
	ingest        Ingester
	qa            Asker
	documents     DocumentManager
	maxUploadSize int64
}

func NewDocumentHandler(ingest Ingester, qa Asker, documents DocumentManager, maxUploadSize int64) *DocumentHandler {
	return &DocumentHandler{ingest: ingest, qa: qa, documents: documents, maxUploadSize: maxUploadSize}
}

type uploadDocumentResponse struct {
	DocumentID string `json:"document_id"`
	PageCount  int    `json:"page_count"`
	ChunkCount int    `json:"chunk_count"`
	Message    string `json:"message"`
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	limitBody(c, h.maxUploadSize)
	up, err := readUpload(c, "file", h.maxUploadSize)
	if err != nil {
		handleError(c, err)
		return
	}
	if up == nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	res, err := h.ingest.Ingest(c.Request.Context(), &service.IngestRequest{
		OwnerID: getUserID(c),
		Kind:    model.SourceKindPDF,
		Source:  &extract.Source{FileName: up.FileName, MimeType: up.MimeType, Data: up.Data},
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, uploadDocumentResponse{
		DocumentID: res.DocumentID,
		PageCount:  res.PageCount,
		ChunkCount: res.ChunkCount,
		Message:    res.Message,
	})
}

func (h *DocumentHandler) Ask(c *gin.Context) {
	ask(c, h.qa, model.SourceKindPDF)
}

func (h *DocumentHandler) List(c *gin.Context) {
	offset := parseUint(c.Query("offset"))
	limit := parseUint(c.Query("limit"))
	docs, err := h.documents.List(c.Request.Context(), getUserID(c), offset, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"documents": docs})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) History(c *gin.Context) {
	recs, err := h.documents.History(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"history": recs})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"document_id": c.Param("id")})
}

func parseUint(value string) uint {
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0
	}
	return uint(parsed)
}
