package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/scholarai/internal/extract"
	"github.com/xxxsen/scholarai/internal/model"
	"github.com/xxxsen/scholarai/internal/pkg/response"
	"github.com/xxxsen/scholarai/internal/service"
)

type ImageHandler struct {
	ingest        Ingester
	qa            Asker
	maxUploadSize int64
}

func NewImageHandler(ingest Ingester, qa Asker, maxUploadSize int64) *ImageHandler {
	return &ImageHandler{ingest: ingest, qa: qa, maxUploadSize: maxUploadSize}
}

type uploadImageResponse struct {
	DocumentID  string `json:"document_id"`
	Description string `json:"description"`
	PageCount   int    `json:"page_count"`
	Message     string `json:"message"`
}

// Upload accepts a multipart "file" or a "url" form field, plus optional
// "description" and "message" fields.
func (h *ImageHandler) Upload(c *gin.Context) {
	limitBody(c, h.maxUploadSize)
	up, err := readUpload(c, "file", h.maxUploadSize)
	if err != nil {
		handleError(c, err)
		return
	}
	src := &extract.Source{
		URL:         strings.TrimSpace(c.PostForm("url")),
		Description: c.PostForm("description"),
	}
	if up != nil {
		src.FileName, src.MimeType, src.Data = up.FileName, up.MimeType, up.Data
	}
	if len(src.Data) == 0 && src.URL == "" {
		invalid(c, "either file or url is required")
		return
	}
	res, err := h.ingest.Ingest(c.Request.Context(), &service.IngestRequest{
		OwnerID: getUserID(c),
		Kind:    model.SourceKindImage,
		Source:  src,
		Message: c.PostForm("message"),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, uploadImageResponse{
		DocumentID:  res.DocumentID,
		Description: res.Text,
		PageCount:   res.PageCount,
		Message:     res.Message,
	})
}

func (h *ImageHandler) Ask(c *gin.Context) {
	ask(c, h.qa, model.SourceKindImage)
}
