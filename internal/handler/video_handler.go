package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/scholarai/internal/extract"
	"github.com/xxxsen/scholarai/internal/model"
	"github.com/xxxsen/scholarai/internal/pkg/response"
	"github.com/xxxsen/scholarai/internal/service"
)

type VideoHandler struct {
	ingest        Ingester
	qa            Asker
	maxUploadSize int64
}

func NewVideoHandler(ingest Ingester, qa Asker, maxUploadSize int64) *VideoHandler {
	return &VideoHandler{ingest: ingest, qa: qa, maxUploadSize: maxUploadSize}
}

type youtubeRequest struct {
	URL string `json:"url"`
}

type youtubeResponse struct {
	DocumentID string                 `json:"document_id"`
	Summary    string                 `json:"summary"`
	Message    string                 `json:"message"`
	Timestamps []model.VideoTimestamp `json:"timestamps"`
}

func (h *VideoHandler) YouTube(c *gin.Context) {
	var req youtubeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		invalid(c, "url is required")
		return
	}
	res, err := h.ingest.Ingest(c.Request.Context(), &service.IngestRequest{
		OwnerID: getUserID(c),
		Kind:    model.SourceKindVideo,
		Source:  &extract.Source{URL: strings.TrimSpace(req.URL)},
	})
	if err != nil {
		handleError(c, err)
		return
	}
	stamps := res.Timestamps
	if stamps == nil {
		stamps = []model.VideoTimestamp{}
	}
	response.Success(c, youtubeResponse{
		DocumentID: res.DocumentID,
		Summary:    res.Text,
		Message:    res.Message,
		Timestamps: stamps,
	})
}

type uploadVideoResponse struct {
	DocumentID string `json:"document_id"`
	Summary    string `json:"summary"`
	PageCount  int    `json:"page_count"`
	Message    string `json:"message"`
}

// Upload accepts a multipart "file" with one of the allowed video extensions.
// The model output holds a summary followed by a quiz with its answer key.
func (h *VideoHandler) Upload(c *gin.Context) {
	limitBody(c, h.maxUploadSize)
	up, err := readUpload(c, "file", h.maxUploadSize)
	if err != nil {
		handleError(c, err)
		return
	}
	if up == nil || len(up.Data) == 0 {
		invalid(c, "file is required")
		return
	}
	mime, ok := extract.VideoMime(up.FileName)
	if !ok {
		invalid(c, "unsupported video format, allowed: "+strings.Join(extract.VideoExtensions, ", "))
		return
	}
	res, err := h.ingest.Ingest(c.Request.Context(), &service.IngestRequest{
		OwnerID: getUserID(c),
		Kind:    model.SourceKindVideo,
		Source:  &extract.Source{FileName: up.FileName, MimeType: mime, Data: up.Data},
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, uploadVideoResponse{
		DocumentID: res.DocumentID,
		Summary:    res.Text,
		PageCount:  res.PageCount,
		Message:    res.Message,
	})
}

func (h *VideoHandler) Ask(c *gin.Context) {
	ask(c, h.qa, model.SourceKindVideo)
}
