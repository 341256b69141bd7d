package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/scholarai/internal/middleware"
	"github.com/xxxsen/scholarai/internal/model"
	"github.com/xxxsen/scholarai/internal/pkg/errcode"
	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
	"github.com/xxxsen/scholarai/internal/pkg/response"
	"github.com/xxxsen/scholarai/internal/service"
)

type Ingester interface {
	Ingest(ctx context.Context, req *service.IngestRequest) (*service.IngestResult, error)
}

type Asker interface {
	Ask(ctx context.Context, req *service.AskRequest) (*service.AskResult, error)
}

type DocumentManager interface {
	List(ctx context.Context, userID string, offset, limit uint) ([]*model.Document, error)
	Get(ctx context.Context, userID, docID string) (*model.Document, error)
	History(ctx context.Context, userID, docID string) ([]*model.AnswerRecord, error)
	Delete(ctx context.Context, userID, docID string) error
}

type askRequest struct {
	DocumentID string `json:"document_id"`
	Question   string `json:"question"`
}

func getUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserIDKey)
}

func getDisplayName(c *gin.Context) string {
	return c.GetString(middleware.ContextDisplayNameKey)
}

// errorMapping is checked in order. Pipeline errors come first because they
// wrap taxonomy sentinels. An empty msg uses the code's fixed text.
var errorMapping = []struct {
	target error
	code   int
	msg    string
}{
	{appErr.ErrUnsupportedFile, errcode.ErrInvalidFile, ""},
	{appErr.ErrNoContent, errcode.ErrNoContent, ""},
	{appErr.ErrExtractionFailed, errcode.ErrInvalidFile, "could not read the uploaded file"},
	{appErr.ErrIndexingFailed, errcode.ErrIndexFailed, ""},
	{appErr.ErrMetadataPersistFailed, errcode.ErrUploadFailed, ""},
	{appErr.ErrUnauthorized, errcode.ErrUnauthorized, ""},
	{appErr.ErrForbidden, errcode.ErrForbidden, ""},
	{appErr.ErrNotFound, errcode.ErrNotFound, ""},
	{appErr.ErrInvalid, errcode.ErrInvalid, ""},
	{appErr.ErrConflict, errcode.ErrConflict, ""},
	{appErr.ErrTooMany, errcode.ErrTooMany, ""},
	{appErr.ErrModelRejected, errcode.ErrAIRejected, ""},
	{appErr.ErrModelUnavailable, errcode.ErrAIUnavailable, ""},
	{appErr.ErrUnavailable, errcode.ErrUnavailable, ""},
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	code, msg := errcode.ErrUnknown, ""
	for _, m := range errorMapping {
		if errors.Is(err, m.target) {
			code, msg = m.code, m.msg
			break
		}
	}
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Int("code", code),
		zap.Error(err),
	)
	if code == errcode.ErrUnknown {
		logger.Error("request failed")
	} else {
		logger.Warn("request failed")
	}
	response.Error(c, code, msg)
}

func invalid(c *gin.Context, msg string) {
	response.Error(c, errcode.ErrInvalid, msg)
}

func ask(c *gin.Context, asker Asker, kind model.SourceKind) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, "invalid request")
		return
	}
	if req.DocumentID == "" || req.Question == "" {
		invalid(c, "document_id and question are required")
		return
	}
	res, err := asker.Ask(c.Request.Context(), &service.AskRequest{
		DocumentID:  req.DocumentID,
		UserID:      getUserID(c),
		DisplayName: getDisplayName(c),
		Question:    req.Question,
		Kind:        kind,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}
