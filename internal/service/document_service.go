package service

import (
	"context"
	"errors"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/scholarai/internal/filestore"
	"github.com/xxxsen/scholarai/internal/model"
	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
	"github.com/xxxsen/scholarai/internal/retry"
	"github.com/xxxsen/scholarai/internal/semcache"
	"github.com/xxxsen/scholarai/internal/vectorindex"
)

const maxListLimit = 100

type DocumentDeps struct {
	Documents DocumentStore
	Answers   AnswerStore
	Images    ImageStore
	Index     vectorindex.Index
	Cache     semcache.Cache
	Files     filestore.Store
	Retry     *retry.Executor
}

type DocumentService struct {
	deps DocumentDeps
}

func NewDocumentService(deps DocumentDeps) *DocumentService {
	if deps.Retry == nil {
		deps.Retry = retry.New(retry.Config{})
	}
	if deps.Cache == nil {
		deps.Cache = semcache.NewNop()
	}
	return &DocumentService{deps: deps}
}

func (s *DocumentService) List(ctx context.Context, userID string, offset, limit uint) ([]*model.Document, error) {
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	return retry.Do(ctx, s.deps.Retry, "list_documents", func(ctx context.Context) ([]*model.Document, error) {
		return s.deps.Documents.ListByOwner(ctx, userID, offset, limit)
	})
}

func (s *DocumentService) Get(ctx context.Context, userID, docID string) (*model.Document, error) {
	return retry.Do(ctx, s.deps.Retry, "get_document", func(ctx context.Context) (*model.Document, error) {
		return s.deps.Documents.GetByOwner(ctx, docID, userID)
	})
}

func (s *DocumentService) History(ctx context.Context, userID, docID string) ([]*model.AnswerRecord, error) {
	if _, err := s.Get(ctx, userID, docID); err != nil {
		return nil, err
	}
	return retry.Do(ctx, s.deps.Retry, "list_answers", func(ctx context.Context) ([]*model.AnswerRecord, error) {
		return s.deps.Answers.ListByDocument(ctx, docID, userID)
	})
}

// Delete removes a document and everything derived from it. Vectors go
// first so a failure never leaves searchable chunks behind a deleted record.
func (s *DocumentService) Delete(ctx context.Context, userID, docID string) error {
	doc, err := s.Get(ctx, userID, docID)
	if err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", docID))
	if err := s.deps.Retry.Run(ctx, "delete_vectors", func(ctx context.Context) error {
		return s.deps.Index.DeleteByDocument(ctx, doc.Collection, doc.ID)
	}); err != nil && !errors.Is(err, appErr.ErrNotFound) {
		logger.Error("delete vectors failed", zap.Error(err))
		return err
	}
	if err := s.deps.Cache.Purge(ctx, doc.ID); err != nil {
		logger.Warn("purge semantic cache failed", zap.Error(err))
	}
	if err := s.deps.Retry.Run(ctx, "delete_answers", func(ctx context.Context) error {
		return s.deps.Answers.DeleteByDocument(ctx, doc.ID)
	}); err != nil {
		return err
	}
	if doc.SourceKind == model.SourceKindImage && s.deps.Images != nil {
		if err := s.deps.Retry.Run(ctx, "delete_image", func(ctx context.Context) error {
			return s.deps.Images.DeleteByDocument(ctx, doc.ID)
		}); err != nil {
			return err
		}
	}
	if doc.FileKey != "" {
		if deleter, ok := s.deps.Files.(filestore.Deleter); ok {
			if err := deleter.Delete(ctx, doc.FileKey); err != nil {
				logger.Warn("delete raw upload failed", zap.String("file_key", doc.FileKey), zap.Error(err))
			}
		}
	}
	if err := s.deps.Retry.Run(ctx, "delete_document", func(ctx context.Context) error {
		return s.deps.Documents.Delete(ctx, doc.ID, userID)
	}); err != nil {
		return err
	}
	logger.Info("document deleted")
	return nil
}
