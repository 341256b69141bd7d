package service

import (
	"context"

	"github.com/xxxsen/scholarai/internal/model"
)

// DocumentStore is the metadata persistence the services need. repo.DocumentRepo
// satisfies it.
type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByOwner(ctx context.Context, docID, ownerID string) (*model.Document, error)
	ListByOwner(ctx context.Context, ownerID string, offset, limit uint) ([]*model.Document, error)
	Delete(ctx context.Context, docID, ownerID string) error
}

type AnswerStore interface {
	Create(ctx context.Context, rec *model.AnswerRecord) error
	ListByDocument(ctx context.Context, docID, userID string) ([]*model.AnswerRecord, error)
	DeleteByDocument(ctx context.Context, docID string) error
}

type ImageStore interface {
	Create(ctx context.Context, img *model.ImageRecord) error
	DeleteByDocument(ctx context.Context, docID string) error
}
