package repo

import (
	"context"
	"database/sql"

	"github.com/xxxsen/scholarai/internal/model"
	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

const imageTable = "images"

type ImageRepo struct {
	store *MetadataStore
}

func NewImageRepo(store *MetadataStore) *ImageRepo {
	return &ImageRepo{store: store}
}

func (r *ImageRepo) Create(ctx context.Context, img *model.ImageRecord) error {
	return r.store.Insert(ctx, imageTable, map[string]interface{}{
		"id":          img.ID,
		"user_id":     img.UserID,
		"document_id": img.DocumentID,
		"description": img.Description,
		"message":     img.Message,
		"uploaded_at": img.UploadedAt,
	})
}

func (r *ImageRepo) GetByDocument(ctx context.Context, docID string) (*model.ImageRecord, error) {
	where := map[string]interface{}{
		"document_id": docID,
		"_limit":      []uint{0, 1},
	}
	fields := []string{"id", "user_id", "document_id", "description", "message", "uploaded_at"}
	var out *model.ImageRecord
	err := r.store.Select(ctx, imageTable, where, fields, func(rows *sql.Rows) error {
		var img model.ImageRecord
		if err := rows.Scan(&img.ID, &img.UserID, &img.DocumentID, &img.Description, &img.Message, &img.UploadedAt); err != nil {
			return err
		}
		out = &img
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, appErr.ErrNotFound
	}
	return out, nil
}

func (r *ImageRepo) DeleteByDocument(ctx context.Context, docID string) error {
	_, err := r.store.Delete(ctx, imageTable, map[string]interface{}{"document_id": docID})
	return err
}
