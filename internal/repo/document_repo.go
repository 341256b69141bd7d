package repo

import (
	"context"
	"database/sql"

	"github.com/xxxsen/scholarai/internal/model"
	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

const documentTable = "documents"

var documentFields = []string{"id", "owner_id", "source_kind", "file_name", "file_key", "source_url", "collection", "page_count", "chunk_count", "uploaded_at"}

type DocumentRepo struct {
	store *MetadataStore
}

func NewDocumentRepo(store *MetadataStore) *DocumentRepo {
	return &DocumentRepo{store: store}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	return r.store.Insert(ctx, documentTable, map[string]interface{}{
		"id":          doc.ID,
		"owner_id":    doc.OwnerID,
		"source_kind": string(doc.SourceKind),
		"file_name":   doc.FileName,
		"file_key":    doc.FileKey,
		"source_url":  doc.SourceURL,
		"collection":  doc.Collection,
		"page_count":  doc.PageCount,
		"chunk_count": doc.ChunkCount,
		"uploaded_at": doc.UploadedAt,
	})
}

// GetByOwner returns ErrNotFound both when the document is missing and when
// it belongs to someone else.
func (r *DocumentRepo) GetByOwner(ctx context.Context, docID, ownerID string) (*model.Document, error) {
	where := map[string]interface{}{
		"id":       docID,
		"owner_id": ownerID,
		"_limit":   []uint{0, 1},
	}
	var out []*model.Document
	if err := r.store.Select(ctx, documentTable, where, documentFields, scanDocumentInto(&out)); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, appErr.ErrNotFound
	}
	return out[0], nil
}

func (r *DocumentRepo) ListByOwner(ctx context.Context, ownerID string, offset, limit uint) ([]*model.Document, error) {
	where := map[string]interface{}{
		"owner_id": ownerID,
		"_orderby": "uploaded_at desc",
	}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	out := make([]*model.Document, 0)
	if err := r.store.Select(ctx, documentTable, where, documentFields, scanDocumentInto(&out)); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *DocumentRepo) Delete(ctx context.Context, docID, ownerID string) error {
	affected, err := r.store.Delete(ctx, documentTable, map[string]interface{}{
		"id":       docID,
		"owner_id": ownerID,
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func scanDocumentInto(out *[]*model.Document) func(*sql.Rows) error {
	return func(rows *sql.Rows) error {
		var (
			doc  model.Document
			kind string
		)
		if err := rows.Scan(&doc.ID, &doc.OwnerID, &kind, &doc.FileName, &doc.FileKey, &doc.SourceURL,
			&doc.Collection, &doc.PageCount, &doc.ChunkCount, &doc.UploadedAt); err != nil {
			return err
		}
		doc.SourceKind = model.SourceKind(kind)
		*out = append(*out, &doc)
		return nil
	}
}
