package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/xxxsen/scholarai/internal/model"
)

const answerTable = "document_qa"

type AnswerRepo struct {
	store *MetadataStore
}

func NewAnswerRepo(store *MetadataStore) *AnswerRepo {
	return &AnswerRepo{store: store}
}

func (r *AnswerRepo) Create(ctx context.Context, rec *model.AnswerRecord) error {
	contextJSON, err := encodeContext(rec.Context)
	if err != nil {
		return err
	}
	return r.store.Insert(ctx, answerTable, map[string]interface{}{
		"id":          rec.ID,
		"document_id": rec.DocumentID,
		"user_id":     rec.UserID,
		"question":    rec.Question,
		"answer":      rec.Answer,
		"context":     contextJSON,
		"ctime":       rec.Ctime,
	})
}

func (r *AnswerRepo) ListByDocument(ctx context.Context, docID, userID string) ([]*model.AnswerRecord, error) {
	where := map[string]interface{}{
		"document_id": docID,
		"user_id":     userID,
		"_orderby":    "ctime asc",
	}
	fields := []string{"id", "document_id", "user_id", "question", "answer", "context", "ctime"}
	out := make([]*model.AnswerRecord, 0)
	err := r.store.Select(ctx, answerTable, where, fields, func(rows *sql.Rows) error {
		var (
			rec    model.AnswerRecord
			rawCtx []byte
		)
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.UserID, &rec.Question, &rec.Answer, &rawCtx, &rec.Ctime); err != nil {
			return err
		}
		chunks, err := decodeContext(rawCtx)
		if err != nil {
			return err
		}
		rec.Context = chunks
		out = append(out, &rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *AnswerRepo) DeleteByDocument(ctx context.Context, docID string) error {
	_, err := r.store.Delete(ctx, answerTable, map[string]interface{}{"document_id": docID})
	return err
}

func encodeContext(chunks []string) (string, error) {
	if chunks == nil {
		chunks = []string{}
	}
	raw, err := json.Marshal(chunks)
	if err != nil {
		return "", fmt.Errorf("encode context: %w", err)
	}
	return string(raw), nil
}

func decodeContext(raw []byte) ([]string, error) {
	out := make([]string, 0)
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}
	return out, nil
}
