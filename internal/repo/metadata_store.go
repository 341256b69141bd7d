package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/scholarai/internal/pkg/dbutil"
	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

// MetadataStore is a thin gendry layer over the relational store. Callers
// pass plain maps and get back errors classified by the shared sentinels.
type MetadataStore struct {
	db *sql.DB
}

func NewMetadataStore(db *sql.DB) *MetadataStore {
	return &MetadataStore{db: db}
}

func (s *MetadataStore) DB() *sql.DB {
	return s.db
}

func (s *MetadataStore) Insert(ctx context.Context, table string, record map[string]interface{}) error {
	sqlStr, args, err := builder.BuildInsert(table, []map[string]interface{}{record})
	if err != nil {
		return fmt.Errorf("build insert %s: %w", table, err)
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return wrapErr("insert", table, err)
	}
	return nil
}

// Select runs the query and calls scan once per row.
func (s *MetadataStore) Select(ctx context.Context, table string, where map[string]interface{}, fields []string, scan func(*sql.Rows) error) error {
	sqlStr, args, err := builder.BuildSelect(table, where, fields)
	if err != nil {
		return fmt.Errorf("build select %s: %w", table, err)
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return wrapErr("select", table, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
	}
	if err := rows.Err(); err != nil {
		return wrapErr("select", table, err)
	}
	return nil
}

func (s *MetadataStore) Delete(ctx context.Context, table string, where map[string]interface{}) (int64, error) {
	sqlStr, args, err := builder.BuildDelete(table, where)
	if err != nil {
		return 0, fmt.Errorf("build delete %s: %w", table, err)
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, wrapErr("delete", table, err)
	}
	return res.RowsAffected()
}

func wrapErr(op, table string, err error) error {
	switch {
	case dbutil.IsConflict(err):
		return fmt.Errorf("%s %s: %w: %w", op, table, appErr.ErrConflict, err)
	case dbutil.IsUnavailable(err):
		return fmt.Errorf("%s %s: %w: %w", op, table, appErr.ErrUnavailable, err)
	default:
		return fmt.Errorf("%s %s: %w", op, table, err)
	}
}
