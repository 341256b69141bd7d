package dbutil

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestFinalizeRebindsAndSwapsLimit(t *testing.T) {
	query, args := Finalize("SELECT id FROM documents WHERE (user_id=?) LIMIT ?,?", []interface{}{"u1", 20, 10})
	require.Equal(t, "SELECT id FROM documents WHERE (user_id=$1) LIMIT $2 OFFSET $3", query)
	require.Equal(t, []interface{}{"u1", 10, 20}, args)
}

func TestIsConflict(t *testing.T) {
	require.True(t, IsConflict(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	require.False(t, IsConflict(&pq.Error{Code: "42P01"}))
	require.False(t, IsConflict(errors.New("boom")))
}

func TestIsUnavailable(t *testing.T) {
	require.True(t, IsUnavailable(driver.ErrBadConn))
	require.True(t, IsUnavailable(&pq.Error{Code: "08006"}))
	require.True(t, IsUnavailable(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}))
	require.False(t, IsUnavailable(&pq.Error{Code: "42601"}))
	require.False(t, IsUnavailable(nil))
}
