// Package db provides SurrealDB query helpers shared by the store methods.
package db

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// query runs sql and returns the rows of its last statement. Multi-statement
// queries (LET, transactions) put the interesting result last.
func query[T any](ctx context.Context, c *Client, op, sql string, vars map[string]any) ([]T, error) {
	results, err := surrealdb.Query[[]T](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	return (*results)[len(*results)-1].Result, nil
}

// queryOne returns the first row of the last statement or nil.
func queryOne[T any](ctx context.Context, c *Client, op, sql string, vars map[string]any) (*T, error) {
	rows, err := query[T](ctx, c, op, sql, vars)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// exec runs sql for its side effects, retrying transaction conflicts.
func (c *Client) exec(ctx context.Context, op, sql string, vars map[string]any) error {
	err := retryConflicts(ctx, func() error {
		_, err := surrealdb.Query[any](ctx, c.db, sql, vars)
		return wrapQueryError(err)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// limitClause renders LIMIT $limit, or nothing for a non-positive limit.
func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return "LIMIT $limit"
}

// recordIDs converts plain ids to record ids of table, dropping duplicates.
func recordIDs(table string, ids []string) []surrealmodels.RecordID {
	seen := make(map[string]struct{}, len(ids))
	out := make([]surrealmodels.RecordID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, surrealmodels.NewRecordID(table, id))
	}
	return out
}
