package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raphaelgruber/spoilerguard/internal/store"
	"github.com/surrealdb/surrealdb.go"
)

var (
	// ErrRecordAlreadyExists indicates a CREATE hit an existing record id.
	ErrRecordAlreadyExists = errors.New("record already exists")

	// ErrTransactionConflict indicates concurrent writers touched the same
	// records. exec retries these before giving up.
	ErrTransactionConflict = errors.New("transaction conflict")
)

// queryErrorKinds maps SurrealDB query error fragments to sentinels.
var queryErrorKinds = []struct {
	fragment string
	sentinel error
}{
	{"already exists", ErrRecordAlreadyExists},
	{"Transaction conflict", ErrTransactionConflict},
	{"does not exist", store.ErrNotFound},
	{"HNSW", store.ErrVectorUnavailable},
	{"dimension", store.ErrVectorUnavailable},
}

// wrapQueryError tags a SurrealDB query error with the matching sentinel so
// callers can use errors.Is. Other errors pass through unchanged.
func wrapQueryError(err error) error {
	var queryErr *surrealdb.QueryError
	if !errors.As(err, &queryErr) {
		return err
	}
	for _, k := range queryErrorKinds {
		if strings.Contains(queryErr.Message, k.fragment) {
			return fmt.Errorf("%w: %s", k.sentinel, queryErr.Message)
		}
	}
	return err
}

const (
	conflictRetries   = 3
	conflictBaseDelay = 20 * time.Millisecond
)

// retryConflicts runs fn until it succeeds, fails with anything but a
// transaction conflict, or the retries run out.
func retryConflicts(ctx context.Context, fn func() error) error {
	delay := conflictBaseDelay
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, ErrTransactionConflict) || attempt == conflictRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
