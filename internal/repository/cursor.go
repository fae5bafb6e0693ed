package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"geojungle/internal/model"
)

// Postgres error codes the repositories translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// pgError unwraps a *pq.Error if err carries one.
func pgError(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr, true
	}
	return nil, false
}

func isUniqueViolation(err error) bool {
	pqErr, ok := pgError(err)
	return ok && pqErr.Code == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	pqErr, ok := pgError(err)
	return ok && pqErr.Code == pgForeignKeyViolation
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns a user search term into a substring pattern for
// ILIKE ... ESCAPE '\'. The term's own wildcards match literally.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// parseCursor reads the compound cursor "id:unixts".
func parseCursor(cursor string) (time.Time, int64, error) {
	parts := strings.Split(cursor, ":")
	if len(parts) != 2 {
		return time.Time{}, 0, model.Validationf("invalid cursor format")
	}
	var id, ts int64
	if _, err := fmt.Sscanf(parts[0], "%d", &id); err != nil {
		return time.Time{}, 0, model.Validationf("invalid cursor id")
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &ts); err != nil {
		return time.Time{}, 0, model.Validationf("invalid cursor timestamp")
	}
	return time.Unix(ts, 0), id, nil
}

func formatCursor(t time.Time, id int64) string {
	return fmt.Sprintf("%d:%d", id, t.Unix())
}

// keyset appends the "(col_ts, col_id) < (cursor)" predicate and returns the
// next placeholder index. Second-resolution cursors compare against the
// truncated column so rows in the same second are not skipped.
func keyset(where []string, args []interface{}, cursor *string, tsCol, idCol string) ([]string, []interface{}, error) {
	if cursor == nil || *cursor == "" {
		return where, args, nil
	}
	ts, id, err := parseCursor(*cursor)
	if err != nil {
		return nil, nil, err
	}
	args = append(args, ts, id)
	where = append(where, fmt.Sprintf("(date_trunc('second', %s), %s) < ($%d, $%d)", tsCol, idCol, len(args)-1, len(args)))
	return where, args, nil
}
