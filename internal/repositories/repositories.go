package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/threadx/internal/models"
)

var (
	_ models.Repository[*models.Thread]        = (*ThreadRepository)(nil)
	_ models.Repository[*models.PublishedPost] = (*PublishedPostRepository)(nil)
)

// rowQuerier is satisfied by both [*sql.DB] and [*sql.Tx].
type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
}

// NextSequence bumps the counter row of table's sequence table and returns the new value.
//
// Called with the transaction that inserts the row, so a failed insert leaves no gap.
// Sequences give drafts their short handle (thread #3).
func NextSequence(q rowQuerier, table string) (int, error) {
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)

	var sequence int
	if err := q.QueryRow(query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to increment %s sequence: %w", table, err)
	}
	return sequence, nil
}
