package audit

import "context"

// Store persists ledger entries. Append-only: no update or delete exists.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	// Query returns one page of matching entries ordered by occurred_at
	// descending, plus the total match count.
	Query(ctx context.Context, filter Filter, limit, offset int) ([]Entry, int, error)
}
