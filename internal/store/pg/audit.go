package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"meshadmin.org/internal/audit"
)

var _ audit.Store = (*Store)(nil)

// Append inserts one ledger row. There is no update or delete path for
// audit_log anywhere in this package.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	metaJSON := []byte("{}")
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metaJSON = encoded
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_log (
			id, actor_id, actor_display, actor_origin,
			action, resource_type, resource_id,
			before_state, after_state, metadata, occurred_at
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		entry.ID,
		nullable(entry.ActorID),
		nullable(entry.ActorDisplay),
		nullable(entry.ActorOrigin),
		entry.Action,
		entry.ResourceType,
		nullable(entry.ResourceID),
		nullableRaw(entry.Before),
		nullableRaw(entry.After),
		metaJSON,
		entry.OccurredAt,
	)
	return err
}

// Query pages through matching entries newest first.
func (s *Store) Query(ctx context.Context, filter audit.Filter, limit, offset int) ([]audit.Entry, int, error) {
	if s.db == nil {
		return nil, 0, errors.New("database connection unavailable")
	}
	where, args := buildAuditFilter(filter)

	var total int
	countQuery := `select count(*) from audit_log` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageQuery := fmt.Sprintf(`
		select id, actor_id, actor_display, actor_origin,
			action, resource_type, resource_id,
			before_state, after_state, metadata, occurred_at
		from audit_log%s
		order by occurred_at desc, id desc
		limit $%d offset $%d
	`, where, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, pageQuery, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var actorID, display, origin, rid sql.NullString
		var before, after, metaJSON []byte
		if err := rows.Scan(&e.ID, &actorID, &display, &origin,
			&e.Action, &e.ResourceType, &rid,
			&before, &after, &metaJSON, &e.OccurredAt); err != nil {
			return nil, 0, err
		}
		e.ActorID = actorID.String
		e.ActorDisplay = display.String
		e.ActorOrigin = origin.String
		e.ResourceID = rid.String
		e.Before = before
		e.After = after
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &e.Metadata); err != nil {
				return nil, 0, fmt.Errorf("decode metadata: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func buildAuditFilter(filter audit.Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.ActorID != "" {
		add("actor_id = $%d", filter.ActorID)
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.ResourceType != "" {
		add("resource_type = $%d", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		add("resource_id = $%d", filter.ResourceID)
	}
	if !filter.From.IsZero() {
		add("occurred_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("occurred_at <= $%d", filter.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " where " + strings.Join(clauses, " and "), args
}

func nullable(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullableRaw(v json.RawMessage) any {
	if len(v) == 0 {
		return nil
	}
	return []byte(v)
}
