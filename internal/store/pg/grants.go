package pg

import (
	"context"
	"errors"

	"meshadmin.org/internal/ids"
	"meshadmin.org/internal/rbac"
)

var _ rbac.GrantStore = (*Store)(nil)

func (s *Store) Upsert(ctx context.Context, grant rbac.Grant) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into grants (id, actor_id, role, source, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $5)
		on conflict (actor_id, role, source)
		do update set updated_at = excluded.updated_at
	`, ids.New(), grant.ActorID, string(grant.Role), string(grant.Source), grant.UpdatedAt)
	return err
}

func (s *Store) Delete(ctx context.Context, actorID string, role rbac.Role, source rbac.Source) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		delete from grants
		where actor_id = $1 and role = $2 and source = $3
	`, actorID, string(role), string(source))
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return rbac.ErrNotFound
	}
	return nil
}

func (s *Store) ListByActor(ctx context.Context, actorID string) ([]rbac.Grant, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select actor_id, role, source, created_at, updated_at
		from grants
		where actor_id = $1
		order by role, source
	`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []rbac.Grant
	for rows.Next() {
		var (
			g      rbac.Grant
			role   string
			source string
		)
		if err := rows.Scan(&g.ActorID, &role, &source, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		g.Role = rbac.Role(role)
		g.Source = rbac.Source(source)
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// ReplaceDirectory swaps the actor's directory grants inside one transaction
// so concurrent EffectiveRoles readers never observe the deleted-but-not-yet-
// reinserted window.
func (s *Store) ReplaceDirectory(ctx context.Context, actorID string, roles []rbac.Role) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		delete from grants
		where actor_id = $1 and source = $2
	`, actorID, string(rbac.SourceDirectory)); err != nil {
		return err
	}
	for _, role := range roles {
		if _, err := tx.ExecContext(ctx, `
			insert into grants (id, actor_id, role, source, created_at, updated_at)
			values ($1, $2, $3, $4, now(), now())
		`, ids.New(), actorID, string(role), string(rbac.SourceDirectory)); err != nil {
			return err
		}
	}
	return tx.Commit()
}
