package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func (s *Store) CreateAccessRule(ctx context.Context, r AccessRule) (string, error) {
	if r.ID == "" {
		r.ID = NewID()
	}
	_, err := s.Pool.Exec(ctx, `
INSERT INTO access_rules (id, kind, pattern, access_level, allow, message, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.Kind, r.Pattern, r.AccessLevel, r.Allow, r.Message, nullableTime(r.ExpiresAt))
	if err != nil {
		return "", fmt.Errorf("insert access rule: %w", err)
	}
	return r.ID, nil
}

// ListAccessRules returns the rules that have not expired at now, oldest first.
func (s *Store) ListAccessRules(ctx context.Context, now time.Time) ([]AccessRule, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT id, kind, pattern, access_level, allow, message, expires_at, created_at
FROM access_rules
WHERE expires_at IS NULL OR expires_at > $1
ORDER BY created_at, id`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AccessRule
	for rows.Next() {
		var r AccessRule
		var expires pgtype.Timestamptz
		if err := rows.Scan(&r.ID, &r.Kind, &r.Pattern, &r.AccessLevel, &r.Allow, &r.Message, &expires, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.ExpiresAt = optionalTime(expires)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) DeleteAccessRule(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM access_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
