package store

import (
	"context"

	"github.com/rotisserie/eris"
)

// CanEnrich reports whether the user has enrichment calls left. Users without
// a row get the store's default quota; a negative default means unlimited.
func (s *Store) CanEnrich(ctx context.Context, userID string) (bool, error) {
	if err := s.ensureEntitlement(ctx, userID); err != nil {
		return false, err
	}
	var remaining int
	err := s.db.QueryRowContext(ctx,
		`SELECT remaining FROM entitlements WHERE user_id = ?`, userID).Scan(&remaining)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: get entitlement")
	}
	return remaining != 0, nil
}

// ConsumeEnrichmentCall decrements the user's quota. Unlimited (negative)
// quotas are never decremented, only counted.
func (s *Store) ConsumeEnrichmentCall(ctx context.Context, userID string) error {
	if err := s.ensureEntitlement(ctx, userID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE entitlements
		 SET remaining = CASE WHEN remaining > 0 THEN remaining - 1 ELSE remaining END,
		     used = used + 1
		 WHERE user_id = ?`, userID)
	return eris.Wrapf(err, "sqlite: consume enrichment %s", userID)
}

// SetQuota overrides a user's remaining enrichment calls.
func (s *Store) SetQuota(ctx context.Context, userID string, remaining int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entitlements (user_id, remaining) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET remaining = excluded.remaining`,
		userID, remaining)
	return eris.Wrapf(err, "sqlite: set quota %s", userID)
}

func (s *Store) ensureEntitlement(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO entitlements (user_id, remaining) VALUES (?, ?)`,
		userID, s.defaultQuota)
	return eris.Wrap(err, "sqlite: ensure entitlement")
}
