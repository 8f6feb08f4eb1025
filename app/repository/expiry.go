package repository

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-memberships/app/entity"
)

type ExpiryRepository struct {
	db DBTX
}

func NewExpiryRepository(db DBTX) *ExpiryRepository {
	return &ExpiryRepository{db: db}
}

// Upsert keeps a single pending expiry per subscriber; a newer term replaces the old one.
func (r *ExpiryRepository) Upsert(ctx context.Context, expiry *entity.ScheduledExpiry) error {
	query := `
		INSERT INTO scheduled_expiries (subscriber_id, package_id, fire_at, created_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE package_id = VALUES(package_id), fire_at = VALUES(fire_at), created_at = VALUES(created_at)
	`

	_, err := r.db.ExecContext(ctx, query,
		expiry.SubscriberID,
		expiry.PackageID,
		expiry.FireAt,
		expiry.CreatedAt,
	)
	return err
}

func (r *ExpiryRepository) Delete(ctx context.Context, subscriberID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_expiries WHERE subscriber_id = ?`, subscriberID)
	return err
}

// DeleteIfMatches removes the row only when it still describes the given fire.
func (r *ExpiryRepository) DeleteIfMatches(ctx context.Context, expiry *entity.ScheduledExpiry) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM scheduled_expiries WHERE subscriber_id = ? AND package_id = ? AND fire_at = ?`,
		expiry.SubscriberID, expiry.PackageID, expiry.FireAt,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *ExpiryRepository) FindBySubscriber(ctx context.Context, subscriberID string) (*entity.ScheduledExpiry, error) {
	items, err := r.list(ctx, `
		SELECT subscriber_id, package_id, fire_at, created_at
		FROM scheduled_expiries
		WHERE subscriber_id = ?
	`, subscriberID)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

func (r *ExpiryRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*entity.ScheduledExpiry, error) {
	return r.list(ctx, `
		SELECT subscriber_id, package_id, fire_at, created_at
		FROM scheduled_expiries
		WHERE fire_at <= ?
		ORDER BY fire_at ASC
		LIMIT ?
	`, now, limit)
}

func (r *ExpiryRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.ScheduledExpiry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.ScheduledExpiry, 0)
	for rows.Next() {
		item := &entity.ScheduledExpiry{}
		if err := rows.Scan(&item.SubscriberID, &item.PackageID, &item.FireAt, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
