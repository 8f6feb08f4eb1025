package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-memberships/app/entity"
)

var (
	ErrMembershipAlreadyExists = errors.New("membership already exists")
	ErrMembershipVersionStale  = errors.New("membership version is stale")
)

type MembershipRepository struct {
	db DBTX
}

func NewMembershipRepository(db DBTX) *MembershipRepository {
	return &MembershipRepository{db: db}
}

const membershipColumns = `
	subscriber_id, email, package_id,
	property_quota, featured_quota, property_usage, featured_usage,
	due_at, payment_method, recurring, gateway_subscription_id,
	version, created_at, updated_at
`

func (r *MembershipRepository) Create(ctx context.Context, m *entity.Membership) error {
	query := `
		INSERT INTO memberships (
			subscriber_id, email, package_id,
			property_quota, featured_quota, property_usage, featured_usage,
			due_at, payment_method, recurring, gateway_subscription_id,
			version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		m.SubscriberID,
		m.Email,
		m.PackageID,
		m.PropertyQuota,
		m.FeaturedQuota,
		m.PropertyUsage,
		m.FeaturedUsage,
		m.DueAt,
		m.PaymentMethod,
		m.Recurring,
		nullableStringValue(m.GatewaySubscriptionID),
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrMembershipAlreadyExists
		}
		return err
	}
	m.Version = 1
	return nil
}

// Update writes m only if the stored version still equals m.Version, then bumps it.
func (r *MembershipRepository) Update(ctx context.Context, m *entity.Membership) error {
	query := `
		UPDATE memberships
		SET email = ?, package_id = ?,
		    property_quota = ?, featured_quota = ?, property_usage = ?, featured_usage = ?,
		    due_at = ?, payment_method = ?, recurring = ?, gateway_subscription_id = ?,
		    version = version + 1, updated_at = ?
		WHERE subscriber_id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		m.Email,
		m.PackageID,
		m.PropertyQuota,
		m.FeaturedQuota,
		m.PropertyUsage,
		m.FeaturedUsage,
		m.DueAt,
		m.PaymentMethod,
		m.Recurring,
		nullableStringValue(m.GatewaySubscriptionID),
		m.UpdatedAt,
		m.SubscriberID,
		m.Version,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrMembershipAlreadyExists
		}
		return err
	}
	if err := requireAffected(result, ErrMembershipVersionStale); err != nil {
		return err
	}
	m.Version++
	return nil
}

func (r *MembershipRepository) Delete(ctx context.Context, subscriberID string, version uint64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE subscriber_id = ? AND version = ?`,
		subscriberID, version,
	)
	if err != nil {
		return err
	}
	return requireAffected(result, ErrMembershipVersionStale)
}

func (r *MembershipRepository) FindBySubscriber(ctx context.Context, subscriberID string) (*entity.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE subscriber_id = ?`
	return r.findOne(ctx, query, subscriberID)
}

func (r *MembershipRepository) FindByGatewaySubscription(ctx context.Context, gatewaySubscriptionID string) (*entity.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE gateway_subscription_id = ?`
	return r.findOne(ctx, query, gatewaySubscriptionID)
}

func (r *MembershipRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.Membership, error) {
	item := &entity.Membership{}
	if err := scanMembership(r.db.QueryRowContext(ctx, query, args...), item); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return item, nil
}

func scanMembership(scanner rowScanner, item *entity.Membership) error {
	var gatewaySubscriptionID sql.NullString
	err := scanner.Scan(
		&item.SubscriberID,
		&item.Email,
		&item.PackageID,
		&item.PropertyQuota,
		&item.FeaturedQuota,
		&item.PropertyUsage,
		&item.FeaturedUsage,
		&item.DueAt,
		&item.PaymentMethod,
		&item.Recurring,
		&gatewaySubscriptionID,
		&item.Version,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return err
	}
	item.GatewaySubscriptionID = stringPtrFromNull(gatewaySubscriptionID)
	return nil
}
