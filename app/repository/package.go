package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-memberships/app/entity"
)

type PackageRepository struct {
	db DBTX
}

func NewPackageRepository(db DBTX) *PackageRepository {
	return &PackageRepository{db: db}
}

const packageColumns = `
	id, title, price, duration, duration_unit,
	property_quota, featured_quota, popular, published, menu_order,
	paypal_plan_id, created_at, updated_at
`

// FindByID returns only published packages.
func (r *PackageRepository) FindByID(ctx context.Context, id uint64) (*entity.Package, error) {
	return r.find(ctx, `SELECT `+packageColumns+` FROM packages WHERE id = ? AND published = 1`, id)
}

// FindAnyByID ignores the published flag. Memberships keep renewing and
// earning credit on a package after it leaves the catalog.
func (r *PackageRepository) FindAnyByID(ctx context.Context, id uint64) (*entity.Package, error) {
	return r.find(ctx, `SELECT `+packageColumns+` FROM packages WHERE id = ?`, id)
}

func (r *PackageRepository) find(ctx context.Context, query string, id uint64) (*entity.Package, error) {
	item := &entity.Package{}
	if err := scanPackage(r.db.QueryRowContext(ctx, query, id), item); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *PackageRepository) ListPublished(ctx context.Context) ([]*entity.Package, error) {
	query := `SELECT ` + packageColumns + ` FROM packages WHERE published = 1 ORDER BY menu_order ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Package, 0)
	for rows.Next() {
		item := &entity.Package{}
		if err := scanPackage(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanPackage(scanner rowScanner, item *entity.Package) error {
	var planID sql.NullString
	err := scanner.Scan(
		&item.ID,
		&item.Title,
		&item.Price,
		&item.Duration,
		&item.DurationUnit,
		&item.PropertyQuota,
		&item.FeaturedQuota,
		&item.Popular,
		&item.Published,
		&item.MenuOrder,
		&planID,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return err
	}
	item.PayPalPlanID = stringPtrFromNull(planID)
	return nil
}
