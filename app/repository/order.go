package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-memberships/app/entity"
)

var (
	ErrOrderAlreadyExists = errors.New("payment order already exists")
	ErrOrderNotPending    = errors.New("payment order is not pending")
)

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `
	id, gateway_order_id, subscriber_id, email, package_id,
	amount, credit, currency, status, created_at, updated_at
`

func (r *OrderRepository) Create(ctx context.Context, order *entity.PaymentOrder) error {
	query := `
		INSERT INTO payment_orders (
			gateway_order_id, subscriber_id, email, package_id,
			amount, credit, currency, status, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		order.GatewayOrderID,
		order.SubscriberID,
		order.Email,
		order.PackageID,
		order.Amount,
		order.Credit,
		order.Currency,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrOrderAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	order.ID = uint64(id)
	return nil
}

func (r *OrderRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*entity.PaymentOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM payment_orders WHERE gateway_order_id = ?`

	item := &entity.PaymentOrder{}
	if err := scanOrder(r.db.QueryRowContext(ctx, query, gatewayOrderID), item); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return item, nil
}

// Transition moves a pending order to status. Orders that already left pending are rejected.
func (r *OrderRepository) Transition(ctx context.Context, id uint64, status string, now time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE payment_orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		status, now, id, entity.OrderStatusPending,
	)
	if err != nil {
		return err
	}
	return requireAffected(result, ErrOrderNotPending)
}

func (r *OrderRepository) ListStalePending(ctx context.Context, cutoff time.Time) ([]*entity.PaymentOrder, error) {
	query := `SELECT ` + orderColumns + `
		FROM payment_orders
		WHERE status = ? AND updated_at < ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, entity.OrderStatusPending, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.PaymentOrder, 0)
	for rows.Next() {
		item := &entity.PaymentOrder{}
		if err := scanOrder(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanOrder(scanner rowScanner, item *entity.PaymentOrder) error {
	return scanner.Scan(
		&item.ID,
		&item.GatewayOrderID,
		&item.SubscriberID,
		&item.Email,
		&item.PackageID,
		&item.Amount,
		&item.Credit,
		&item.Currency,
		&item.Status,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
}
