package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-memberships/app/entity"
)

var ErrReceiptAlreadyExists = errors.New("receipt already exists")

type ReceiptRepository struct {
	db DBTX
}

func NewReceiptRepository(db DBTX) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

const receiptColumns = `
	id, subscriber_id, package_id, payment_method, transaction_id,
	amount, credit, currency, recurring, created_at
`

// Create appends a receipt. The (payment_method, transaction_id) pair is unique,
// so replays of the same gateway transaction fail with ErrReceiptAlreadyExists.
func (r *ReceiptRepository) Create(ctx context.Context, receipt *entity.Receipt) error {
	query := `
		INSERT INTO receipts (
			subscriber_id, package_id, payment_method, transaction_id,
			amount, credit, currency, recurring, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		receipt.SubscriberID,
		receipt.PackageID,
		receipt.PaymentMethod,
		receipt.TransactionID,
		receipt.Amount,
		receipt.Credit,
		receipt.Currency,
		receipt.Recurring,
		receipt.CreatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrReceiptAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	receipt.ID = uint64(id)
	return nil
}

func (r *ReceiptRepository) FindByTransaction(ctx context.Context, paymentMethod, transactionID string) (*entity.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE payment_method = ? AND transaction_id = ?`

	item := &entity.Receipt{}
	if err := scanReceipt(r.db.QueryRowContext(ctx, query, paymentMethod, transactionID), item); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *ReceiptRepository) ListBySubscriber(ctx context.Context, subscriberID string) ([]*entity.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE subscriber_id = ? ORDER BY id DESC`

	rows, err := r.db.QueryContext(ctx, query, subscriberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Receipt, 0)
	for rows.Next() {
		item := &entity.Receipt{}
		if err := scanReceipt(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanReceipt(scanner rowScanner, item *entity.Receipt) error {
	return scanner.Scan(
		&item.ID,
		&item.SubscriberID,
		&item.PackageID,
		&item.PaymentMethod,
		&item.TransactionID,
		&item.Amount,
		&item.Credit,
		&item.Currency,
		&item.Recurring,
		&item.CreatedAt,
	)
}
