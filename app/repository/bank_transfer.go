package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-memberships/app/entity"
)

var ErrBankTransferNotPending = errors.New("bank transfer is not pending")

type BankTransferRepository struct {
	db DBTX
}

func NewBankTransferRepository(db DBTX) *BankTransferRepository {
	return &BankTransferRepository{db: db}
}

const bankTransferColumns = `
	id, subscriber_id, email, package_id, reference,
	amount, credit, currency, status, created_at, updated_at
`

func (r *BankTransferRepository) Create(ctx context.Context, transfer *entity.BankTransfer) error {
	query := `
		INSERT INTO bank_transfers (
			subscriber_id, email, package_id, reference,
			amount, credit, currency, status, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		transfer.SubscriberID,
		transfer.Email,
		transfer.PackageID,
		transfer.Reference,
		transfer.Amount,
		transfer.Credit,
		transfer.Currency,
		transfer.Status,
		transfer.CreatedAt,
		transfer.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	transfer.ID = uint64(id)
	return nil
}

func (r *BankTransferRepository) FindByID(ctx context.Context, id uint64) (*entity.BankTransfer, error) {
	query := `SELECT ` + bankTransferColumns + ` FROM bank_transfers WHERE id = ?`

	item := &entity.BankTransfer{}
	if err := scanBankTransfer(r.db.QueryRowContext(ctx, query, id), item); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *BankTransferRepository) List(ctx context.Context, status string) ([]*entity.BankTransfer, error) {
	query := `SELECT ` + bankTransferColumns + ` FROM bank_transfers`
	args := make([]interface{}, 0, 1)
	if strings.TrimSpace(status) != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.BankTransfer, 0)
	for rows.Next() {
		item := &entity.BankTransfer{}
		if err := scanBankTransfer(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Transition moves a pending transfer to status; it fails when an admin already decided it.
func (r *BankTransferRepository) Transition(ctx context.Context, id uint64, status string, now time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE bank_transfers SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		status, now, id, entity.BankTransferStatusPending,
	)
	if err != nil {
		return err
	}
	return requireAffected(result, ErrBankTransferNotPending)
}

func scanBankTransfer(scanner rowScanner, item *entity.BankTransfer) error {
	return scanner.Scan(
		&item.ID,
		&item.SubscriberID,
		&item.Email,
		&item.PackageID,
		&item.Reference,
		&item.Amount,
		&item.Credit,
		&item.Currency,
		&item.Status,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
}
