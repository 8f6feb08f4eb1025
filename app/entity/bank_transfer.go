package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	BankTransferStatusPending   = "pending"
	BankTransferStatusConfirmed = "confirmed"
	BankTransferStatusRejected  = "rejected"
)

type BankTransfer struct {
	ID           uint64
	SubscriberID string
	Email        string
	PackageID    uint64
	Reference    string
	Amount       decimal.Decimal
	Credit       decimal.Decimal
	Currency     string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
