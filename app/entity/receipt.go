package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Receipt struct {
	ID            uint64
	SubscriberID  string
	PackageID     uint64
	PaymentMethod string
	TransactionID string
	Amount        decimal.Decimal
	Credit        decimal.Decimal
	Currency      string
	Recurring     bool
	CreatedAt     time.Time
}
