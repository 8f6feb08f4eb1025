package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusCaptured  = "captured"
	OrderStatusAbandoned = "abandoned"
)

// PaymentOrder tracks a one-time gateway order from creation to capture.
type PaymentOrder struct {
	ID             uint64
	GatewayOrderID string
	SubscriberID   string
	Email          string
	PackageID      uint64
	Amount         decimal.Decimal
	Credit         decimal.Decimal
	Currency       string
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
