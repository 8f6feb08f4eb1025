package entity

import (
	"math"
	"time"
)

const (
	PaymentMethodPayPal       = "paypal"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodFree         = "free"
)

// UnlimitedQuota marks a package quota with no upper bound.
const UnlimitedQuota = -1

type Membership struct {
	SubscriberID          string
	Email                 string
	PackageID             uint64
	PropertyQuota         int
	FeaturedQuota         int
	PropertyUsage         int
	FeaturedUsage         int
	DueAt                 time.Time
	PaymentMethod         string
	Recurring             bool
	GatewaySubscriptionID *string
	Version               uint64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// RemainingDays returns the whole days left before DueAt, negative once lapsed.
func (m *Membership) RemainingDays(now time.Time) int {
	if m == nil {
		return 0
	}
	return int(math.Floor(m.DueAt.Sub(now).Seconds() / 86400))
}

func (m *Membership) PropertiesLeft() int {
	if m.PropertyQuota == UnlimitedQuota {
		return UnlimitedQuota
	}
	left := m.PropertyQuota - m.PropertyUsage
	if left < 0 {
		return 0
	}
	return left
}

func (m *Membership) FeaturedLeft() int {
	if m.FeaturedQuota == UnlimitedQuota {
		return UnlimitedQuota
	}
	left := m.FeaturedQuota - m.FeaturedUsage
	if left < 0 {
		return 0
	}
	return left
}
