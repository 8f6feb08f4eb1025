package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DurationUnitDay   = "day"
	DurationUnitWeek  = "week"
	DurationUnitMonth = "month"
	DurationUnitYear  = "year"
)

type Package struct {
	ID            uint64
	Title         string
	Price         decimal.Decimal
	Duration      int
	DurationUnit  string
	PropertyQuota int
	FeaturedQuota int
	Popular       bool
	Published     bool
	MenuOrder     int
	PayPalPlanID  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DurationDays converts the package term to days with the fixed
// multipliers used for proration and expiry.
func (p *Package) DurationDays() int {
	if p == nil || p.Duration <= 0 {
		return 0
	}
	return p.Duration * UnitDays(p.DurationUnit)
}

func (p *Package) Term() time.Duration {
	return time.Duration(p.DurationDays()) * 24 * time.Hour
}

func (p *Package) IsRecurringCapable() bool {
	return p != nil && p.PayPalPlanID != nil && strings.TrimSpace(*p.PayPalPlanID) != ""
}

// UnitDays accepts singular and plural unit names. Unknown units count as days.
func UnitDays(unit string) int {
	switch NormalizeDurationUnit(unit) {
	case DurationUnitWeek:
		return 7
	case DurationUnitMonth:
		return 30
	case DurationUnitYear:
		return 365
	default:
		return 1
	}
}

func NormalizeDurationUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	u = strings.TrimSuffix(u, "s")
	switch u {
	case DurationUnitWeek, DurationUnitMonth, DurationUnitYear:
		return u
	default:
		return DurationUnitDay
	}
}
