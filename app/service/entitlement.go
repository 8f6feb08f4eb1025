package service

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-memberships/app/entity"
	"github.com/vibast-solutions/ms-go-memberships/config"
)

type Quote struct {
	Package            *entity.Package
	Price              decimal.Decimal
	Credit             decimal.Decimal
	Total              decimal.Decimal
	Currency           string
	Formatted          string
	RecurringAvailable bool
}

type EntitlementCalculator struct {
	cfg config.MembershipConfig
}

func NewEntitlementCalculator(cfg config.MembershipConfig) *EntitlementCalculator {
	return &EntitlementCalculator{cfg: cfg}
}

// Credit is the unused value of the current term carried into candidate.
// It never exceeds the current package price or the candidate price.
func (c *EntitlementCalculator) Credit(current *entity.Membership, currentPkg, candidate *entity.Package, now time.Time) decimal.Decimal {
	if !c.cfg.AdjustmentEnabled || current == nil || currentPkg == nil {
		return decimal.Zero
	}
	if !currentPkg.Price.IsPositive() {
		return decimal.Zero
	}

	days := currentPkg.DurationDays()
	if days <= 0 {
		return decimal.Zero
	}
	remaining := current.RemainingDays(now)
	if remaining <= 0 {
		return decimal.Zero
	}

	credit := currentPkg.Price.Mul(decimal.NewFromInt(int64(remaining))).
		Div(decimal.NewFromInt(int64(days))).
		Floor()
	credit = decimal.Min(credit, currentPkg.Price)
	if candidate != nil {
		credit = decimal.Min(credit, candidate.Price)
	}

	if c.cfg.AdjustmentOffset.IsPositive() {
		credit = credit.Sub(c.cfg.AdjustmentOffset)
		if c.cfg.ClampAdjustmentAtZero && credit.IsNegative() {
			credit = decimal.Zero
		}
	}
	return credit
}

func (c *EntitlementCalculator) Quote(current *entity.Membership, currentPkg, candidate *entity.Package, now time.Time) *Quote {
	price := candidate.Price
	credit := c.Credit(current, currentPkg, candidate, now)

	total := price.Sub(credit)
	if price.LessThanOrEqual(credit) {
		total = decimal.Zero
		credit = price
	}

	return &Quote{
		Package:            candidate,
		Price:              price,
		Credit:             credit,
		Total:              total,
		Currency:           c.cfg.CurrencyCode,
		Formatted:          c.FormatPrice(total),
		RecurringAvailable: c.cfg.RecurringEnabled && credit.IsZero() && candidate.IsRecurringCapable(),
	}
}

// FormatPrice renders amount with the configured currency symbol placement.
func (c *EntitlementCalculator) FormatPrice(amount decimal.Decimal) string {
	var value string
	switch {
	case amount.IsZero():
		value = "0"
	case amount.Equal(amount.Truncate(0)):
		value = amount.StringFixed(0)
	default:
		value = amount.StringFixed(2)
	}

	if c.cfg.CurrencyPosition == config.CurrencyPositionAfter {
		return value + c.cfg.CurrencySymbol
	}
	return c.cfg.CurrencySymbol + value
}
