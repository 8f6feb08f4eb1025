package entity

import (
	"testing"
	"time"
)

func TestUnitDays(t *testing.T) {
	cases := map[string]int{
		"day":    1,
		"days":   1,
		"Week":   7,
		"weeks":  7,
		"month":  30,
		"months": 30,
		"year":   365,
		"YEARS":  365,
		"":       1,
		"decade": 1,
	}
	for unit, want := range cases {
		if got := UnitDays(unit); got != want {
			t.Fatalf("UnitDays(%q) = %d, want %d", unit, got, want)
		}
	}
}

func TestPackageDurationDays(t *testing.T) {
	pkg := &Package{Duration: 3, DurationUnit: "months"}
	if got := pkg.DurationDays(); got != 90 {
		t.Fatalf("expected 90 days, got %d", got)
	}
	if got := pkg.Term(); got != 90*24*time.Hour {
		t.Fatalf("unexpected term: %v", got)
	}

	pkg.Duration = 0
	if got := pkg.DurationDays(); got != 0 {
		t.Fatalf("expected zero days, got %d", got)
	}
}

func TestMembershipRemainingDays(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := &Membership{DueAt: now.Add(10*24*time.Hour + 5*time.Hour)}
	if got := m.RemainingDays(now); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}

	m.DueAt = now.Add(-time.Hour)
	if got := m.RemainingDays(now); got >= 0 {
		t.Fatalf("expected negative remaining days, got %d", got)
	}
}

func TestMembershipQuotaLeft(t *testing.T) {
	m := &Membership{PropertyQuota: 5, PropertyUsage: 7, FeaturedQuota: UnlimitedQuota}
	if got := m.PropertiesLeft(); got != 0 {
		t.Fatalf("expected 0 properties left, got %d", got)
	}
	if got := m.FeaturedLeft(); got != UnlimitedQuota {
		t.Fatalf("expected unlimited featured, got %d", got)
	}
}
