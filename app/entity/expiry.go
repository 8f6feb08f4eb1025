package entity

import "time"

type ScheduledExpiry struct {
	SubscriberID string
	PackageID    uint64
	FireAt       time.Time
	CreatedAt    time.Time
}
