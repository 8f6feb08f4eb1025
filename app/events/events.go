package events

import (
	"context"
	"time"
)

type Name string

// The fixed set of events the membership core emits. The name doubles as the
// routing key on the broker.
const (
	MembershipGranted     Name = "membership.granted"
	MembershipSwitched    Name = "membership.switched"
	MembershipRenewed     Name = "membership.renewed"
	MembershipCancelled   Name = "membership.cancelled"
	MembershipExpired     Name = "membership.expired"
	ReceiptGenerated      Name = "receipt.generated"
	NotificationSent      Name = "notification.sent"
	BankTransferSubmitted Name = "bank_transfer.submitted"
)

type Event struct {
	Name          Name       `json:"name"`
	SubscriberID  string     `json:"subscriber_id"`
	PackageID     uint64     `json:"package_id"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	TransactionID string     `json:"transaction_id,omitempty"`
	Amount        string     `json:"amount,omitempty"`
	Recurring     bool       `json:"recurring"`
	DueAt         *time.Time `json:"due_at,omitempty"`
	Recipient     string     `json:"recipient,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
