package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type recordingSender struct {
	sent []Message
	err  error
}

func (s *recordingSender) Send(msg Message) error {
	s.sent = append(s.sent, msg)
	return s.err
}

func TestMembershipActivatedNotifiesUserAndAdmin(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, "admin@example.com")

	deliveries := n.MembershipActivated(context.Background(), Activation{
		SubscriberID:  "u-1",
		Email:         "user@example.com",
		PackageTitle:  "Gold",
		PaymentMethod: "paypal",
		Amount:        "$100",
		DueAt:         time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	})

	if len(deliveries) != 2 || len(sender.sent) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(deliveries))
	}
	if deliveries[0].Channel != ChannelUser || sender.sent[0].To != "user@example.com" {
		t.Fatalf("unexpected user delivery: %+v", deliveries[0])
	}
	if deliveries[1].Channel != ChannelAdmin || sender.sent[1].To != "admin@example.com" {
		t.Fatalf("unexpected admin delivery: %+v", deliveries[1])
	}
	if !strings.Contains(sender.sent[0].Subject, "Gold") {
		t.Fatalf("unexpected subject: %s", sender.sent[0].Subject)
	}
}

func TestMembershipActivatedSkipsMissingRecipients(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, "  ")

	deliveries := n.MembershipActivated(context.Background(), Activation{SubscriberID: "u-1"})
	if len(deliveries) != 0 {
		t.Fatalf("expected no deliveries, got %d", len(deliveries))
	}
}

func TestDeliveryCarriesSendError(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	n := NewNotifier(sender, "admin@example.com")

	deliveries := n.BankTransferSubmitted(context.Background(), BankTransferNotice{TransferID: 9, Reference: "REF-9"})
	if len(deliveries) != 1 || deliveries[0].Err == nil {
		t.Fatalf("expected failed delivery, got %+v", deliveries)
	}
	if !strings.Contains(sender.sent[0].Body, "REF-9") {
		t.Fatalf("expected reference in body: %s", sender.sent[0].Body)
	}
}

func TestLogSender(t *testing.T) {
	if err := NewLogSender().Send(Message{To: "a@example.com", Subject: "hi"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
