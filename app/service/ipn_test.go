package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-memberships/app/entity"
	"github.com/vibast-solutions/ms-go-memberships/config"
)

type recordingIPNMetrics struct {
	outcomes []string
}

func (m *recordingIPNMetrics) IPN(outcome string) { m.outcomes = append(m.outcomes, outcome) }

type ipnFixture struct {
	*ledgerFixture
	service *NotificationService
	gateway *mockGateway
	metrics *recordingIPNMetrics
}

func newIPNFixture() *ipnFixture {
	lf := newLedgerFixture(testMembershipConfig())
	lf.store.put(&entity.Membership{
		SubscriberID:          "u1",
		Email:                 "u1@example.com",
		PackageID:             3,
		DueAt:                 testNow.Add(24 * time.Hour),
		Recurring:             true,
		GatewaySubscriptionID: strPtr("I-1"),
	})
	gateway := &mockGateway{}
	metrics := &recordingIPNMetrics{}
	svc := NewNotificationService(lf.ledger, gateway, metrics, config.PayPalConfig{IPNToken: "secret-token"})
	return &ipnFixture{ledgerFixture: lf, service: svc, gateway: gateway, metrics: metrics}
}

const renewalIPN = "txn_type=recurring_payment&payment_status=Completed&recurring_payment_id=I-1&txn_id=TXN-1&mc_gross=100.00"

func TestIPNRecurringPaymentRenews(t *testing.T) {
	fx := newIPNFixture()

	outcome, err := fx.service.HandleIPN(context.Background(), "secret-token", []byte(renewalIPN))
	if err != nil || outcome != IPNRenewed {
		t.Fatalf("expected renewal, got %s %v", outcome, err)
	}
	m := fx.store.memberships["u1"]
	if !m.DueAt.Equal(testNow.Add(31 * 24 * time.Hour)) {
		t.Fatalf("expected due extended by 30 days, got %v", m.DueAt)
	}
	if len(fx.store.receipts) != 1 || !fx.store.receipts[0].Recurring || fx.store.receipts[0].TransactionID != "TXN-1" {
		t.Fatalf("unexpected receipts: %+v", fx.store.receipts)
	}

	outcome, err = fx.service.HandleIPN(context.Background(), "secret-token", []byte(renewalIPN))
	if err != nil || outcome != IPNDuplicate {
		t.Fatalf("expected duplicate, got %s %v", outcome, err)
	}
	if len(fx.store.receipts) != 1 {
		t.Fatal("duplicate IPN must not add a receipt")
	}
}

func TestIPNRenewalArrivingAfterDueSurvivesSweep(t *testing.T) {
	fx := newIPNFixture()
	delete(fx.store.memberships, "u1")
	delete(fx.store.expiries, "u1")

	granted, err := fx.ledger.Grant(context.Background(), GrantRequest{
		SubscriberID:          "u1",
		Email:                 "u1@example.com",
		PackageID:             3,
		PaymentMethod:         entity.PaymentMethodPayPal,
		TransactionID:         "I-1",
		Amount:                decimal.NewFromInt(100),
		Recurring:             true,
		GatewaySubscriptionID: "I-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	due := granted.Membership.DueAt

	sweeper := NewExpiryService(fx.store, fx.ledger, nil, 50)
	sweeper.now = func() time.Time { return due.Add(24 * time.Hour) }
	swept, err := sweeper.SweepExpiries(context.Background())
	if err != nil || swept.Expired != 0 {
		t.Fatalf("recurring membership must survive the sweep within grace, got %+v %v", swept, err)
	}

	outcome, err := fx.service.HandleIPN(context.Background(), "secret-token", []byte(renewalIPN))
	if err != nil || outcome != IPNRenewed {
		t.Fatalf("expected late renewal to apply, got %s %v", outcome, err)
	}
	renewedDue := due.Add(30 * 24 * time.Hour)
	if m := fx.store.memberships["u1"]; m == nil || !m.DueAt.Equal(renewedDue) {
		t.Fatalf("expected due %v, got %+v", renewedDue, m)
	}

	sweeper.now = func() time.Time { return renewedDue.Add(73 * time.Hour) }
	swept, err = sweeper.SweepExpiries(context.Background())
	if err != nil || swept.Expired != 1 {
		t.Fatalf("expected expiry once grace passed, got %+v %v", swept, err)
	}
	if _, ok := fx.store.memberships["u1"]; ok {
		t.Fatal("membership must be removed after grace")
	}
}

func TestIPNUnverifiedCausesNoMutation(t *testing.T) {
	fx := newIPNFixture()
	fx.gateway.verifyFn = func(context.Context, []byte) (bool, error) { return false, nil }
	before := *fx.store.memberships["u1"]

	outcome, err := fx.service.HandleIPN(context.Background(), "secret-token", []byte(renewalIPN))
	if !errors.Is(err, ErrNotificationUnverified) || outcome != IPNUnverified {
		t.Fatalf("expected unverified, got %s %v", outcome, err)
	}
	if fx.store.commits != 0 || len(fx.store.receipts) != 0 {
		t.Fatal("unverified notification must not mutate state")
	}
	if after := *fx.store.memberships["u1"]; !after.DueAt.Equal(before.DueAt) || after.Version != before.Version {
		t.Fatalf("membership changed: %+v -> %+v", before, after)
	}
}

func TestIPNRejectsWrongToken(t *testing.T) {
	fx := newIPNFixture()
	verifyCalled := false
	fx.gateway.verifyFn = func(context.Context, []byte) (bool, error) {
		verifyCalled = true
		return true, nil
	}

	for _, token := range []string{"", "secret", "secret-token-x"} {
		outcome, err := fx.service.HandleIPN(context.Background(), token, []byte(renewalIPN))
		if !errors.Is(err, ErrNotificationUnverified) || outcome != IPNRejected {
			t.Fatalf("token %q: expected rejection, got %s %v", token, outcome, err)
		}
	}
	if verifyCalled || fx.store.commits != 0 {
		t.Fatal("rejected notifications must not reach the gateway or the ledger")
	}
}

func TestIPNRecurringPaymentFailedCancelsWithoutReceipt(t *testing.T) {
	fx := newIPNFixture()

	outcome, err := fx.service.HandleIPN(context.Background(), "secret-token", []byte("txn_type=recurring_payment_failed&recurring_payment_id=I-1"))
	if err != nil || outcome != IPNCancelled {
		t.Fatalf("expected cancel, got %s %v", outcome, err)
	}
	if _, ok := fx.store.memberships["u1"]; ok {
		t.Fatal("membership must be cancelled")
	}
	if len(fx.store.receipts) != 0 {
		t.Fatal("failed payment must not write a receipt")
	}
	if fx.metrics.outcomes[0] != IPNCancelled {
		t.Fatalf("unexpected metrics: %v", fx.metrics.outcomes)
	}
}

func TestIPNProfileCancelForUnknownProfileIsIgnored(t *testing.T) {
	fx := newIPNFixture()

	outcome, err := fx.service.HandleIPN(context.Background(), "secret-token", []byte("txn_type=recurring_payment_profile_cancel&recurring_payment_id=I-OTHER"))
	if err != nil || outcome != IPNIgnored {
		t.Fatalf("expected ignored, got %s %v", outcome, err)
	}
	if _, ok := fx.store.memberships["u1"]; !ok {
		t.Fatal("unrelated membership must survive")
	}
}

func TestIPNIgnoredMessages(t *testing.T) {
	fx := newIPNFixture()
	bodies := []string{
		"txn_type=recurring_payment_profile_created&recurring_payment_id=I-1",
		"txn_type=recurring_payment&payment_status=Pending&recurring_payment_id=I-1&txn_id=TXN-2",
		"txn_type=web_accept&payment_status=Completed",
	}

	for _, body := range bodies {
		outcome, err := fx.service.HandleIPN(context.Background(), "secret-token", []byte(body))
		if err != nil || outcome != IPNIgnored {
			t.Fatalf("%s: expected ignored, got %s %v", body, outcome, err)
		}
	}
	if fx.store.commits != 0 {
		t.Fatal("ignored notifications must not write")
	}
}

func TestIPNVerificationErrorIsGatewayError(t *testing.T) {
	fx := newIPNFixture()
	fx.gateway.verifyFn = func(context.Context, []byte) (bool, error) { return false, errors.New("timeout") }

	_, err := fx.service.HandleIPN(context.Background(), "secret-token", []byte(renewalIPN))
	if !errors.Is(err, ErrGateway) {
		t.Fatalf("expected ErrGateway, got %v", err)
	}
	if fx.store.commits != 0 {
		t.Fatal("no mutation on verification error")
	}
}
