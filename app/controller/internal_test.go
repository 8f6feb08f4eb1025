package controller

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-memberships/app/dto"
	"github.com/vibast-solutions/ms-go-memberships/app/entity"
	"github.com/vibast-solutions/ms-go-memberships/app/identity"
)

func (f *controllerFixture) seedMembership(m *entity.Membership) {
	f.ledgerRepo.memberships[m.SubscriberID] = m
}

func TestConfirmBankTransferGrantsMembership(t *testing.T) {
	f := newControllerFixture()
	payload := `{"package_id":1,"nonce":"` + f.nonce(identity.ActionBankTransfer) + `","reference":"INV-7"}`
	ctx, _ := newJSONContext(http.MethodPost, "/checkout/bank-transfer", payload)
	if err := f.memberships.SubmitBankTransfer(asSubscriber(ctx)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, rec := newJSONContext(http.MethodPost, "/internal/bank-transfers/1/confirm", "")
	ctx.SetParamNames("id")
	ctx.SetParamValues("1")
	if err := f.internal.ConfirmBankTransfer(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body dto.ConfirmBankTransferResponse
	decode(t, rec, &body)
	if rec.Code != http.StatusOK || body.Transition != "subscribe" {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
	if body.Membership == nil || body.Membership.PaymentMethod != entity.PaymentMethodBankTransfer {
		t.Fatalf("unexpected membership: %+v", body.Membership)
	}
}

func TestRejectBankTransferTwice(t *testing.T) {
	f := newControllerFixture()
	f.transfers.items = []*entity.BankTransfer{{ID: 1, SubscriberID: testSubscriber, PackageID: 1, Status: entity.BankTransferStatusPending}}

	for i, want := range []int{http.StatusOK, http.StatusConflict} {
		ctx, rec := newJSONContext(http.MethodPost, "/internal/bank-transfers/1/reject", "")
		ctx.SetParamNames("id")
		ctx.SetParamValues("1")
		if err := f.internal.RejectBankTransfer(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != want {
			t.Fatalf("call %d: expected %d, got %d", i, want, rec.Code)
		}
	}
}

func TestListBankTransfersFiltersStatus(t *testing.T) {
	f := newControllerFixture()
	f.transfers.items = []*entity.BankTransfer{
		{ID: 1, Status: entity.BankTransferStatusPending},
		{ID: 2, Status: entity.BankTransferStatusRejected},
	}

	ctx, rec := newJSONContext(http.MethodGet, "/internal/bank-transfers?status=pending", "")
	if err := f.internal.ListBankTransfers(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body dto.ListBankTransfersResponse
	decode(t, rec, &body)
	if len(body.BankTransfers) != 1 || body.BankTransfers[0].ID != 1 {
		t.Fatalf("unexpected transfers: %+v", body.BankTransfers)
	}

	ctx, rec = newJSONContext(http.MethodGet, "/internal/bank-transfers?status=lost", "")
	if err := f.internal.ListBankTransfers(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestConsumeQuotaRoute(t *testing.T) {
	f := newControllerFixture()
	f.seedMembership(&entity.Membership{SubscriberID: testSubscriber, PackageID: 1, PropertyQuota: 1, DueAt: time.Now().Add(24 * time.Hour)})

	for i, want := range []int{http.StatusOK, http.StatusBadRequest} {
		ctx, rec := newJSONContext(http.MethodPost, "/internal/memberships/u1/quota", `{"properties":1}`)
		ctx.SetParamNames("subscriber_id")
		ctx.SetParamValues(testSubscriber)
		if err := f.internal.ConsumeQuota(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != want {
			t.Fatalf("call %d: expected %d, got %d (%s)", i, want, rec.Code, rec.Body.String())
		}
	}
	if got := f.ledgerRepo.memberships[testSubscriber].PropertyUsage; got != 1 {
		t.Fatalf("expected usage 1, got %d", got)
	}
}

func TestInternalCancelMembership(t *testing.T) {
	f := newControllerFixture()
	f.seedMembership(&entity.Membership{SubscriberID: testSubscriber, PackageID: 1, DueAt: time.Now().Add(24 * time.Hour)})

	ctx, rec := newJSONContext(http.MethodPost, "/internal/memberships/u1/cancel", `{"reason":"fraud"}`)
	ctx.SetParamNames("subscriber_id")
	ctx.SetParamValues(testSubscriber)
	if err := f.internal.CancelMembership(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if _, ok := f.ledgerRepo.memberships[testSubscriber]; ok {
		t.Fatal("expected membership to be removed")
	}
}

func TestSweepAndMaintenanceRoutes(t *testing.T) {
	f := newControllerFixture()

	ctx, rec := newJSONContext(http.MethodPost, "/internal/expiries/sweep", "")
	if err := f.internal.SweepExpiries(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sweep dto.SweepResponse
	decode(t, rec, &sweep)
	if rec.Code != http.StatusOK || sweep.Expired != 0 {
		t.Fatalf("unexpected sweep: %d %+v", rec.Code, sweep)
	}

	ctx, rec = newJSONContext(http.MethodPost, "/internal/orders/abandon", "")
	if err := f.internal.AbandonPendingOrders(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	ctx, rec = newJSONContext(http.MethodPost, "/internal/catalog/refresh", "")
	if err := f.internal.RefreshCatalog(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestPayPalIPNAlwaysAcknowledges(t *testing.T) {
	f := newControllerFixture()
	f.seedMembership(&entity.Membership{SubscriberID: testSubscriber, PackageID: 1, DueAt: time.Now().Add(24 * time.Hour)})

	for _, target := range []string{"/webhooks/paypal/ipn", "/webhooks/paypal/ipn?ims_paypal=wrong", "/webhooks/paypal/ipn?ims_paypal=" + testIPNToken} {
		ctx, rec := newJSONContext(http.MethodPost, target, "txn_type=recurring_payment_profile_cancel&recurring_payment_id=I-1")
		ctx.Request().Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if err := f.webhooks.PayPalIPN(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
			t.Fatalf("%s: expected empty 200, got %d %q", target, rec.Code, rec.Body.String())
		}
	}
	if _, ok := f.ledgerRepo.memberships[testSubscriber]; !ok {
		t.Fatal("unverified notifications must not change the ledger")
	}
}

func TestGetMembershipInternal(t *testing.T) {
	f := newControllerFixture()
	f.seedMembership(&entity.Membership{SubscriberID: testSubscriber, PackageID: 1, PropertyQuota: 5, DueAt: time.Now().Add(72 * time.Hour)})

	ctx, rec := newJSONContext(http.MethodGet, "/internal/memberships/u1", "")
	ctx.SetParamNames("subscriber_id")
	ctx.SetParamValues(testSubscriber)
	if err := f.internal.GetMembership(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"properties_left":5`) {
		t.Fatalf("unexpected response: %d %s", rec.Code, rec.Body.String())
	}
}
