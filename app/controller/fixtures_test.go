package controller

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-memberships/app/entity"
	"github.com/vibast-solutions/ms-go-memberships/app/events"
	"github.com/vibast-solutions/ms-go-memberships/app/identity"
	"github.com/vibast-solutions/ms-go-memberships/app/lock"
	"github.com/vibast-solutions/ms-go-memberships/app/notify"
	"github.com/vibast-solutions/ms-go-memberships/app/payment"
	"github.com/vibast-solutions/ms-go-memberships/app/repository"
	"github.com/vibast-solutions/ms-go-memberships/app/service"
	"github.com/vibast-solutions/ms-go-memberships/config"
)

const (
	testJWTSecret   = "controller-test-secret"
	testIPNToken    = "ipn-secret"
	testIPNParam    = "ims_paypal"
	testSubscriber  = "u1"
	testSubscriberE = "u1@example.com"
)

type controllerPackageRepo struct {
	items map[uint64]*entity.Package
}

func (r *controllerPackageRepo) FindByID(_ context.Context, id uint64) (*entity.Package, error) {
	return r.items[id], nil
}

func (r *controllerPackageRepo) FindAnyByID(_ context.Context, id uint64) (*entity.Package, error) {
	return r.items[id], nil
}

func (r *controllerPackageRepo) ListPublished(context.Context) ([]*entity.Package, error) {
	result := make([]*entity.Package, 0, len(r.items))
	for id := uint64(1); id <= uint64(len(r.items)); id++ {
		if item, ok := r.items[id]; ok {
			result = append(result, item)
		}
	}
	return result, nil
}

// controllerLedgerRepo keeps memberships and receipts in memory and applies
// transitions without conflict detection.
type controllerLedgerRepo struct {
	mu          sync.Mutex
	memberships map[string]*entity.Membership
	receipts    []*entity.Receipt
}

func (r *controllerLedgerRepo) FindBySubscriber(_ context.Context, subscriberID string) (*entity.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.memberships[subscriberID]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, nil
}

func (r *controllerLedgerRepo) FindByGatewaySubscription(_ context.Context, id string) (*entity.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.memberships {
		if m.GatewaySubscriptionID != nil && *m.GatewaySubscriptionID == id {
			copied := *m
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *controllerLedgerRepo) Update(_ context.Context, m *entity.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *m
	r.memberships[m.SubscriberID] = &copied
	return nil
}

func (r *controllerLedgerRepo) FindByTransaction(_ context.Context, paymentMethod, transactionID string) (*entity.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, receipt := range r.receipts {
		if receipt.PaymentMethod == paymentMethod && receipt.TransactionID == transactionID {
			return receipt, nil
		}
	}
	return nil, nil
}

func (r *controllerLedgerRepo) ListBySubscriber(_ context.Context, subscriberID string) ([]*entity.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*entity.Receipt
	for _, receipt := range r.receipts {
		if receipt.SubscriberID == subscriberID {
			result = append(result, receipt)
		}
	}
	return result, nil
}

func (r *controllerLedgerRepo) Commit(_ context.Context, t *repository.Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Receipt != nil {
		t.Receipt.ID = uint64(len(r.receipts) + 1)
		r.receipts = append(r.receipts, t.Receipt)
	}
	switch t.MembershipWrite {
	case repository.MembershipCreate, repository.MembershipUpdate:
		copied := *t.Membership
		r.memberships[t.Membership.SubscriberID] = &copied
	case repository.MembershipDelete:
		delete(r.memberships, t.Membership.SubscriberID)
	}
	return nil
}

type controllerTransferRepo struct {
	mu    sync.Mutex
	items []*entity.BankTransfer
}

func (r *controllerTransferRepo) Create(_ context.Context, transfer *entity.BankTransfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	transfer.ID = uint64(len(r.items) + 1)
	r.items = append(r.items, transfer)
	return nil
}

func (r *controllerTransferRepo) FindByID(_ context.Context, id uint64) (*entity.BankTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.ID == id {
			copied := *item
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *controllerTransferRepo) List(_ context.Context, status string) ([]*entity.BankTransfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*entity.BankTransfer
	for _, item := range r.items {
		if status == "" || item.Status == status {
			result = append(result, item)
		}
	}
	return result, nil
}

func (r *controllerTransferRepo) Transition(_ context.Context, id uint64, status string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.ID == id {
			if item.Status != entity.BankTransferStatusPending {
				return repository.ErrBankTransferNotPending
			}
			item.Status = status
			item.UpdatedAt = now
		}
	}
	return nil
}

type controllerOrderRepo struct{}

func (controllerOrderRepo) Create(context.Context, *entity.PaymentOrder) error { return nil }
func (controllerOrderRepo) FindByGatewayOrderID(context.Context, string) (*entity.PaymentOrder, error) {
	return nil, nil
}
func (controllerOrderRepo) Transition(context.Context, uint64, string, time.Time) error { return nil }
func (controllerOrderRepo) ListStalePending(context.Context, time.Time) ([]*entity.PaymentOrder, error) {
	return nil, nil
}

type controllerExpiryRepo struct{}

func (controllerExpiryRepo) ListDue(context.Context, time.Time, int) ([]*entity.ScheduledExpiry, error) {
	return nil, nil
}
func (controllerExpiryRepo) DeleteIfMatches(context.Context, *entity.ScheduledExpiry) (bool, error) {
	return true, nil
}

type controllerFixture struct {
	memberships *MembershipController
	internal    *InternalController
	webhooks    *WebhookController
	auth        *identity.Authenticator
	nonces      *identity.Nonces
	ledgerRepo  *controllerLedgerRepo
	transfers   *controllerTransferRepo
}

func newControllerFixture() *controllerFixture {
	return newControllerFixtureWithGateway(payment.NewDisabledGateway())
}

func newControllerFixtureWithGateway(gateway payment.Gateway) *controllerFixture {
	cfg := config.MembershipConfig{
		Enabled:               true,
		AdjustmentEnabled:     true,
		ClampAdjustmentAtZero: true,
		CurrencyCode:          "USD",
		CurrencySymbol:        "$",
		CurrencyPosition:      config.CurrencyPositionBefore,
		MembershipPageURL:     "/membership",
		CatalogCacheTTL:       time.Minute,
		PendingOrderTimeout:   30 * time.Minute,
	}
	packages := &controllerPackageRepo{items: map[uint64]*entity.Package{
		1: {ID: 1, Title: "Basic", Price: decimal.NewFromInt(90), Duration: 30, DurationUnit: "days", PropertyQuota: 5, FeaturedQuota: 1, Published: true},
		2: {ID: 2, Title: "Starter", Price: decimal.Zero, Duration: 1, DurationUnit: "week", PropertyQuota: 1, Published: true},
	}}
	ledgerRepo := &controllerLedgerRepo{memberships: map[string]*entity.Membership{}}
	transfers := &controllerTransferRepo{}
	notifier := notify.NewNotifier(notify.NewLogSender(), "admin@example.com")

	calculator := service.NewEntitlementCalculator(cfg)
	catalog := service.NewCatalogService(packages, cfg, nil)
	ledger := service.NewLedgerService(
		catalog, ledgerRepo, ledgerRepo, ledgerRepo, lock.NewLocalLocker(), calculator,
		events.NewNoopPublisher(), notifier, nil, cfg,
	)
	nonces := identity.NewNonces(testJWTSecret, time.Hour)
	checkout := service.NewCheckoutService(catalog, ledger, controllerOrderRepo{}, gateway, nonces, calculator, cfg)
	bankTransfers := service.NewBankTransferService(
		transfers, checkout, ledger, nonces, notifier, events.NewNoopPublisher(), nil, calculator,
		config.WireConfig{Enabled: true}, cfg,
	)
	expiries := service.NewExpiryService(controllerExpiryRepo{}, ledger, nil, 10)
	notifications := service.NewNotificationService(ledger, gateway, nil, config.PayPalConfig{IPNToken: testIPNToken})

	return &controllerFixture{
		memberships: NewMembershipController(catalog, ledger, checkout, bankTransfers, calculator),
		internal:    NewInternalController(catalog, ledger, checkout, bankTransfers, expiries),
		webhooks:    NewWebhookController(notifications, testIPNParam),
		auth:        identity.NewAuthenticator(testJWTSecret),
		nonces:      nonces,
		ledgerRepo:  ledgerRepo,
		transfers:   transfers,
	}
}

func (f *controllerFixture) nonce(action string) string {
	nonce, _, err := f.nonces.Issue(testSubscriber, action)
	if err != nil {
		panic(err)
	}
	return nonce
}
