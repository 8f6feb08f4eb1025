package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-memberships/app/entity"
	"github.com/vibast-solutions/ms-go-memberships/app/events"
	"github.com/vibast-solutions/ms-go-memberships/app/lock"
	"github.com/vibast-solutions/ms-go-memberships/app/notify"
	"github.com/vibast-solutions/ms-go-memberships/app/payment"
	"github.com/vibast-solutions/ms-go-memberships/app/repository"
	"github.com/vibast-solutions/ms-go-memberships/config"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func strPtr(v string) *string { return &v }

// memoryStore applies ledger transitions in memory with the same conflict
// rules as the MySQL store.
type memoryStore struct {
	mu          sync.Mutex
	memberships map[string]*entity.Membership
	receipts    []*entity.Receipt
	expiries    map[string]*entity.ScheduledExpiry
	captured    []uint64
	confirmed   []uint64
	commits     int
	commitErr   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		memberships: map[string]*entity.Membership{},
		expiries:    map[string]*entity.ScheduledExpiry{},
	}
}

func (s *memoryStore) FindBySubscriber(_ context.Context, subscriberID string) (*entity.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.memberships[subscriberID]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, nil
}

func (s *memoryStore) FindByGatewaySubscription(_ context.Context, gatewaySubscriptionID string) (*entity.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.memberships {
		if m.GatewaySubscriptionID != nil && *m.GatewaySubscriptionID == gatewaySubscriptionID {
			copied := *m
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) Update(_ context.Context, m *entity.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.memberships[m.SubscriberID]
	if !ok || stored.Version != m.Version {
		return repository.ErrMembershipVersionStale
	}
	m.Version++
	copied := *m
	s.memberships[m.SubscriberID] = &copied
	return nil
}

func (s *memoryStore) FindByTransaction(_ context.Context, paymentMethod, transactionID string) (*entity.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.receipts {
		if r.PaymentMethod == paymentMethod && r.TransactionID == transactionID {
			return r, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) ListBySubscriber(_ context.Context, subscriberID string) ([]*entity.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Receipt
	for _, r := range s.receipts {
		if r.SubscriberID == subscriberID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memoryStore) Commit(_ context.Context, t *repository.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return s.commitErr
	}

	if t.Receipt != nil {
		for _, r := range s.receipts {
			if r.PaymentMethod == t.Receipt.PaymentMethod && r.TransactionID == t.Receipt.TransactionID {
				return repository.ErrReceiptAlreadyExists
			}
		}
	}
	stored, exists := s.memberships[t.Membership.SubscriberID]
	switch t.MembershipWrite {
	case repository.MembershipCreate:
		if exists {
			return repository.ErrMembershipAlreadyExists
		}
	case repository.MembershipUpdate, repository.MembershipDelete:
		if !exists || stored.Version != t.Membership.Version {
			return repository.ErrMembershipVersionStale
		}
	}

	s.commits++
	if t.Receipt != nil {
		t.Receipt.ID = uint64(len(s.receipts) + 1)
		s.receipts = append(s.receipts, t.Receipt)
	}
	switch t.MembershipWrite {
	case repository.MembershipCreate:
		t.Membership.Version = 1
		copied := *t.Membership
		s.memberships[t.Membership.SubscriberID] = &copied
	case repository.MembershipUpdate:
		t.Membership.Version++
		copied := *t.Membership
		s.memberships[t.Membership.SubscriberID] = &copied
	case repository.MembershipDelete:
		delete(s.memberships, t.Membership.SubscriberID)
	}
	if t.Expiry != nil {
		copied := *t.Expiry
		s.expiries[t.Expiry.SubscriberID] = &copied
	} else if t.ClearExpiry {
		delete(s.expiries, t.Membership.SubscriberID)
	}
	if t.CaptureOrderID != 0 {
		s.captured = append(s.captured, t.CaptureOrderID)
	}
	if t.ConfirmTransfer != 0 {
		s.confirmed = append(s.confirmed, t.ConfirmTransfer)
	}
	return nil
}

func (s *memoryStore) ListDue(_ context.Context, now time.Time, limit int) ([]*entity.ScheduledExpiry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.ScheduledExpiry
	for _, e := range s.expiries {
		if !e.FireAt.After(now) && len(out) < limit {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memoryStore) DeleteIfMatches(_ context.Context, expiry *entity.ScheduledExpiry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.expiries[expiry.SubscriberID]
	if !ok || stored.PackageID != expiry.PackageID || !stored.FireAt.Equal(expiry.FireAt) {
		return false, nil
	}
	delete(s.expiries, expiry.SubscriberID)
	return true, nil
}

func (s *memoryStore) put(m *entity.Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Version == 0 {
		m.Version = 1
	}
	copied := *m
	s.memberships[m.SubscriberID] = &copied
	s.expiries[m.SubscriberID] = &entity.ScheduledExpiry{SubscriberID: m.SubscriberID, PackageID: m.PackageID, FireAt: m.DueAt}
}

type fakeCatalog struct {
	packages map[uint64]*entity.Package
}

func newFakeCatalog(pkgs ...*entity.Package) *fakeCatalog {
	c := &fakeCatalog{packages: map[uint64]*entity.Package{}}
	for _, p := range pkgs {
		c.packages[p.ID] = p
	}
	return c
}

func (c *fakeCatalog) GetPackage(_ context.Context, id uint64) (*entity.Package, error) {
	if p, ok := c.packages[id]; ok && p.Published {
		return p, nil
	}
	return nil, ErrPackageNotFound
}

func (c *fakeCatalog) HeldPackage(_ context.Context, id uint64) (*entity.Package, error) {
	if p, ok := c.packages[id]; ok {
		return p, nil
	}
	return nil, ErrPackageNotFound
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) names() []events.Name {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Name, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Name)
	}
	return out
}

func (p *recordingPublisher) count(name events.Name) int {
	n := 0
	for _, got := range p.names() {
		if got == name {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	activations []notify.Activation
	transfers   []notify.BankTransferNotice
}

func (n *recordingNotifier) MembershipActivated(_ context.Context, a notify.Activation) []notify.Delivery {
	n.activations = append(n.activations, a)
	return []notify.Delivery{
		{Channel: notify.ChannelUser, Recipient: a.Email},
		{Channel: notify.ChannelAdmin, Recipient: "admin@example.com"},
	}
}

func (n *recordingNotifier) BankTransferSubmitted(_ context.Context, notice notify.BankTransferNotice) []notify.Delivery {
	n.transfers = append(n.transfers, notice)
	return []notify.Delivery{{Channel: notify.ChannelAdmin, Recipient: "admin@example.com"}}
}

type mockGateway struct {
	createOrderFn        func(ctx context.Context, req payment.OrderRequest) (payment.Result, error)
	captureOrderFn       func(ctx context.Context, orderID string) (payment.Result, error)
	createSubscriptionFn func(ctx context.Context, req payment.SubscriptionRequest) (payment.Result, error)
	getSubscriptionFn    func(ctx context.Context, id string) (*payment.Subscription, error)
	cancelSubscriptionFn func(ctx context.Context, id, reason string) error
	verifyFn             func(ctx context.Context, payload []byte) (bool, error)
	captureCalls         int
	cancelCalls          []string
}

func (m *mockGateway) CreateOrder(ctx context.Context, req payment.OrderRequest) (payment.Result, error) {
	if m.createOrderFn != nil {
		return m.createOrderFn(ctx, req)
	}
	return payment.Result{Type: payment.ResultTypeRedirect, TransactionID: "ORDER-1", PaymentURL: "https://paypal/approve"}, nil
}

func (m *mockGateway) CaptureOrder(ctx context.Context, orderID string) (payment.Result, error) {
	m.captureCalls++
	if m.captureOrderFn != nil {
		return m.captureOrderFn(ctx, orderID)
	}
	return payment.Result{Type: payment.ResultTypeSuccess, TransactionID: "CAP-" + orderID, Status: "COMPLETED"}, nil
}

func (m *mockGateway) CreateSubscription(ctx context.Context, req payment.SubscriptionRequest) (payment.Result, error) {
	if m.createSubscriptionFn != nil {
		return m.createSubscriptionFn(ctx, req)
	}
	return payment.Result{Type: payment.ResultTypeRedirect, TransactionID: "I-1", PaymentURL: "https://paypal/sub"}, nil
}

func (m *mockGateway) GetSubscription(ctx context.Context, id string) (*payment.Subscription, error) {
	if m.getSubscriptionFn != nil {
		return m.getSubscriptionFn(ctx, id)
	}
	return &payment.Subscription{ID: id, Status: "ACTIVE"}, nil
}

func (m *mockGateway) CancelSubscription(ctx context.Context, id, reason string) error {
	m.cancelCalls = append(m.cancelCalls, id)
	if m.cancelSubscriptionFn != nil {
		return m.cancelSubscriptionFn(ctx, id, reason)
	}
	return nil
}

func (m *mockGateway) VerifyNotification(ctx context.Context, payload []byte) (bool, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, payload)
	}
	return true, nil
}

type mockNonces struct {
	valid bool
}

func (m *mockNonces) Issue(subscriberID, action string) (string, time.Time, error) {
	return subscriberID + ":" + action, testNow.Add(time.Hour), nil
}

func (m *mockNonces) Verify(_, _, nonce string) error {
	if !m.valid || nonce == "" {
		return ErrInvalidNonce
	}
	return nil
}

type mockOrderRepo struct {
	mu          sync.Mutex
	orders      map[string]*entity.PaymentOrder
	createErr   error
	transitions []string
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: map[string]*entity.PaymentOrder{}}
}

func (m *mockOrderRepo) Create(_ context.Context, order *entity.PaymentOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	order.ID = uint64(len(m.orders) + 1)
	m.orders[order.GatewayOrderID] = order
	return nil
}

func (m *mockOrderRepo) FindByGatewayOrderID(_ context.Context, gatewayOrderID string) (*entity.PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[gatewayOrderID], nil
}

func (m *mockOrderRepo) Transition(_ context.Context, id uint64, status string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			if o.Status != entity.OrderStatusPending {
				return repository.ErrOrderNotPending
			}
			o.Status = status
			m.transitions = append(m.transitions, status)
			return nil
		}
	}
	return repository.ErrOrderNotPending
}

func (m *mockOrderRepo) ListStalePending(_ context.Context, cutoff time.Time) ([]*entity.PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.PaymentOrder
	for _, o := range m.orders {
		if o.Status == entity.OrderStatusPending && o.CreatedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	return out, nil
}

func testMembershipConfig() config.MembershipConfig {
	return config.MembershipConfig{
		Enabled:               true,
		AdjustmentEnabled:     true,
		AdjustmentOffset:      decimal.Zero,
		ClampAdjustmentAtZero: true,
		RecurringEnabled:      true,
		CurrencyCode:          "USD",
		CurrencySymbol:        "$",
		CurrencyPosition:      config.CurrencyPositionBefore,
		MembershipPageURL:     "https://example.com/membership",
		PendingOrderTimeout:   30 * time.Minute,
		RecurringGrace:        72 * time.Hour,
	}
}

func basicPackage() *entity.Package {
	return &entity.Package{ID: 1, Title: "Basic", Price: decimal.NewFromInt(90), Duration: 30, DurationUnit: "days", PropertyQuota: 5, FeaturedQuota: 1, Published: true}
}

func premiumPackage() *entity.Package {
	return &entity.Package{ID: 2, Title: "Premium", Price: decimal.NewFromInt(150), Duration: 1, DurationUnit: "month", PropertyQuota: 20, FeaturedQuota: 5, Published: true, PayPalPlanID: strPtr("P-PREMIUM")}
}

func standardPackage() *entity.Package {
	return &entity.Package{ID: 3, Title: "Standard", Price: decimal.NewFromInt(100), Duration: 30, DurationUnit: "day", PropertyQuota: 10, FeaturedQuota: 2, Published: true, PayPalPlanID: strPtr("P-STANDARD")}
}

type ledgerFixture struct {
	ledger    *LedgerService
	store     *memoryStore
	catalog   *fakeCatalog
	publisher *recordingPublisher
	notifier  *recordingNotifier
}

func newLedgerFixture(cfg config.MembershipConfig) *ledgerFixture {
	store := newMemoryStore()
	catalog := newFakeCatalog(basicPackage(), premiumPackage(), standardPackage())
	publisher := &recordingPublisher{}
	notifier := &recordingNotifier{}
	ledger := NewLedgerService(catalog, store, store, store, lock.NewLocalLocker(), NewEntitlementCalculator(cfg), publisher, notifier, nil, cfg)
	ledger.now = func() time.Time { return testNow }
	return &ledgerFixture{ledger: ledger, store: store, catalog: catalog, publisher: publisher, notifier: notifier}
}
