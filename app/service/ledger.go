package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-memberships/app/entity"
	"github.com/vibast-solutions/ms-go-memberships/app/events"
	"github.com/vibast-solutions/ms-go-memberships/app/factory"
	"github.com/vibast-solutions/ms-go-memberships/app/lock"
	"github.com/vibast-solutions/ms-go-memberships/app/notify"
	"github.com/vibast-solutions/ms-go-memberships/app/repository"
	"github.com/vibast-solutions/ms-go-memberships/config"
)

type TransitionKind string

const (
	TransitionSubscribe TransitionKind = "subscribe"
	TransitionSwitch    TransitionKind = "switch"
	TransitionRenew     TransitionKind = "renew"
	TransitionCancel    TransitionKind = "cancel"
	TransitionExpire    TransitionKind = "expire"
	TransitionQuota     TransitionKind = "quota"
)

// GrantRequest describes a confirmed payment for a package. TransactionID is
// the gateway reference that makes the grant idempotent.
type GrantRequest struct {
	SubscriberID          string
	Email                 string
	PackageID             uint64
	PaymentMethod         string
	TransactionID         string
	Amount                decimal.Decimal
	Credit                decimal.Decimal
	Recurring             bool
	GatewaySubscriptionID string
	CaptureOrderID        uint64
	ConfirmTransferID     uint64
}

type RenewRequest struct {
	SubscriberID  string
	PackageID     uint64
	PaymentMethod string
	TransactionID string
	Amount        decimal.Decimal
}

// CancelRequest ends a membership. When GatewaySubscriptionID is set the
// cancel only applies while the record is still bound to that subscription.
type CancelRequest struct {
	SubscriberID          string
	Reason                string
	GatewaySubscriptionID string
}

type TransitionResult struct {
	Membership *entity.Membership
	Receipt    *entity.Receipt
	Kind       TransitionKind
	Replayed   bool
}

type membershipRepository interface {
	FindBySubscriber(ctx context.Context, subscriberID string) (*entity.Membership, error)
	FindByGatewaySubscription(ctx context.Context, gatewaySubscriptionID string) (*entity.Membership, error)
	Update(ctx context.Context, m *entity.Membership) error
}

type receiptRepository interface {
	FindByTransaction(ctx context.Context, paymentMethod, transactionID string) (*entity.Receipt, error)
	ListBySubscriber(ctx context.Context, subscriberID string) ([]*entity.Receipt, error)
}

type ledgerStore interface {
	Commit(ctx context.Context, t *repository.Transition) error
}

type packageCatalog interface {
	GetPackage(ctx context.Context, id uint64) (*entity.Package, error)
	HeldPackage(ctx context.Context, id uint64) (*entity.Package, error)
}

type membershipNotifier interface {
	MembershipActivated(ctx context.Context, a notify.Activation) []notify.Delivery
	BankTransferSubmitted(ctx context.Context, notice notify.BankTransferNotice) []notify.Delivery
}

type ledgerMetrics interface {
	Transition(kind, outcome string)
	Receipt(paymentMethod string)
	Notification(channel, outcome string)
}

// LedgerService owns the membership record of every subscriber. All writes
// for one subscriber are serialised by the locker and land in one database
// transaction together with their receipt and scheduled expiry.
type LedgerService struct {
	catalog     packageCatalog
	memberships membershipRepository
	receipts    receiptRepository
	store       ledgerStore
	locker      lock.Locker
	calculator  *EntitlementCalculator
	publisher   events.Publisher
	notifier    membershipNotifier
	metrics     ledgerMetrics
	cfg         config.MembershipConfig
	now         func() time.Time
	logger      logrus.FieldLogger
}

func NewLedgerService(
	catalog packageCatalog,
	memberships membershipRepository,
	receipts receiptRepository,
	store ledgerStore,
	locker lock.Locker,
	calculator *EntitlementCalculator,
	publisher events.Publisher,
	notifier membershipNotifier,
	metrics ledgerMetrics,
	cfg config.MembershipConfig,
) *LedgerService {
	return &LedgerService{
		catalog:     catalog,
		memberships: memberships,
		receipts:    receipts,
		store:       store,
		locker:      locker,
		calculator:  calculator,
		publisher:   publisher,
		notifier:    notifier,
		metrics:     metrics,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      factory.NewModuleLogger("ledger"),
	}
}

func (s *LedgerService) GetMembership(ctx context.Context, subscriberID string) (*entity.Membership, error) {
	m, err := s.memberships.FindBySubscriber(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMembershipNotFound
	}
	return m, nil
}

func (s *LedgerService) FindByGatewaySubscription(ctx context.Context, gatewaySubscriptionID string) (*entity.Membership, error) {
	return s.memberships.FindByGatewaySubscription(ctx, gatewaySubscriptionID)
}

func (s *LedgerService) ListReceipts(ctx context.Context, subscriberID string) ([]*entity.Receipt, error) {
	return s.receipts.ListBySubscriber(ctx, subscriberID)
}

// Subscribe starts a membership for a subscriber without one.
func (s *LedgerService) Subscribe(ctx context.Context, req GrantRequest) (*TransitionResult, error) {
	return s.grant(ctx, req, TransitionSubscribe)
}

// Switch replaces the package of an active membership and restarts its term.
func (s *LedgerService) Switch(ctx context.Context, req GrantRequest) (*TransitionResult, error) {
	return s.grant(ctx, req, TransitionSwitch)
}

// Grant subscribes or switches depending on the current record.
func (s *LedgerService) Grant(ctx context.Context, req GrantRequest) (*TransitionResult, error) {
	return s.grant(ctx, req, "")
}

func (s *LedgerService) grant(ctx context.Context, req GrantRequest, want TransitionKind) (*TransitionResult, error) {
	if strings.TrimSpace(req.SubscriberID) == "" || strings.TrimSpace(req.TransactionID) == "" {
		return nil, ErrValidation
	}

	release, err := s.locker.Acquire(ctx, lockKey(req.SubscriberID))
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.memberships.FindBySubscriber(ctx, req.SubscriberID)
	if err != nil {
		return nil, err
	}

	kind := TransitionSubscribe
	if current != nil {
		kind = TransitionSwitch
	}
	if replayed, err := s.replay(ctx, kind, req.SubscriberID, req.PaymentMethod, req.TransactionID, current); replayed != nil || err != nil {
		return replayed, err
	}

	if want == TransitionSubscribe && current != nil {
		return nil, ErrMembershipAlreadyActive
	}
	if want == TransitionSwitch && current == nil {
		return nil, ErrMembershipNotActive
	}

	pkg, err := s.catalog.GetPackage(ctx, req.PackageID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var m *entity.Membership
	write := repository.MembershipCreate
	if current == nil {
		m = &entity.Membership{
			SubscriberID: req.SubscriberID,
			CreatedAt:    now,
		}
	} else {
		copied := *current
		m = &copied
		write = repository.MembershipUpdate
	}

	if req.Email != "" {
		m.Email = req.Email
	}
	m.PackageID = pkg.ID
	m.PropertyQuota = pkg.PropertyQuota
	m.FeaturedQuota = pkg.FeaturedQuota
	m.DueAt = now.Add(pkg.Term())
	m.PaymentMethod = req.PaymentMethod
	m.Recurring = req.Recurring
	m.GatewaySubscriptionID = nil
	if req.GatewaySubscriptionID != "" {
		gatewayID := req.GatewaySubscriptionID
		m.GatewaySubscriptionID = &gatewayID
	}
	m.UpdatedAt = now

	receipt := &entity.Receipt{
		SubscriberID:  req.SubscriberID,
		PackageID:     pkg.ID,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Credit:        req.Credit,
		Currency:      s.cfg.CurrencyCode,
		Recurring:     req.Recurring,
		CreatedAt:     now,
	}

	err = s.store.Commit(ctx, &repository.Transition{
		Membership:      m,
		MembershipWrite: write,
		Receipt:         receipt,
		Expiry:          &entity.ScheduledExpiry{SubscriberID: m.SubscriberID, PackageID: pkg.ID, FireAt: s.expiryFireAt(m), CreatedAt: now},
		CaptureOrderID:  req.CaptureOrderID,
		ConfirmTransfer: req.ConfirmTransferID,
		Now:             now,
	})
	if err != nil {
		return s.commitFailed(ctx, kind, req.SubscriberID, req.PaymentMethod, req.TransactionID, err)
	}

	eventName := events.MembershipGranted
	if kind == TransitionSwitch {
		eventName = events.MembershipSwitched
	}
	s.activated(ctx, kind, eventName, m, receipt, pkg)
	return &TransitionResult{Membership: m, Receipt: receipt, Kind: kind}, nil
}

// Renew extends the due date of the current term by one package duration.
func (s *LedgerService) Renew(ctx context.Context, req RenewRequest) (*TransitionResult, error) {
	if strings.TrimSpace(req.SubscriberID) == "" || strings.TrimSpace(req.TransactionID) == "" {
		return nil, ErrValidation
	}

	release, err := s.locker.Acquire(ctx, lockKey(req.SubscriberID))
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.memberships.FindBySubscriber(ctx, req.SubscriberID)
	if err != nil {
		return nil, err
	}
	if replayed, err := s.replay(ctx, TransitionRenew, req.SubscriberID, req.PaymentMethod, req.TransactionID, current); replayed != nil || err != nil {
		return replayed, err
	}
	if current == nil {
		return nil, ErrMembershipNotActive
	}
	if current.PackageID != req.PackageID {
		return nil, ErrPackageMismatch
	}

	pkg, err := s.catalog.HeldPackage(ctx, req.PackageID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	copied := *current
	m := &copied
	m.DueAt = m.DueAt.Add(pkg.Term())
	m.UpdatedAt = now

	receipt := &entity.Receipt{
		SubscriberID:  req.SubscriberID,
		PackageID:     pkg.ID,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Credit:        decimal.Zero,
		Currency:      s.cfg.CurrencyCode,
		Recurring:     true,
		CreatedAt:     now,
	}

	err = s.store.Commit(ctx, &repository.Transition{
		Membership:      m,
		MembershipWrite: repository.MembershipUpdate,
		Receipt:         receipt,
		Expiry:          &entity.ScheduledExpiry{SubscriberID: m.SubscriberID, PackageID: pkg.ID, FireAt: s.expiryFireAt(m), CreatedAt: now},
		Now:             now,
	})
	if err != nil {
		return s.commitFailed(ctx, TransitionRenew, req.SubscriberID, req.PaymentMethod, req.TransactionID, err)
	}

	s.activated(ctx, TransitionRenew, events.MembershipRenewed, m, receipt, pkg)
	return &TransitionResult{Membership: m, Receipt: receipt, Kind: TransitionRenew}, nil
}

// Cancel deletes the membership record and its scheduled expiry.
func (s *LedgerService) Cancel(ctx context.Context, req CancelRequest) (*entity.Membership, error) {
	release, err := s.locker.Acquire(ctx, lockKey(req.SubscriberID))
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.memberships.FindBySubscriber(ctx, req.SubscriberID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrMembershipNotActive
	}
	if req.GatewaySubscriptionID != "" && (current.GatewaySubscriptionID == nil || *current.GatewaySubscriptionID != req.GatewaySubscriptionID) {
		return nil, ErrMembershipNotActive
	}

	if err := s.remove(ctx, current); err != nil {
		s.record(TransitionCancel, "error")
		return nil, err
	}

	s.record(TransitionCancel, "ok")
	s.publish(ctx, events.Event{
		Name:          events.MembershipCancelled,
		SubscriberID:  current.SubscriberID,
		PackageID:     current.PackageID,
		PaymentMethod: current.PaymentMethod,
		Recurring:     current.Recurring,
		Reason:        req.Reason,
		OccurredAt:    s.now(),
	})
	return current, nil
}

// Expire ends the membership for a fired expiry. The fire is stale, and
// ignored, unless the record still holds packageID and is due by firedAt.
func (s *LedgerService) Expire(ctx context.Context, subscriberID string, packageID uint64, firedAt time.Time) (bool, error) {
	release, err := s.locker.Acquire(ctx, lockKey(subscriberID))
	if err != nil {
		return false, err
	}
	defer release()

	current, err := s.memberships.FindBySubscriber(ctx, subscriberID)
	if err != nil {
		return false, err
	}
	if current == nil || current.PackageID != packageID || current.DueAt.After(firedAt) {
		s.record(TransitionExpire, "stale")
		return false, nil
	}

	if err := s.remove(ctx, current); err != nil {
		s.record(TransitionExpire, "error")
		return false, err
	}

	s.record(TransitionExpire, "ok")
	dueAt := current.DueAt
	s.publish(ctx, events.Event{
		Name:          events.MembershipExpired,
		SubscriberID:  current.SubscriberID,
		PackageID:     current.PackageID,
		PaymentMethod: current.PaymentMethod,
		Recurring:     current.Recurring,
		DueAt:         &dueAt,
		OccurredAt:    s.now(),
	})
	return true, nil
}

// ConsumeQuota charges listing usage against the membership. Negative values
// release usage.
func (s *LedgerService) ConsumeQuota(ctx context.Context, subscriberID string, properties, featured int) (*entity.Membership, error) {
	release, err := s.locker.Acquire(ctx, lockKey(subscriberID))
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.memberships.FindBySubscriber(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if current == nil || !current.DueAt.After(now) {
		return nil, ErrMembershipNotActive
	}

	if properties > 0 && current.PropertyQuota != entity.UnlimitedQuota && current.PropertyUsage+properties > current.PropertyQuota {
		return nil, ErrQuotaExceeded
	}
	if featured > 0 && current.FeaturedQuota != entity.UnlimitedQuota && current.FeaturedUsage+featured > current.FeaturedQuota {
		return nil, ErrQuotaExceeded
	}

	copied := *current
	m := &copied
	m.PropertyUsage = max(m.PropertyUsage+properties, 0)
	m.FeaturedUsage = max(m.FeaturedUsage+featured, 0)
	m.UpdatedAt = now

	if err := s.memberships.Update(ctx, m); err != nil {
		if errors.Is(err, repository.ErrMembershipVersionStale) {
			return nil, ErrConcurrentUpdate
		}
		return nil, err
	}
	s.record(TransitionQuota, "ok")
	return m, nil
}

// expiryFireAt is the due date, pushed back by the recurring grace while the
// gateway may still collect the renewal.
func (s *LedgerService) expiryFireAt(m *entity.Membership) time.Time {
	if m.Recurring && s.cfg.RecurringGrace > 0 {
		return m.DueAt.Add(s.cfg.RecurringGrace)
	}
	return m.DueAt
}

func (s *LedgerService) remove(ctx context.Context, current *entity.Membership) error {
	err := s.store.Commit(ctx, &repository.Transition{
		Membership:      current,
		MembershipWrite: repository.MembershipDelete,
		ClearExpiry:     true,
		Now:             s.now(),
	})
	if errors.Is(err, repository.ErrMembershipVersionStale) {
		return ErrConcurrentUpdate
	}
	return err
}

// replay returns the original outcome when the gateway transaction was
// already recorded for subscriberID.
func (s *LedgerService) replay(ctx context.Context, kind TransitionKind, subscriberID, paymentMethod, transactionID string, current *entity.Membership) (*TransitionResult, error) {
	receipt, err := s.receipts.FindByTransaction(ctx, paymentMethod, transactionID)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, nil
	}
	if receipt.SubscriberID != subscriberID {
		s.record(kind, "conflict")
		s.logger.WithField("subscriber_id", subscriberID).
			WithField("transaction_id", transactionID).
			Warn("Transaction already recorded for another subscriber")
		return nil, ErrTransactionOwnership
	}

	s.record(kind, "replayed")
	s.logger.WithField("subscriber_id", receipt.SubscriberID).
		WithField("transaction_id", transactionID).
		Info("Transaction already recorded, replaying receipt")
	return &TransitionResult{Membership: current, Receipt: receipt, Kind: kind, Replayed: true}, nil
}

func (s *LedgerService) commitFailed(ctx context.Context, kind TransitionKind, subscriberID, paymentMethod, transactionID string, err error) (*TransitionResult, error) {
	switch {
	case errors.Is(err, repository.ErrReceiptAlreadyExists):
		receipt, findErr := s.receipts.FindByTransaction(ctx, paymentMethod, transactionID)
		if findErr != nil {
			return nil, findErr
		}
		if receipt != nil && receipt.SubscriberID != subscriberID {
			s.record(kind, "conflict")
			return nil, ErrTransactionOwnership
		}
		if receipt != nil {
			current, findErr := s.memberships.FindBySubscriber(ctx, receipt.SubscriberID)
			if findErr != nil {
				return nil, findErr
			}
			s.record(kind, "replayed")
			return &TransitionResult{Membership: current, Receipt: receipt, Kind: kind, Replayed: true}, nil
		}
		s.record(kind, "error")
		return nil, err
	case errors.Is(err, repository.ErrMembershipAlreadyExists):
		s.record(kind, "conflict")
		return nil, ErrMembershipAlreadyActive
	case errors.Is(err, repository.ErrMembershipVersionStale):
		s.record(kind, "conflict")
		return nil, ErrConcurrentUpdate
	case errors.Is(err, repository.ErrOrderNotPending):
		s.record(kind, "conflict")
		return nil, ErrOrderNotPending
	case errors.Is(err, repository.ErrBankTransferNotPending):
		s.record(kind, "conflict")
		return nil, ErrBankTransferNotPending
	default:
		s.record(kind, "error")
		return nil, err
	}
}

func (s *LedgerService) activated(ctx context.Context, kind TransitionKind, name events.Name, m *entity.Membership, receipt *entity.Receipt, pkg *entity.Package) {
	s.record(kind, "ok")
	if s.metrics != nil {
		s.metrics.Receipt(receipt.PaymentMethod)
	}

	dueAt := m.DueAt
	now := s.now()
	s.publish(ctx, events.Event{
		Name:          name,
		SubscriberID:  m.SubscriberID,
		PackageID:     m.PackageID,
		PaymentMethod: m.PaymentMethod,
		TransactionID: receipt.TransactionID,
		Amount:        receipt.Amount.String(),
		Recurring:     m.Recurring,
		DueAt:         &dueAt,
		OccurredAt:    now,
	})
	s.publish(ctx, events.Event{
		Name:          events.ReceiptGenerated,
		SubscriberID:  receipt.SubscriberID,
		PackageID:     receipt.PackageID,
		PaymentMethod: receipt.PaymentMethod,
		TransactionID: receipt.TransactionID,
		Amount:        receipt.Amount.String(),
		Recurring:     receipt.Recurring,
		OccurredAt:    now,
	})

	if s.notifier == nil {
		return
	}
	deliveries := s.notifier.MembershipActivated(ctx, notify.Activation{
		SubscriberID:  m.SubscriberID,
		Email:         m.Email,
		PackageID:     pkg.ID,
		PackageTitle:  pkg.Title,
		PaymentMethod: receipt.PaymentMethod,
		Recurring:     receipt.Recurring,
		Amount:        s.calculator.FormatPrice(receipt.Amount),
		DueAt:         m.DueAt,
	})
	s.delivered(ctx, m.SubscriberID, m.PackageID, deliveries)
}

func (s *LedgerService) delivered(ctx context.Context, subscriberID string, packageID uint64, deliveries []notify.Delivery) {
	for _, d := range deliveries {
		outcome := "sent"
		if d.Err != nil {
			outcome = "failed"
		}
		if s.metrics != nil {
			s.metrics.Notification(d.Channel, outcome)
		}
		if d.Err != nil {
			continue
		}
		s.publish(ctx, events.Event{
			Name:         events.NotificationSent,
			SubscriberID: subscriberID,
			PackageID:    packageID,
			Recipient:    d.Recipient,
			Reason:       d.Channel,
			OccurredAt:   s.now(),
		})
	}
}

func (s *LedgerService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		factory.LoggerWithSubscriber(s.logger, event.SubscriberID).
			WithError(err).
			WithField("event", string(event.Name)).
			Warn("Failed to publish event")
	}
}

func (s *LedgerService) record(kind TransitionKind, outcome string) {
	if s.metrics != nil {
		s.metrics.Transition(string(kind), outcome)
	}
}

func lockKey(subscriberID string) string {
	return "membership:" + subscriberID
}
