package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-memberships/app/entity"
	"github.com/vibast-solutions/ms-go-memberships/app/factory"
	"github.com/vibast-solutions/ms-go-memberships/app/identity"
	"github.com/vibast-solutions/ms-go-memberships/app/payment"
	"github.com/vibast-solutions/ms-go-memberships/app/repository"
	"github.com/vibast-solutions/ms-go-memberships/config"
)

const (
	gatewayStatusActive   = "ACTIVE"
	gatewayStatusApproved = "APPROVED"
)

type createOrderRequest interface {
	GetMembershipId() uint64
	GetNonce() string
}

type captureOrderRequest interface {
	GetOrderId() string
}

type createRecurringRequest interface {
	GetPackageId() uint64
	GetNonce() string
}

type approveRecurringRequest interface {
	GetSubscriptionId() string
	GetPackageId() uint64
}

type freeCheckoutRequest interface {
	GetPackageId() uint64
	GetNonce() string
}

type cancelMembershipRequest interface {
	GetNonce() string
}

type orderRepository interface {
	Create(ctx context.Context, order *entity.PaymentOrder) error
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*entity.PaymentOrder, error)
	Transition(ctx context.Context, id uint64, status string, now time.Time) error
	ListStalePending(ctx context.Context, cutoff time.Time) ([]*entity.PaymentOrder, error)
}

type nonceVerifier interface {
	Issue(subscriberID, action string) (string, time.Time, error)
	Verify(subscriberID, action, nonce string) error
}

type membershipLedger interface {
	GetMembership(ctx context.Context, subscriberID string) (*entity.Membership, error)
	Grant(ctx context.Context, req GrantRequest) (*TransitionResult, error)
	Cancel(ctx context.Context, req CancelRequest) (*entity.Membership, error)
}

type OrderResult struct {
	OrderID    string
	PaymentURL string
	Quote      *Quote
}

type RecurringResult struct {
	SubscriptionID string
	ApproveURL     string
}

type CheckoutResult struct {
	RedirectURL string
	Transition  *TransitionResult
}

// CheckoutService turns subscriber checkout calls into gateway calls and,
// once a payment is confirmed, into ledger grants.
type CheckoutService struct {
	catalog    packageCatalog
	ledger     membershipLedger
	orders     orderRepository
	gateway    payment.Gateway
	nonces     nonceVerifier
	calculator *EntitlementCalculator
	cfg        config.MembershipConfig
	now        func() time.Time
	logger     logrus.FieldLogger
}

func NewCheckoutService(
	catalog packageCatalog,
	ledger membershipLedger,
	orders orderRepository,
	gateway payment.Gateway,
	nonces nonceVerifier,
	calculator *EntitlementCalculator,
	cfg config.MembershipConfig,
) *CheckoutService {
	return &CheckoutService{
		catalog:    catalog,
		ledger:     ledger,
		orders:     orders,
		gateway:    gateway,
		nonces:     nonces,
		calculator: calculator,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     factory.NewModuleLogger("checkout"),
	}
}

func (s *CheckoutService) IssueNonce(subscriber identity.Subscriber, action string) (string, time.Time, error) {
	switch action {
	case identity.ActionPayPalCheckout, identity.ActionRecurring, identity.ActionBankTransfer,
		identity.ActionFreeCheckout, identity.ActionCancel:
	default:
		return "", time.Time{}, fmt.Errorf("%w: unknown nonce action", ErrValidation)
	}
	return s.nonces.Issue(subscriber.ID, action)
}

// Quote prices packageID for the subscriber, applying the proration credit
// of any active membership.
func (s *CheckoutService) Quote(ctx context.Context, subscriber identity.Subscriber, packageID uint64) (*Quote, error) {
	candidate, err := s.catalog.GetPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}

	current, err := s.CurrentMembership(ctx, subscriber.ID)
	if err != nil {
		return nil, err
	}

	var currentPkg *entity.Package
	if current != nil {
		currentPkg, err = s.catalog.HeldPackage(ctx, current.PackageID)
		if err != nil && !errors.Is(err, ErrPackageNotFound) {
			return nil, err
		}
	}

	return s.calculator.Quote(current, currentPkg, candidate, s.now()), nil
}

func (s *CheckoutService) CreateOrder(ctx context.Context, subscriber identity.Subscriber, req createOrderRequest) (*OrderResult, error) {
	if err := s.guard(subscriber, identity.ActionPayPalCheckout, req.GetNonce()); err != nil {
		return nil, err
	}

	quote, err := s.Quote(ctx, subscriber, req.GetMembershipId())
	if err != nil {
		return nil, err
	}
	if !quote.Total.IsPositive() {
		return nil, ErrZeroTotal
	}

	referenceID := uuid.NewString()
	result, err := s.gateway.CreateOrder(ctx, payment.OrderRequest{
		ReferenceID: referenceID,
		Amount:      quote.Total,
		Currency:    quote.Currency,
		Description: quote.Package.Title,
		CustomID:    subscriber.ID,
	})
	if err != nil {
		return nil, gatewayError(err)
	}

	now := s.now()
	order := &entity.PaymentOrder{
		GatewayOrderID: result.TransactionID,
		SubscriberID:   subscriber.ID,
		Email:          subscriber.Email,
		PackageID:      quote.Package.ID,
		Amount:         quote.Total,
		Credit:         quote.Credit,
		Currency:       quote.Currency,
		Status:         entity.OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	factory.LoggerWithSubscriber(s.logger, subscriber.ID).
		WithField("order_id", order.GatewayOrderID).
		WithField("package_id", order.PackageID).
		Info("PayPal order created")
	return &OrderResult{OrderID: result.TransactionID, PaymentURL: result.PaymentURL, Quote: quote}, nil
}

// CaptureOrder captures an approved order and grants its package. Capturing
// an order that was already captured returns the redirect and changes nothing.
func (s *CheckoutService) CaptureOrder(ctx context.Context, subscriber identity.Subscriber, req captureOrderRequest) (*CheckoutResult, error) {
	orderID := strings.TrimSpace(req.GetOrderId())
	if orderID == "" {
		return nil, fmt.Errorf("%w: order_id is required", ErrValidation)
	}

	order, err := s.orders.FindByGatewayOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.SubscriberID != subscriber.ID {
		return nil, ErrOrderOwnership
	}
	switch order.Status {
	case entity.OrderStatusCaptured:
		return &CheckoutResult{RedirectURL: s.cfg.MembershipPageURL}, nil
	case entity.OrderStatusPending:
	default:
		return nil, ErrOrderNotPending
	}

	result, err := s.gateway.CaptureOrder(ctx, order.GatewayOrderID)
	if err != nil {
		return nil, gatewayError(err)
	}
	if result.Type != payment.ResultTypeSuccess {
		factory.LoggerWithSubscriber(s.logger, subscriber.ID).
			WithField("order_id", orderID).
			WithField("status", result.Status).
			Warn("PayPal order not completed")
		return nil, ErrPaymentNotCompleted
	}

	previous, err := s.CurrentMembership(ctx, subscriber.ID)
	if err != nil {
		return nil, err
	}

	transition, err := s.ledger.Grant(ctx, GrantRequest{
		SubscriberID:   subscriber.ID,
		Email:          firstNonEmpty(subscriber.Email, order.Email),
		PackageID:      order.PackageID,
		PaymentMethod:  entity.PaymentMethodPayPal,
		TransactionID:  result.TransactionID,
		Amount:         order.Amount,
		Credit:         order.Credit,
		CaptureOrderID: order.ID,
	})
	if err != nil {
		return nil, err
	}
	if !transition.Replayed {
		s.CancelSuperseded(ctx, previous, transition.Membership)
	}

	return &CheckoutResult{RedirectURL: s.cfg.MembershipPageURL, Transition: transition}, nil
}

func (s *CheckoutService) CreateRecurring(ctx context.Context, subscriber identity.Subscriber, req createRecurringRequest) (*RecurringResult, error) {
	if !s.cfg.RecurringEnabled {
		return nil, ErrRecurringUnavailable
	}
	if err := s.guard(subscriber, identity.ActionRecurring, req.GetNonce()); err != nil {
		return nil, err
	}

	quote, err := s.Quote(ctx, subscriber, req.GetPackageId())
	if err != nil {
		return nil, err
	}
	if !quote.RecurringAvailable {
		return nil, ErrRecurringUnavailable
	}

	result, err := s.gateway.CreateSubscription(ctx, payment.SubscriptionRequest{
		PlanID:    *quote.Package.PayPalPlanID,
		CustomID:  subscriber.ID,
		ReturnURL: s.cfg.MembershipPageURL,
		CancelURL: s.cfg.MembershipPageURL,
	})
	if err != nil {
		return nil, gatewayError(err)
	}

	return &RecurringResult{SubscriptionID: result.TransactionID, ApproveURL: result.PaymentURL}, nil
}

// ApproveRecurring binds an approved gateway subscription to the subscriber's
// membership. The subscription id is the idempotency key.
func (s *CheckoutService) ApproveRecurring(ctx context.Context, subscriber identity.Subscriber, req approveRecurringRequest) (*CheckoutResult, error) {
	subscriptionID := strings.TrimSpace(req.GetSubscriptionId())
	if subscriptionID == "" {
		return nil, fmt.Errorf("%w: subscription_id is required", ErrValidation)
	}

	pkg, err := s.catalog.GetPackage(ctx, req.GetPackageId())
	if err != nil {
		return nil, err
	}
	if !pkg.IsRecurringCapable() {
		return nil, ErrRecurringUnavailable
	}

	remote, err := s.gateway.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, gatewayError(err)
	}
	status := strings.ToUpper(remote.Status)
	if status != gatewayStatusActive && status != gatewayStatusApproved {
		return nil, ErrSubscriptionNotActive
	}
	if remote.CustomID != "" && remote.CustomID != subscriber.ID {
		return nil, ErrOrderOwnership
	}
	if remote.PlanID != "" && remote.PlanID != *pkg.PayPalPlanID {
		return nil, fmt.Errorf("%w: subscription plan does not match the package", ErrValidation)
	}

	previous, err := s.CurrentMembership(ctx, subscriber.ID)
	if err != nil {
		return nil, err
	}

	transition, err := s.ledger.Grant(ctx, GrantRequest{
		SubscriberID:          subscriber.ID,
		Email:                 subscriber.Email,
		PackageID:             pkg.ID,
		PaymentMethod:         entity.PaymentMethodPayPal,
		TransactionID:         subscriptionID,
		Amount:                pkg.Price,
		Credit:                decimal.Zero,
		Recurring:             true,
		GatewaySubscriptionID: subscriptionID,
	})
	if err != nil {
		return nil, err
	}
	if !transition.Replayed {
		s.CancelSuperseded(ctx, previous, transition.Membership)
	}

	return &CheckoutResult{RedirectURL: s.cfg.MembershipPageURL, Transition: transition}, nil
}

// CheckoutFree activates a package whose total is zero after credit.
func (s *CheckoutService) CheckoutFree(ctx context.Context, subscriber identity.Subscriber, req freeCheckoutRequest) (*CheckoutResult, error) {
	if err := s.guard(subscriber, identity.ActionFreeCheckout, req.GetNonce()); err != nil {
		return nil, err
	}

	quote, err := s.Quote(ctx, subscriber, req.GetPackageId())
	if err != nil {
		return nil, err
	}
	if quote.Total.IsPositive() {
		return nil, ErrNotFree
	}

	previous, err := s.CurrentMembership(ctx, subscriber.ID)
	if err != nil {
		return nil, err
	}

	transition, err := s.ledger.Grant(ctx, GrantRequest{
		SubscriberID:  subscriber.ID,
		Email:         subscriber.Email,
		PackageID:     quote.Package.ID,
		PaymentMethod: entity.PaymentMethodFree,
		TransactionID: "free-" + uuid.NewString(),
		Amount:        decimal.Zero,
		Credit:        quote.Credit,
	})
	if err != nil {
		return nil, err
	}
	s.CancelSuperseded(ctx, previous, transition.Membership)

	return &CheckoutResult{RedirectURL: s.cfg.MembershipPageURL, Transition: transition}, nil
}

// CancelMembership is the subscriber-initiated cancel.
func (s *CheckoutService) CancelMembership(ctx context.Context, subscriber identity.Subscriber, req cancelMembershipRequest) (*entity.Membership, error) {
	if err := s.nonces.Verify(subscriber.ID, identity.ActionCancel, req.GetNonce()); err != nil {
		return nil, ErrInvalidNonce
	}
	return s.CancelSubscriber(ctx, subscriber.ID, "cancelled by subscriber")
}

// CancelSubscriber cancels the gateway subscription of a recurring membership
// first, then removes the membership.
func (s *CheckoutService) CancelSubscriber(ctx context.Context, subscriberID, reason string) (*entity.Membership, error) {
	current, err := s.ledger.GetMembership(ctx, subscriberID)
	if err != nil {
		if errors.Is(err, ErrMembershipNotFound) {
			return nil, ErrMembershipNotActive
		}
		return nil, err
	}

	if current.Recurring && current.GatewaySubscriptionID != nil {
		if err := s.gateway.CancelSubscription(ctx, *current.GatewaySubscriptionID, reason); err != nil {
			return nil, gatewayError(err)
		}
	}

	return s.ledger.Cancel(ctx, CancelRequest{SubscriberID: subscriberID, Reason: reason})
}

// AbandonStalePendingOrders marks orders never captured within the pending
// timeout as abandoned.
func (s *CheckoutService) AbandonStalePendingOrders(ctx context.Context) (int, error) {
	now := s.now()
	orders, err := s.orders.ListStalePending(ctx, now.Add(-s.cfg.PendingOrderTimeout))
	if err != nil {
		return 0, err
	}

	abandoned := 0
	for _, order := range orders {
		if err := s.orders.Transition(ctx, order.ID, entity.OrderStatusAbandoned, now); err != nil {
			if errors.Is(err, repository.ErrOrderNotPending) {
				continue
			}
			return abandoned, err
		}
		abandoned++
		factory.LoggerWithSubscriber(s.logger, order.SubscriberID).
			WithField("order_id", order.GatewayOrderID).
			Info("Pending order abandoned")
	}
	return abandoned, nil
}

func (s *CheckoutService) guard(subscriber identity.Subscriber, action, nonce string) error {
	if !s.cfg.Enabled {
		return ErrMembershipsDisabled
	}
	if err := s.nonces.Verify(subscriber.ID, action, nonce); err != nil {
		return ErrInvalidNonce
	}
	return nil
}

// CurrentMembership returns the subscriber's membership, or nil when there is none.
func (s *CheckoutService) CurrentMembership(ctx context.Context, subscriberID string) (*entity.Membership, error) {
	current, err := s.ledger.GetMembership(ctx, subscriberID)
	if errors.Is(err, ErrMembershipNotFound) {
		return nil, nil
	}
	return current, err
}

// CancelSuperseded stops billing on a recurring subscription that a new
// grant replaced. Failures are logged; the grant already happened.
func (s *CheckoutService) CancelSuperseded(ctx context.Context, previous, next *entity.Membership) {
	if previous == nil || !previous.Recurring || previous.GatewaySubscriptionID == nil {
		return
	}
	if next != nil && next.GatewaySubscriptionID != nil && *next.GatewaySubscriptionID == *previous.GatewaySubscriptionID {
		return
	}

	reason := "replaced by package " + strconv.FormatUint(packageIDOf(next), 10)
	if err := s.gateway.CancelSubscription(ctx, *previous.GatewaySubscriptionID, reason); err != nil {
		factory.LoggerWithSubscriber(s.logger, previous.SubscriberID).
			WithError(err).
			WithField("gateway_subscription_id", *previous.GatewaySubscriptionID).
			Error("Failed to cancel superseded PayPal subscription")
	}
}

func gatewayError(err error) error {
	if errors.Is(err, payment.ErrGatewayDisabled) {
		return ErrPaymentMethodDisabled
	}
	return fmt.Errorf("%w: %v", ErrGateway, err)
}

func packageIDOf(m *entity.Membership) uint64 {
	if m == nil {
		return 0
	}
	return m.PackageID
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
