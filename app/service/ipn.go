package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-memberships/app/entity"
	"github.com/vibast-solutions/ms-go-memberships/app/factory"
	"github.com/vibast-solutions/ms-go-memberships/app/payment"
	"github.com/vibast-solutions/ms-go-memberships/config"
)

const (
	ipnRecurringPayment        = "recurring_payment"
	ipnRecurringPaymentFailed  = "recurring_payment_failed"
	ipnRecurringProfileCreated = "recurring_payment_profile_created"
	ipnRecurringProfileCancel  = "recurring_payment_profile_cancel"
	ipnPaymentCompleted        = "completed"
)

// IPN outcomes, also used as metric labels.
const (
	IPNRejected   = "rejected"
	IPNUnverified = "unverified"
	IPNIgnored    = "ignored"
	IPNRenewed    = "renewed"
	IPNDuplicate  = "duplicate"
	IPNCancelled  = "cancelled"
	IPNFailed     = "failed"
)

type recurringLedger interface {
	FindByGatewaySubscription(ctx context.Context, gatewaySubscriptionID string) (*entity.Membership, error)
	Renew(ctx context.Context, req RenewRequest) (*TransitionResult, error)
	Cancel(ctx context.Context, req CancelRequest) (*entity.Membership, error)
}

type ipnMetrics interface {
	IPN(outcome string)
}

// NotificationService reconciles PayPal IPN messages for recurring
// subscriptions into ledger renewals and cancels.
type NotificationService struct {
	ledger  recurringLedger
	gateway payment.Gateway
	metrics ipnMetrics
	token   string
	logger  logrus.FieldLogger
}

func NewNotificationService(ledger recurringLedger, gateway payment.Gateway, metrics ipnMetrics, cfg config.PayPalConfig) *NotificationService {
	return &NotificationService{
		ledger:  ledger,
		gateway: gateway,
		metrics: metrics,
		token:   cfg.IPNToken,
		logger:  factory.NewModuleLogger("paypal-ipn"),
	}
}

// HandleIPN checks the shared URL token, verifies the message with PayPal and
// applies it. Nothing is written unless both checks pass.
func (s *NotificationService) HandleIPN(ctx context.Context, token string, body []byte) (string, error) {
	outcome, err := s.handle(ctx, token, body)
	if s.metrics != nil {
		s.metrics.IPN(outcome)
	}
	return outcome, err
}

func (s *NotificationService) handle(ctx context.Context, token string, body []byte) (string, error) {
	if s.token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
		return IPNRejected, ErrNotificationUnverified
	}

	verified, err := s.gateway.VerifyNotification(ctx, body)
	if err != nil {
		return IPNUnverified, gatewayError(err)
	}
	if !verified {
		return IPNUnverified, ErrNotificationUnverified
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return IPNIgnored, fmt.Errorf("%w: malformed notification", ErrValidation)
	}

	txnType := values.Get("txn_type")
	profileID := strings.TrimSpace(values.Get("recurring_payment_id"))
	logger := s.logger.WithField("txn_type", txnType).WithField("recurring_payment_id", profileID)

	switch txnType {
	case ipnRecurringProfileCreated:
		return IPNIgnored, nil

	case ipnRecurringPayment:
		if !strings.EqualFold(values.Get("payment_status"), ipnPaymentCompleted) {
			logger.WithField("payment_status", values.Get("payment_status")).Info("Ignoring incomplete recurring payment")
			return IPNIgnored, nil
		}
		membership, err := s.membershipFor(ctx, profileID)
		if err != nil || membership == nil {
			return IPNIgnored, err
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(values.Get("mc_gross")))
		if err != nil {
			return IPNFailed, fmt.Errorf("%w: invalid mc_gross", ErrValidation)
		}

		result, err := s.ledger.Renew(ctx, RenewRequest{
			SubscriberID:  membership.SubscriberID,
			PackageID:     membership.PackageID,
			PaymentMethod: entity.PaymentMethodPayPal,
			TransactionID: strings.TrimSpace(values.Get("txn_id")),
			Amount:        amount,
		})
		if err != nil {
			logger.WithError(err).Error("Failed to renew membership")
			return IPNFailed, err
		}
		if result.Replayed {
			return IPNDuplicate, nil
		}
		logger.WithField("due_at", result.Membership.DueAt).Info("Membership renewed")
		return IPNRenewed, nil

	case ipnRecurringPaymentFailed, ipnRecurringProfileCancel:
		membership, err := s.membershipFor(ctx, profileID)
		if err != nil || membership == nil {
			return IPNIgnored, err
		}

		_, err = s.ledger.Cancel(ctx, CancelRequest{
			SubscriberID:          membership.SubscriberID,
			Reason:                txnType,
			GatewaySubscriptionID: profileID,
		})
		if errors.Is(err, ErrMembershipNotActive) {
			return IPNIgnored, nil
		}
		if err != nil {
			logger.WithError(err).Error("Failed to cancel membership")
			return IPNFailed, err
		}
		logger.Info("Membership cancelled")
		return IPNCancelled, nil

	default:
		return IPNIgnored, nil
	}
}

func (s *NotificationService) membershipFor(ctx context.Context, profileID string) (*entity.Membership, error) {
	if profileID == "" {
		return nil, nil
	}
	membership, err := s.ledger.FindByGatewaySubscription(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		s.logger.WithField("recurring_payment_id", profileID).Warn("No membership bound to recurring profile")
	}
	return membership, nil
}
