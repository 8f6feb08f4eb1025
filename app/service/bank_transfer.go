package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-memberships/app/entity"
	"github.com/vibast-solutions/ms-go-memberships/app/events"
	"github.com/vibast-solutions/ms-go-memberships/app/factory"
	"github.com/vibast-solutions/ms-go-memberships/app/identity"
	"github.com/vibast-solutions/ms-go-memberships/app/notify"
	"github.com/vibast-solutions/ms-go-memberships/app/repository"
	"github.com/vibast-solutions/ms-go-memberships/config"
)

type submitBankTransferRequest interface {
	GetPackageId() uint64
	GetNonce() string
	GetReference() string
}

type bankTransferRepository interface {
	Create(ctx context.Context, transfer *entity.BankTransfer) error
	FindByID(ctx context.Context, id uint64) (*entity.BankTransfer, error)
	List(ctx context.Context, status string) ([]*entity.BankTransfer, error)
	Transition(ctx context.Context, id uint64, status string, now time.Time) error
}

type transferCheckout interface {
	Quote(ctx context.Context, subscriber identity.Subscriber, packageID uint64) (*Quote, error)
	CurrentMembership(ctx context.Context, subscriberID string) (*entity.Membership, error)
	CancelSuperseded(ctx context.Context, previous, next *entity.Membership)
}

type transferGranter interface {
	Grant(ctx context.Context, req GrantRequest) (*TransitionResult, error)
}

type notificationMetrics interface {
	Notification(channel, outcome string)
}

// BankTransferService records manual payment attestations and lets an
// operator confirm or reject them.
type BankTransferService struct {
	transfers  bankTransferRepository
	checkout   transferCheckout
	ledger     transferGranter
	nonces     nonceVerifier
	notifier   membershipNotifier
	publisher  events.Publisher
	metrics    notificationMetrics
	calculator *EntitlementCalculator
	enabled    bool
	cfg        config.MembershipConfig
	now        func() time.Time
	logger     logrus.FieldLogger
}

func NewBankTransferService(
	transfers bankTransferRepository,
	checkout transferCheckout,
	ledger transferGranter,
	nonces nonceVerifier,
	notifier membershipNotifier,
	publisher events.Publisher,
	metrics notificationMetrics,
	calculator *EntitlementCalculator,
	wire config.WireConfig,
	cfg config.MembershipConfig,
) *BankTransferService {
	return &BankTransferService{
		transfers:  transfers,
		checkout:   checkout,
		ledger:     ledger,
		nonces:     nonces,
		notifier:   notifier,
		publisher:  publisher,
		metrics:    metrics,
		calculator: calculator,
		enabled:    wire.Enabled,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     factory.NewModuleLogger("bank-transfer"),
	}
}

func (s *BankTransferService) Submit(ctx context.Context, subscriber identity.Subscriber, req submitBankTransferRequest) (*entity.BankTransfer, error) {
	if !s.cfg.Enabled {
		return nil, ErrMembershipsDisabled
	}
	if !s.enabled {
		return nil, ErrPaymentMethodDisabled
	}
	if err := s.nonces.Verify(subscriber.ID, identity.ActionBankTransfer, req.GetNonce()); err != nil {
		return nil, ErrInvalidNonce
	}

	reference := strings.TrimSpace(req.GetReference())
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrValidation)
	}

	quote, err := s.checkout.Quote(ctx, subscriber, req.GetPackageId())
	if err != nil {
		return nil, err
	}
	if !quote.Total.IsPositive() {
		return nil, ErrZeroTotal
	}

	now := s.now()
	transfer := &entity.BankTransfer{
		SubscriberID: subscriber.ID,
		Email:        subscriber.Email,
		PackageID:    quote.Package.ID,
		Reference:    reference,
		Amount:       quote.Total,
		Credit:       quote.Credit,
		Currency:     quote.Currency,
		Status:       entity.BankTransferStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.transfers.Create(ctx, transfer); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.Event{
			Name:          events.BankTransferSubmitted,
			SubscriberID:  transfer.SubscriberID,
			PackageID:     transfer.PackageID,
			PaymentMethod: entity.PaymentMethodBankTransfer,
			Amount:        transfer.Amount.String(),
			OccurredAt:    now,
		}); err != nil {
			s.logger.WithError(err).Warn("Failed to publish bank transfer event")
		}
	}

	if s.notifier != nil {
		deliveries := s.notifier.BankTransferSubmitted(ctx, notify.BankTransferNotice{
			TransferID:   transfer.ID,
			SubscriberID: transfer.SubscriberID,
			Email:        transfer.Email,
			PackageTitle: quote.Package.Title,
			Reference:    transfer.Reference,
			Amount:       s.calculator.FormatPrice(transfer.Amount),
		})
		for _, d := range deliveries {
			outcome := "sent"
			if d.Err != nil {
				outcome = "failed"
			}
			if s.metrics != nil {
				s.metrics.Notification(d.Channel, outcome)
			}
		}
	}

	factory.LoggerWithSubscriber(s.logger, subscriber.ID).
		WithField("transfer_id", transfer.ID).
		Info("Bank transfer submitted")
	return transfer, nil
}

func (s *BankTransferService) List(ctx context.Context, status string) ([]*entity.BankTransfer, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case "", entity.BankTransferStatusPending, entity.BankTransferStatusConfirmed, entity.BankTransferStatusRejected:
	default:
		return nil, fmt.Errorf("%w: unknown bank transfer status", ErrValidation)
	}
	return s.transfers.List(ctx, status)
}

// Confirm grants the package the transfer paid for. The transfer moves to
// confirmed in the same transaction as the grant.
func (s *BankTransferService) Confirm(ctx context.Context, id uint64) (*TransitionResult, error) {
	transfer, err := s.pending(ctx, id)
	if err != nil {
		return nil, err
	}

	previous, err := s.checkout.CurrentMembership(ctx, transfer.SubscriberID)
	if err != nil {
		return nil, err
	}

	result, err := s.ledger.Grant(ctx, GrantRequest{
		SubscriberID:      transfer.SubscriberID,
		Email:             transfer.Email,
		PackageID:         transfer.PackageID,
		PaymentMethod:     entity.PaymentMethodBankTransfer,
		TransactionID:     fmt.Sprintf("bank-transfer-%d", transfer.ID),
		Amount:            transfer.Amount,
		Credit:            transfer.Credit,
		ConfirmTransferID: transfer.ID,
	})
	if err != nil {
		return nil, err
	}
	if !result.Replayed {
		s.checkout.CancelSuperseded(ctx, previous, result.Membership)
	}

	factory.LoggerWithSubscriber(s.logger, transfer.SubscriberID).
		WithField("transfer_id", transfer.ID).
		Info("Bank transfer confirmed")
	return result, nil
}

func (s *BankTransferService) Reject(ctx context.Context, id uint64) (*entity.BankTransfer, error) {
	transfer, err := s.pending(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.transfers.Transition(ctx, transfer.ID, entity.BankTransferStatusRejected, now); err != nil {
		if errors.Is(err, repository.ErrBankTransferNotPending) {
			return nil, ErrBankTransferNotPending
		}
		return nil, err
	}
	transfer.Status = entity.BankTransferStatusRejected
	transfer.UpdatedAt = now
	return transfer, nil
}

func (s *BankTransferService) pending(ctx context.Context, id uint64) (*entity.BankTransfer, error) {
	transfer, err := s.transfers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if transfer == nil {
		return nil, ErrBankTransferNotFound
	}
	if transfer.Status != entity.BankTransferStatusPending {
		return nil, ErrBankTransferNotPending
	}
	return transfer, nil
}
