package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-memberships/app/entity"
	"github.com/vibast-solutions/ms-go-memberships/app/factory"
)

type expiryRepository interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]*entity.ScheduledExpiry, error)
	DeleteIfMatches(ctx context.Context, expiry *entity.ScheduledExpiry) (bool, error)
}

type membershipExpirer interface {
	Expire(ctx context.Context, subscriberID string, packageID uint64, firedAt time.Time) (bool, error)
}

type sweepMetrics interface {
	ExpirySweep(outcome string)
}

type SweepResult struct {
	Expired int
	Stale   int
	Failed  int
}

// ExpiryService fires due scheduled expiries against the ledger.
type ExpiryService struct {
	expiries  expiryRepository
	ledger    membershipExpirer
	metrics   sweepMetrics
	batchSize int
	now       func() time.Time
	logger    logrus.FieldLogger
}

func NewExpiryService(expiries expiryRepository, ledger membershipExpirer, metrics sweepMetrics, batchSize int) *ExpiryService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ExpiryService{
		expiries:  expiries,
		ledger:    ledger,
		metrics:   metrics,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    factory.NewModuleLogger("expiry-sweeper"),
	}
}

// SweepExpiries processes one batch of due expiries. Rows that turned stale
// are removed only if nobody rescheduled them in the meantime.
func (s *ExpiryService) SweepExpiries(ctx context.Context) (*SweepResult, error) {
	now := s.now()
	due, err := s.expiries.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for _, item := range due {
		logger := factory.LoggerWithSubscriber(s.logger, item.SubscriberID).WithField("package_id", item.PackageID)

		expired, err := s.ledger.Expire(ctx, item.SubscriberID, item.PackageID, now)
		if err != nil {
			result.Failed++
			s.record("failed")
			logger.WithError(err).Error("Failed to expire membership")
			continue
		}
		if expired {
			result.Expired++
			s.record("expired")
			logger.Info("Membership expired")
			continue
		}

		result.Stale++
		s.record("stale")
		if _, err := s.expiries.DeleteIfMatches(ctx, item); err != nil {
			logger.WithError(err).Warn("Failed to remove stale expiry")
		}
	}

	return result, nil
}

func (s *ExpiryService) record(outcome string) {
	if s.metrics != nil {
		s.metrics.ExpirySweep(outcome)
	}
}
