package repository

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-memberships/app/entity"
)

type MembershipWrite int

const (
	MembershipKeep MembershipWrite = iota
	MembershipCreate
	MembershipUpdate
	MembershipDelete
)

// Transition is every row change one ledger operation makes. LedgerStore applies
// it in a single transaction so a membership never exists without its receipt
// and expiry, and a replayed receipt rolls everything back.
type Transition struct {
	Membership      *entity.Membership
	MembershipWrite MembershipWrite
	Receipt         *entity.Receipt
	Expiry          *entity.ScheduledExpiry
	ClearExpiry     bool
	CaptureOrderID  uint64
	ConfirmTransfer uint64
	Now             time.Time
}

type LedgerStore struct {
	db TxBeginner
}

func NewLedgerStore(db TxBeginner) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) Commit(ctx context.Context, t *Transition) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if t.Receipt != nil {
		if err = NewReceiptRepository(tx).Create(ctx, t.Receipt); err != nil {
			return err
		}
	}

	memberships := NewMembershipRepository(tx)
	switch t.MembershipWrite {
	case MembershipCreate:
		err = memberships.Create(ctx, t.Membership)
	case MembershipUpdate:
		err = memberships.Update(ctx, t.Membership)
	case MembershipDelete:
		err = memberships.Delete(ctx, t.Membership.SubscriberID, t.Membership.Version)
	}
	if err != nil {
		return err
	}

	expiries := NewExpiryRepository(tx)
	if t.Expiry != nil {
		err = expiries.Upsert(ctx, t.Expiry)
	} else if t.ClearExpiry {
		err = expiries.Delete(ctx, t.Membership.SubscriberID)
	}
	if err != nil {
		return err
	}

	if t.CaptureOrderID != 0 {
		if err = NewOrderRepository(tx).Transition(ctx, t.CaptureOrderID, entity.OrderStatusCaptured, t.Now); err != nil {
			return err
		}
	}
	if t.ConfirmTransfer != 0 {
		if err = NewBankTransferRepository(tx).Transition(ctx, t.ConfirmTransfer, entity.BankTransferStatusConfirmed, t.Now); err != nil {
			return err
		}
	}

	return tx.Commit()
}
