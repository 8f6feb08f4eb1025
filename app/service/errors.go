package service

import (
	"errors"
	"fmt"
)

// Error classes. Controllers map these to HTTP status codes and gRPC codes.
var (
	ErrValidation      = errors.New("invalid request")
	ErrUnauthenticated = errors.New("authentication required")
	ErrGateway         = errors.New("payment gateway error")
	ErrInvalidState    = errors.New("invalid membership state")
	ErrNotFound        = errors.New("not found")
)

var (
	ErrPackageNotFound         = fmt.Errorf("%w: package not found", ErrNotFound)
	ErrMembershipNotFound      = fmt.Errorf("%w: membership not found", ErrNotFound)
	ErrOrderNotFound           = fmt.Errorf("%w: order not found", ErrNotFound)
	ErrBankTransferNotFound    = fmt.Errorf("%w: bank transfer not found", ErrNotFound)
	ErrInvalidNonce            = fmt.Errorf("%w: invalid or expired nonce", ErrValidation)
	ErrZeroTotal               = fmt.Errorf("%w: nothing to pay, use free checkout", ErrValidation)
	ErrNotFree                 = fmt.Errorf("%w: package is not free for this subscriber", ErrValidation)
	ErrRecurringUnavailable    = fmt.Errorf("%w: recurring payment is not available for this package", ErrValidation)
	ErrPaymentMethodDisabled   = fmt.Errorf("%w: payment method is disabled", ErrValidation)
	ErrMembershipsDisabled     = fmt.Errorf("%w: memberships are disabled", ErrValidation)
	ErrQuotaExceeded           = fmt.Errorf("%w: quota exceeded", ErrValidation)
	ErrOrderOwnership          = fmt.Errorf("%w: order belongs to another subscriber", ErrValidation)
	ErrTransactionOwnership    = fmt.Errorf("%w: transaction belongs to another subscriber", ErrValidation)
	ErrPackageMismatch         = fmt.Errorf("%w: package does not match the membership", ErrInvalidState)
	ErrMembershipAlreadyActive = fmt.Errorf("%w: membership already active", ErrInvalidState)
	ErrMembershipNotActive     = fmt.Errorf("%w: no active membership", ErrInvalidState)
	ErrBankTransferNotPending  = fmt.Errorf("%w: bank transfer already decided", ErrInvalidState)
	ErrOrderNotPending         = fmt.Errorf("%w: order is no longer pending", ErrInvalidState)
	ErrConcurrentUpdate        = fmt.Errorf("%w: membership changed concurrently", ErrInvalidState)
	ErrPaymentNotCompleted     = fmt.Errorf("%w: payment not completed", ErrGateway)
	ErrSubscriptionNotActive   = fmt.Errorf("%w: gateway subscription is not active", ErrGateway)
	ErrNotificationUnverified  = fmt.Errorf("%w: notification could not be verified", ErrUnauthenticated)
)

// GatewayMessage is the client-facing text for a gateway failure. Gateway
// response details stay in the logs.
func GatewayMessage(err error) string {
	for _, known := range []error{ErrPaymentNotCompleted, ErrSubscriptionNotActive} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return ErrGateway.Error()
}
