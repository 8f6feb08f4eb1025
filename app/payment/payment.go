package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

type ResultType string

const (
	ResultTypeSuccess  ResultType = "success"
	ResultTypeRedirect ResultType = "redirect"
	ResultTypeFailure  ResultType = "failure"
)

// Result is the outcome of a gateway call. TransactionID carries the gateway
// order, capture or subscription id depending on the call.
type Result struct {
	Type          ResultType
	TransactionID string
	PaymentURL    string
	Status        string
	Error         string
}

var (
	ErrGatewayDisabled = errors.New("payment gateway is disabled")
	ErrGatewayRejected = errors.New("payment gateway rejected the request")
	ErrGatewayFailure  = errors.New("payment gateway request failed")
)

type OrderRequest struct {
	ReferenceID string
	Amount      decimal.Decimal
	Currency    string
	Description string
	CustomID    string
}

type SubscriptionRequest struct {
	PlanID    string
	CustomID  string
	ReturnURL string
	CancelURL string
}

type Subscription struct {
	ID       string
	Status   string
	PlanID   string
	CustomID string
}

type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (Result, error)
	CaptureOrder(ctx context.Context, orderID string) (Result, error)
	CreateSubscription(ctx context.Context, req SubscriptionRequest) (Result, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID, reason string) error
	VerifyNotification(ctx context.Context, payload []byte) (bool, error)
}
