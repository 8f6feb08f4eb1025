package payment

import "context"

// DisabledGateway answers every call with ErrGatewayDisabled. It stands in for
// PayPal when the gateway is switched off in settings.
type DisabledGateway struct{}

func NewDisabledGateway() *DisabledGateway {
	return &DisabledGateway{}
}

func (g *DisabledGateway) CreateOrder(context.Context, OrderRequest) (Result, error) {
	return Result{Type: ResultTypeFailure, Error: ErrGatewayDisabled.Error()}, ErrGatewayDisabled
}

func (g *DisabledGateway) CaptureOrder(context.Context, string) (Result, error) {
	return Result{Type: ResultTypeFailure, Error: ErrGatewayDisabled.Error()}, ErrGatewayDisabled
}

func (g *DisabledGateway) CreateSubscription(context.Context, SubscriptionRequest) (Result, error) {
	return Result{Type: ResultTypeFailure, Error: ErrGatewayDisabled.Error()}, ErrGatewayDisabled
}

func (g *DisabledGateway) GetSubscription(context.Context, string) (*Subscription, error) {
	return nil, ErrGatewayDisabled
}

func (g *DisabledGateway) CancelSubscription(context.Context, string, string) error {
	return ErrGatewayDisabled
}

func (g *DisabledGateway) VerifyNotification(context.Context, []byte) (bool, error) {
	return false, ErrGatewayDisabled
}
