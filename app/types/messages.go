package types

type GetPackageRequest struct {
	PackageID uint64 `json:"package_id" validate:"required"`
}

func (r *GetPackageRequest) GetPackageId() uint64 { return r.PackageID }

type ListPackagesRequest struct{}

type NonceRequest struct {
	Action string `json:"action" validate:"required,oneof=paypal_checkout paypal_recurring bank_transfer free_checkout cancel_membership"`
}

func (r *NonceRequest) GetAction() string { return r.Action }

type QuoteRequest struct {
	PackageID uint64 `json:"package_id" validate:"required"`
}

func (r *QuoteRequest) GetPackageId() uint64 { return r.PackageID }

type CreateOrderRequest struct {
	MembershipID uint64 `json:"membership_id" validate:"required"`
	Nonce        string `json:"nonce" validate:"required"`
}

func (r *CreateOrderRequest) GetMembershipId() uint64 { return r.MembershipID }
func (r *CreateOrderRequest) GetNonce() string        { return r.Nonce }

type CaptureOrderRequest struct {
	OrderID string `json:"order_id" validate:"required,max=64"`
}

func (r *CaptureOrderRequest) GetOrderId() string { return r.OrderID }

type CreateRecurringRequest struct {
	PackageID uint64 `json:"package_id" validate:"required"`
	Nonce     string `json:"nonce" validate:"required"`
}

func (r *CreateRecurringRequest) GetPackageId() uint64 { return r.PackageID }
func (r *CreateRecurringRequest) GetNonce() string     { return r.Nonce }

type ApproveRecurringRequest struct {
	SubscriptionID string `json:"subscription_id" validate:"required,max=64"`
	PackageID      uint64 `json:"package_id" validate:"required"`
}

func (r *ApproveRecurringRequest) GetSubscriptionId() string { return r.SubscriptionID }
func (r *ApproveRecurringRequest) GetPackageId() uint64      { return r.PackageID }

type SubmitBankTransferRequest struct {
	PackageID uint64 `json:"package_id" validate:"required"`
	Nonce     string `json:"nonce" validate:"required"`
	Reference string `json:"reference" validate:"required,max=191"`
}

func (r *SubmitBankTransferRequest) GetPackageId() uint64 { return r.PackageID }
func (r *SubmitBankTransferRequest) GetNonce() string     { return r.Nonce }
func (r *SubmitBankTransferRequest) GetReference() string { return r.Reference }

type FreeCheckoutRequest struct {
	PackageID uint64 `json:"package_id" validate:"required"`
	Nonce     string `json:"nonce" validate:"required"`
}

func (r *FreeCheckoutRequest) GetPackageId() uint64 { return r.PackageID }
func (r *FreeCheckoutRequest) GetNonce() string     { return r.Nonce }

type CancelMembershipRequest struct {
	Nonce string `json:"nonce" validate:"required"`
}

func (r *CancelMembershipRequest) GetNonce() string { return r.Nonce }

type ListBankTransfersRequest struct {
	Status string `json:"status" validate:"omitempty,oneof=pending confirmed rejected"`
}

func (r *ListBankTransfersRequest) GetStatus() string { return r.Status }

type BankTransferRequest struct {
	ID uint64 `json:"id" validate:"required"`
}

func (r *BankTransferRequest) GetId() uint64 { return r.ID }

type GetMembershipRequest struct {
	SubscriberID string `json:"subscriber_id" validate:"required,max=64"`
}

func (r *GetMembershipRequest) GetSubscriberId() string { return r.SubscriberID }

type InternalCancelRequest struct {
	SubscriberID string `json:"subscriber_id" validate:"required,max=64"`
	Reason       string `json:"reason" validate:"max=191"`
}

func (r *InternalCancelRequest) GetSubscriberId() string { return r.SubscriberID }
func (r *InternalCancelRequest) GetReason() string       { return r.Reason }

type ConsumeQuotaRequest struct {
	SubscriberID string `json:"subscriber_id" validate:"required,max=64"`
	Properties   int    `json:"properties"`
	Featured     int    `json:"featured"`
}

func (r *ConsumeQuotaRequest) GetSubscriberId() string { return r.SubscriberID }
func (r *ConsumeQuotaRequest) GetProperties() int      { return r.Properties }
func (r *ConsumeQuotaRequest) GetFeatured() int        { return r.Featured }

type SweepExpiriesRequest struct{}
