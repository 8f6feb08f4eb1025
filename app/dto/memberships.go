package dto

type PackageResponse struct {
	ID                 uint64 `json:"id"`
	Title              string `json:"title"`
	Price              string `json:"price"`
	FormattedPrice     string `json:"formatted_price"`
	Duration           int    `json:"duration"`
	DurationUnit       string `json:"duration_unit"`
	DurationDays       int    `json:"duration_days"`
	PropertyQuota      int    `json:"property_quota"`
	FeaturedQuota      int    `json:"featured_quota"`
	Popular            bool   `json:"popular"`
	RecurringAvailable bool   `json:"recurring_available"`
}

type ListPackagesResponse struct {
	Packages []PackageResponse `json:"packages"`
}

type MembershipResponse struct {
	SubscriberID          string  `json:"subscriber_id"`
	Email                 string  `json:"email,omitempty"`
	PackageID             uint64  `json:"package_id"`
	PropertyQuota         int     `json:"property_quota"`
	FeaturedQuota         int     `json:"featured_quota"`
	PropertyUsage         int     `json:"property_usage"`
	FeaturedUsage         int     `json:"featured_usage"`
	PropertiesLeft        int     `json:"properties_left"`
	FeaturedLeft          int     `json:"featured_left"`
	DueAt                 string  `json:"due_at"`
	RemainingDays         int     `json:"remaining_days"`
	PaymentMethod         string  `json:"payment_method"`
	Recurring             bool    `json:"recurring"`
	GatewaySubscriptionID *string `json:"gateway_subscription_id,omitempty"`
	CreatedAt             string  `json:"created_at"`
	UpdatedAt             string  `json:"updated_at"`
}

type ReceiptResponse struct {
	ID            uint64 `json:"id"`
	PackageID     uint64 `json:"package_id"`
	PaymentMethod string `json:"payment_method"`
	TransactionID string `json:"transaction_id"`
	Amount        string `json:"amount"`
	Credit        string `json:"credit"`
	Currency      string `json:"currency"`
	Recurring     bool   `json:"recurring"`
	CreatedAt     string `json:"created_at"`
}

type MembershipEnvelopeResponse struct {
	Membership *MembershipResponse `json:"membership"`
	Receipts   []ReceiptResponse   `json:"receipts,omitempty"`
}

type MessageWithMembershipResponse struct {
	Message    string              `json:"message"`
	Membership *MembershipResponse `json:"membership,omitempty"`
}

type NonceResponse struct {
	Action    string `json:"action"`
	Nonce     string `json:"nonce"`
	ExpiresAt string `json:"expires_at"`
}

type QuoteResponse struct {
	Package            PackageResponse `json:"package"`
	Price              string          `json:"price"`
	Credit             string          `json:"credit"`
	Total              string          `json:"total"`
	Currency           string          `json:"currency"`
	FormattedTotal     string          `json:"formatted_total"`
	RecurringAvailable bool            `json:"recurring_available"`
}

// CreateOrderResponse keeps the success/message envelope the checkout page
// scripts expect.
type CreateOrderResponse struct {
	Success    bool   `json:"success"`
	OrderID    string `json:"order_id,omitempty"`
	ApproveURL string `json:"approve_url,omitempty"`
	Message    string `json:"message,omitempty"`
}

type CreateRecurringResponse struct {
	Success        bool   `json:"success"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	ApproveURL     string `json:"approve_url,omitempty"`
	Message        string `json:"message,omitempty"`
}

type RedirectResponse struct {
	Success     bool                `json:"success"`
	RedirectURL string              `json:"redirect_url"`
	Transition  string              `json:"transition,omitempty"`
	Replayed    bool                `json:"replayed,omitempty"`
	Membership  *MembershipResponse `json:"membership,omitempty"`
}

type BankTransferResponse struct {
	ID           uint64 `json:"id"`
	SubscriberID string `json:"subscriber_id"`
	Email        string `json:"email,omitempty"`
	PackageID    uint64 `json:"package_id"`
	Reference    string `json:"reference"`
	Amount       string `json:"amount"`
	Credit       string `json:"credit"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type ListBankTransfersResponse struct {
	BankTransfers []BankTransferResponse `json:"bank_transfers"`
}

type ConfirmBankTransferResponse struct {
	Message    string              `json:"message"`
	Transition string              `json:"transition"`
	Membership *MembershipResponse `json:"membership,omitempty"`
}

type SweepResponse struct {
	Expired int `json:"expired"`
	Stale   int `json:"stale"`
	Failed  int `json:"failed"`
}

type AbandonResponse struct {
	Abandoned int `json:"abandoned"`
}
