package types

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the validate tags and reports the first failure in
// terms of the JSON field name.
func validateStruct(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Errorf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Errorf("%s is invalid", fe.Field())
	}
}

func parseUintParam(raw string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
}

func NewGetPackageRequestFromContext(ctx echo.Context) (*GetPackageRequest, error) {
	id, err := parseUintParam(ctx.Param("id"))
	if err != nil {
		return nil, err
	}
	return &GetPackageRequest{PackageID: id}, nil
}

func (r *GetPackageRequest) Validate() error {
	return validateStruct(r)
}

func NewNonceRequestFromContext(ctx echo.Context) (*NonceRequest, error) {
	return &NonceRequest{Action: strings.TrimSpace(ctx.QueryParam("action"))}, nil
}

func (r *NonceRequest) Validate() error {
	return validateStruct(r)
}

func NewQuoteRequestFromContext(ctx echo.Context) (*QuoteRequest, error) {
	raw := strings.TrimSpace(ctx.QueryParam("package_id"))
	if raw == "" {
		return &QuoteRequest{}, nil
	}
	id, err := parseUintParam(raw)
	if err != nil {
		return nil, err
	}
	return &QuoteRequest{PackageID: id}, nil
}

func (r *QuoteRequest) Validate() error {
	return validateStruct(r)
}

func NewCreateOrderRequestFromContext(ctx echo.Context) (*CreateOrderRequest, error) {
	var body CreateOrderRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Nonce = strings.TrimSpace(body.Nonce)
	return &body, nil
}

func (r *CreateOrderRequest) Validate() error {
	return validateStruct(r)
}

func NewCaptureOrderRequestFromContext(ctx echo.Context) (*CaptureOrderRequest, error) {
	var body CaptureOrderRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.OrderID = strings.TrimSpace(body.OrderID)
	return &body, nil
}

func (r *CaptureOrderRequest) Validate() error {
	return validateStruct(r)
}

func NewCreateRecurringRequestFromContext(ctx echo.Context) (*CreateRecurringRequest, error) {
	var body CreateRecurringRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Nonce = strings.TrimSpace(body.Nonce)
	return &body, nil
}

func (r *CreateRecurringRequest) Validate() error {
	return validateStruct(r)
}

func NewApproveRecurringRequestFromContext(ctx echo.Context) (*ApproveRecurringRequest, error) {
	var body ApproveRecurringRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.SubscriptionID = strings.TrimSpace(body.SubscriptionID)
	return &body, nil
}

func (r *ApproveRecurringRequest) Validate() error {
	return validateStruct(r)
}

func NewSubmitBankTransferRequestFromContext(ctx echo.Context) (*SubmitBankTransferRequest, error) {
	var body SubmitBankTransferRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Nonce = strings.TrimSpace(body.Nonce)
	body.Reference = strings.TrimSpace(body.Reference)
	return &body, nil
}

func (r *SubmitBankTransferRequest) Validate() error {
	return validateStruct(r)
}

func NewFreeCheckoutRequestFromContext(ctx echo.Context) (*FreeCheckoutRequest, error) {
	var body FreeCheckoutRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Nonce = strings.TrimSpace(body.Nonce)
	return &body, nil
}

func (r *FreeCheckoutRequest) Validate() error {
	return validateStruct(r)
}

func NewCancelMembershipRequestFromContext(ctx echo.Context) (*CancelMembershipRequest, error) {
	var body CancelMembershipRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Nonce = strings.TrimSpace(body.Nonce)
	return &body, nil
}

func (r *CancelMembershipRequest) Validate() error {
	return validateStruct(r)
}

func NewListBankTransfersRequestFromContext(ctx echo.Context) (*ListBankTransfersRequest, error) {
	return &ListBankTransfersRequest{Status: strings.ToLower(strings.TrimSpace(ctx.QueryParam("status")))}, nil
}

func (r *ListBankTransfersRequest) Validate() error {
	return validateStruct(r)
}

func NewBankTransferRequestFromContext(ctx echo.Context) (*BankTransferRequest, error) {
	id, err := parseUintParam(ctx.Param("id"))
	if err != nil {
		return nil, err
	}
	return &BankTransferRequest{ID: id}, nil
}

func (r *BankTransferRequest) Validate() error {
	return validateStruct(r)
}

func NewConsumeQuotaRequestFromContext(ctx echo.Context) (*ConsumeQuotaRequest, error) {
	var body ConsumeQuotaRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.SubscriberID = strings.TrimSpace(ctx.Param("subscriber_id"))
	return &body, nil
}

func (r *ConsumeQuotaRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if r.Properties == 0 && r.Featured == 0 {
		return errors.New("at least one of properties or featured is required")
	}
	return nil
}

func (r *GetMembershipRequest) Validate() error {
	return validateStruct(r)
}

func (r *InternalCancelRequest) Validate() error {
	return validateStruct(r)
}
