package controller

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-memberships/app/dto"
	"github.com/vibast-solutions/ms-go-memberships/app/factory"
	"github.com/vibast-solutions/ms-go-memberships/app/mapper"
	"github.com/vibast-solutions/ms-go-memberships/app/service"
	"github.com/vibast-solutions/ms-go-memberships/app/types"
)

// MembershipController serves the public catalog and the subscriber-facing
// membership and checkout routes.
type MembershipController struct {
	catalog       *service.CatalogService
	ledger        *service.LedgerService
	checkout      *service.CheckoutService
	bankTransfers *service.BankTransferService
	calculator    *service.EntitlementCalculator
	now           func() time.Time
	logger        logrus.FieldLogger
}

func NewMembershipController(
	catalog *service.CatalogService,
	ledger *service.LedgerService,
	checkout *service.CheckoutService,
	bankTransfers *service.BankTransferService,
	calculator *service.EntitlementCalculator,
) *MembershipController {
	return &MembershipController{
		catalog:       catalog,
		ledger:        ledger,
		checkout:      checkout,
		bankTransfers: bankTransfers,
		calculator:    calculator,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        factory.NewModuleLogger("memberships-controller"),
	}
}

func (c *MembershipController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *MembershipController) ListPackages(ctx echo.Context) error {
	items, err := c.catalog.ListPackages(ctx.Request().Context())
	if err != nil {
		return serviceError(ctx, c.logger, "List packages", err)
	}
	return ctx.JSON(http.StatusOK, mapper.PackagesToResponse(items, c.calculator))
}

func (c *MembershipController) GetPackage(ctx echo.Context) error {
	req, err := types.NewGetPackageRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid package id")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.catalog.GetPackage(ctx.Request().Context(), req.GetPackageId())
	if err != nil {
		return serviceError(ctx, c.logger, "Get package", err)
	}
	return ctx.JSON(http.StatusOK, mapper.PackageToResponse(item, c.calculator.FormatPrice(item.Price)))
}

func (c *MembershipController) GetMembership(ctx echo.Context) error {
	subscriber, ok := currentSubscriber(ctx)
	if !ok {
		return writeError(ctx, http.StatusUnauthorized, "authentication required")
	}

	item, err := c.ledger.GetMembership(ctx.Request().Context(), subscriber.ID)
	if err != nil {
		return serviceError(ctx, c.logger, "Get membership", err)
	}
	receipts, err := c.ledger.ListReceipts(ctx.Request().Context(), subscriber.ID)
	if err != nil {
		return serviceError(ctx, c.logger, "List receipts", err)
	}

	return ctx.JSON(http.StatusOK, &dto.MembershipEnvelopeResponse{
		Membership: mapper.MembershipToResponse(item, c.now()),
		Receipts:   mapper.ReceiptsToResponse(receipts),
	})
}

func (c *MembershipController) CancelMembership(ctx echo.Context) error {
	subscriber, ok := currentSubscriber(ctx)
	if !ok {
		return writeError(ctx, http.StatusUnauthorized, "authentication required")
	}
	req, err := types.NewCancelMembershipRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.checkout.CancelMembership(ctx.Request().Context(), subscriber, req)
	if err != nil {
		return serviceError(ctx, c.logger, "Cancel membership", err)
	}
	return ctx.JSON(http.StatusOK, &dto.MessageWithMembershipResponse{
		Message:    "Membership cancelled successfully",
		Membership: mapper.MembershipToResponse(item, c.now()),
	})
}

func (c *MembershipController) IssueNonce(ctx echo.Context) error {
	subscriber, ok := currentSubscriber(ctx)
	if !ok {
		return writeError(ctx, http.StatusUnauthorized, "authentication required")
	}
	req, err := types.NewNonceRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid query params")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	nonce, expiresAt, err := c.checkout.IssueNonce(subscriber, req.GetAction())
	if err != nil {
		return serviceError(ctx, c.logger, "Issue nonce", err)
	}
	return ctx.JSON(http.StatusOK, &dto.NonceResponse{
		Action:    req.GetAction(),
		Nonce:     nonce,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}

func (c *MembershipController) Quote(ctx echo.Context) error {
	subscriber, ok := currentSubscriber(ctx)
	if !ok {
		return writeError(ctx, http.StatusUnauthorized, "authentication required")
	}
	req, err := types.NewQuoteRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid query params")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	quote, err := c.checkout.Quote(ctx.Request().Context(), subscriber, req.GetPackageId())
	if err != nil {
		return serviceError(ctx, c.logger, "Quote", err)
	}
	return ctx.JSON(http.StatusOK, mapper.QuoteToResponse(quote, c.calculator))
}

func (c *MembershipController) CreateOrder(ctx echo.Context) error {
	subscriber, ok := currentSubscriber(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, &dto.CreateOrderResponse{Message: "authentication required"})
	}
	req, err := types.NewCreateOrderRequestFromContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, &dto.CreateOrderResponse{Message: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, &dto.CreateOrderResponse{Message: err.Error()})
	}

	result, err := c.checkout.CreateOrder(ctx.Request().Context(), subscriber, req)
	if err != nil {
		code, message := statusFor(factory.LoggerWithContext(c.logger, ctx), "Create order", err)
		return ctx.JSON(code, &dto.CreateOrderResponse{Message: message})
	}
	return ctx.JSON(http.StatusOK, &dto.CreateOrderResponse{
		Success:    true,
		OrderID:    result.OrderID,
		ApproveURL: result.PaymentURL,
	})
}

func (c *MembershipController) CaptureOrder(ctx echo.Context) error {
	subscriber, ok := currentSubscriber(ctx)
	if !ok {
		return writeError(ctx, http.StatusUnauthorized, "authentication required")
	}
	req, err := types.NewCaptureOrderRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.checkout.CaptureOrder(ctx.Request().Context(), subscriber, req)
	if err != nil {
		return serviceError(ctx, c.logger, "Capture order", err)
	}
	return ctx.JSON(http.StatusOK, mapper.CheckoutToResponse(result, c.now()))
}

func (c *MembershipController) CreateRecurring(ctx echo.Context) error {
	subscriber, ok := currentSubscriber(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, &dto.CreateRecurringResponse{Message: "authentication required"})
	}
	req, err := types.NewCreateRecurringRequestFromContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, &dto.CreateRecurringResponse{Message: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, &dto.CreateRecurringResponse{Message: err.Error()})
	}

	result, err := c.checkout.CreateRecurring(ctx.Request().Context(), subscriber, req)
	if err != nil {
		code, message := statusFor(factory.LoggerWithContext(c.logger, ctx), "Create recurring subscription", err)
		return ctx.JSON(code, &dto.CreateRecurringResponse{Message: message})
	}
	return ctx.JSON(http.StatusOK, &dto.CreateRecurringResponse{
		Success:        true,
		SubscriptionID: result.SubscriptionID,
		ApproveURL:     result.ApproveURL,
	})
}

func (c *MembershipController) ApproveRecurring(ctx echo.Context) error {
	subscriber, ok := currentSubscriber(ctx)
	if !ok {
		return writeError(ctx, http.StatusUnauthorized, "authentication required")
	}
	req, err := types.NewApproveRecurringRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.checkout.ApproveRecurring(ctx.Request().Context(), subscriber, req)
	if err != nil {
		return serviceError(ctx, c.logger, "Approve recurring subscription", err)
	}
	return ctx.JSON(http.StatusOK, mapper.CheckoutToResponse(result, c.now()))
}

func (c *MembershipController) SubmitBankTransfer(ctx echo.Context) error {
	subscriber, ok := currentSubscriber(ctx)
	if !ok {
		return writeError(ctx, http.StatusUnauthorized, "authentication required")
	}
	req, err := types.NewSubmitBankTransferRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	transfer, err := c.bankTransfers.Submit(ctx.Request().Context(), subscriber, req)
	if err != nil {
		return serviceError(ctx, c.logger, "Submit bank transfer", err)
	}
	return ctx.JSON(http.StatusAccepted, mapper.BankTransferToResponse(transfer))
}

func (c *MembershipController) FreeCheckout(ctx echo.Context) error {
	subscriber, ok := currentSubscriber(ctx)
	if !ok {
		return writeError(ctx, http.StatusUnauthorized, "authentication required")
	}
	req, err := types.NewFreeCheckoutRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.checkout.CheckoutFree(ctx.Request().Context(), subscriber, req)
	if err != nil {
		return serviceError(ctx, c.logger, "Free checkout", err)
	}
	return ctx.JSON(http.StatusOK, mapper.CheckoutToResponse(result, c.now()))
}
