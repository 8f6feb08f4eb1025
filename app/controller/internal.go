package controller

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-memberships/app/dto"
	"github.com/vibast-solutions/ms-go-memberships/app/factory"
	"github.com/vibast-solutions/ms-go-memberships/app/mapper"
	"github.com/vibast-solutions/ms-go-memberships/app/service"
	"github.com/vibast-solutions/ms-go-memberships/app/types"
)

// InternalController serves operator and service-to-service routes. It is
// mounted behind internal service authentication.
type InternalController struct {
	catalog       *service.CatalogService
	ledger        *service.LedgerService
	checkout      *service.CheckoutService
	bankTransfers *service.BankTransferService
	expiries      *service.ExpiryService
	now           func() time.Time
	logger        logrus.FieldLogger
}

func NewInternalController(
	catalog *service.CatalogService,
	ledger *service.LedgerService,
	checkout *service.CheckoutService,
	bankTransfers *service.BankTransferService,
	expiries *service.ExpiryService,
) *InternalController {
	return &InternalController{
		catalog:       catalog,
		ledger:        ledger,
		checkout:      checkout,
		bankTransfers: bankTransfers,
		expiries:      expiries,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        factory.NewModuleLogger("internal-controller"),
	}
}

func (c *InternalController) ListBankTransfers(ctx echo.Context) error {
	req, err := types.NewListBankTransfersRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid query params")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.bankTransfers.List(ctx.Request().Context(), req.GetStatus())
	if err != nil {
		return serviceError(ctx, c.logger, "List bank transfers", err)
	}
	return ctx.JSON(http.StatusOK, mapper.BankTransfersToResponse(items))
}

func (c *InternalController) ConfirmBankTransfer(ctx echo.Context) error {
	req, err := types.NewBankTransferRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid bank transfer id")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.bankTransfers.Confirm(ctx.Request().Context(), req.GetId())
	if err != nil {
		return serviceError(ctx, c.logger, "Confirm bank transfer", err)
	}
	return ctx.JSON(http.StatusOK, &dto.ConfirmBankTransferResponse{
		Message:    "Bank transfer confirmed successfully",
		Transition: string(result.Kind),
		Membership: mapper.MembershipToResponse(result.Membership, c.now()),
	})
}

func (c *InternalController) RejectBankTransfer(ctx echo.Context) error {
	req, err := types.NewBankTransferRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid bank transfer id")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	transfer, err := c.bankTransfers.Reject(ctx.Request().Context(), req.GetId())
	if err != nil {
		return serviceError(ctx, c.logger, "Reject bank transfer", err)
	}
	return ctx.JSON(http.StatusOK, mapper.BankTransferToResponse(transfer))
}

func (c *InternalController) SweepExpiries(ctx echo.Context) error {
	result, err := c.expiries.SweepExpiries(ctx.Request().Context())
	if err != nil {
		return serviceError(ctx, c.logger, "Sweep expiries", err)
	}
	return ctx.JSON(http.StatusOK, mapper.SweepToResponse(result))
}

func (c *InternalController) AbandonPendingOrders(ctx echo.Context) error {
	abandoned, err := c.checkout.AbandonStalePendingOrders(ctx.Request().Context())
	if err != nil {
		return serviceError(ctx, c.logger, "Abandon pending orders", err)
	}
	return ctx.JSON(http.StatusOK, &dto.AbandonResponse{Abandoned: abandoned})
}

func (c *InternalController) RefreshCatalog(ctx echo.Context) error {
	c.catalog.Invalidate()
	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Catalog cache cleared"})
}

func (c *InternalController) GetMembership(ctx echo.Context) error {
	req := &types.GetMembershipRequest{SubscriberID: strings.TrimSpace(ctx.Param("subscriber_id"))}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.ledger.GetMembership(ctx.Request().Context(), req.GetSubscriberId())
	if err != nil {
		return serviceError(ctx, c.logger, "Get membership", err)
	}
	return ctx.JSON(http.StatusOK, &dto.MembershipEnvelopeResponse{Membership: mapper.MembershipToResponse(item, c.now())})
}

func (c *InternalController) CancelMembership(ctx echo.Context) error {
	var req types.InternalCancelRequest
	if err := ctx.Bind(&req); err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	req.SubscriberID = strings.TrimSpace(ctx.Param("subscriber_id"))
	req.Reason = strings.TrimSpace(req.Reason)
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.checkout.CancelSubscriber(ctx.Request().Context(), req.GetSubscriberId(), req.GetReason())
	if err != nil {
		return serviceError(ctx, c.logger, "Cancel membership", err)
	}
	return ctx.JSON(http.StatusOK, &dto.MessageWithMembershipResponse{
		Message:    "Membership cancelled successfully",
		Membership: mapper.MembershipToResponse(item, c.now()),
	})
}

func (c *InternalController) ConsumeQuota(ctx echo.Context) error {
	req, err := types.NewConsumeQuotaRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.ledger.ConsumeQuota(ctx.Request().Context(), req.GetSubscriberId(), req.GetProperties(), req.GetFeatured())
	if err != nil {
		return serviceError(ctx, c.logger, "Consume quota", err)
	}
	return ctx.JSON(http.StatusOK, &dto.MembershipEnvelopeResponse{Membership: mapper.MembershipToResponse(item, c.now())})
}
