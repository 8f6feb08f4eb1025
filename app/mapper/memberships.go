package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-memberships/app/dto"
	"github.com/vibast-solutions/ms-go-memberships/app/entity"
	"github.com/vibast-solutions/ms-go-memberships/app/service"
)

func PackageToResponse(item *entity.Package, formatted string) dto.PackageResponse {
	return dto.PackageResponse{
		ID:                 item.ID,
		Title:              item.Title,
		Price:              item.Price.StringFixed(2),
		FormattedPrice:     formatted,
		Duration:           item.Duration,
		DurationUnit:       entity.NormalizeDurationUnit(item.DurationUnit),
		DurationDays:       item.DurationDays(),
		PropertyQuota:      item.PropertyQuota,
		FeaturedQuota:      item.FeaturedQuota,
		Popular:            item.Popular,
		RecurringAvailable: item.IsRecurringCapable(),
	}
}

func PackagesToResponse(items []*entity.Package, calculator *service.EntitlementCalculator) dto.ListPackagesResponse {
	resp := dto.ListPackagesResponse{Packages: make([]dto.PackageResponse, 0, len(items))}
	for _, item := range items {
		resp.Packages = append(resp.Packages, PackageToResponse(item, calculator.FormatPrice(item.Price)))
	}
	return resp
}

func MembershipToResponse(item *entity.Membership, now time.Time) *dto.MembershipResponse {
	if item == nil {
		return nil
	}

	remaining := item.RemainingDays(now)
	if remaining < 0 {
		remaining = 0
	}
	return &dto.MembershipResponse{
		SubscriberID:          item.SubscriberID,
		Email:                 item.Email,
		PackageID:             item.PackageID,
		PropertyQuota:         item.PropertyQuota,
		FeaturedQuota:         item.FeaturedQuota,
		PropertyUsage:         item.PropertyUsage,
		FeaturedUsage:         item.FeaturedUsage,
		PropertiesLeft:        item.PropertiesLeft(),
		FeaturedLeft:          item.FeaturedLeft(),
		DueAt:                 item.DueAt.UTC().Format(time.RFC3339),
		RemainingDays:         remaining,
		PaymentMethod:         item.PaymentMethod,
		Recurring:             item.Recurring,
		GatewaySubscriptionID: item.GatewaySubscriptionID,
		CreatedAt:             item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:             item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func ReceiptsToResponse(items []*entity.Receipt) []dto.ReceiptResponse {
	result := make([]dto.ReceiptResponse, 0, len(items))
	for _, item := range items {
		result = append(result, dto.ReceiptResponse{
			ID:            item.ID,
			PackageID:     item.PackageID,
			PaymentMethod: item.PaymentMethod,
			TransactionID: item.TransactionID,
			Amount:        item.Amount.StringFixed(2),
			Credit:        item.Credit.StringFixed(2),
			Currency:      item.Currency,
			Recurring:     item.Recurring,
			CreatedAt:     item.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return result
}

func QuoteToResponse(quote *service.Quote, calculator *service.EntitlementCalculator) dto.QuoteResponse {
	return dto.QuoteResponse{
		Package:            PackageToResponse(quote.Package, calculator.FormatPrice(quote.Package.Price)),
		Price:              quote.Price.StringFixed(2),
		Credit:             quote.Credit.StringFixed(2),
		Total:              quote.Total.StringFixed(2),
		Currency:           quote.Currency,
		FormattedTotal:     quote.Formatted,
		RecurringAvailable: quote.RecurringAvailable,
	}
}

func CheckoutToResponse(result *service.CheckoutResult, now time.Time) dto.RedirectResponse {
	resp := dto.RedirectResponse{Success: true, RedirectURL: result.RedirectURL}
	if result.Transition != nil {
		resp.Transition = string(result.Transition.Kind)
		resp.Replayed = result.Transition.Replayed
		resp.Membership = MembershipToResponse(result.Transition.Membership, now)
	}
	return resp
}

func BankTransferToResponse(item *entity.BankTransfer) dto.BankTransferResponse {
	return dto.BankTransferResponse{
		ID:           item.ID,
		SubscriberID: item.SubscriberID,
		Email:        item.Email,
		PackageID:    item.PackageID,
		Reference:    item.Reference,
		Amount:       item.Amount.StringFixed(2),
		Credit:       item.Credit.StringFixed(2),
		Currency:     item.Currency,
		Status:       item.Status,
		CreatedAt:    item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func BankTransfersToResponse(items []*entity.BankTransfer) dto.ListBankTransfersResponse {
	resp := dto.ListBankTransfersResponse{BankTransfers: make([]dto.BankTransferResponse, 0, len(items))}
	for _, item := range items {
		resp.BankTransfers = append(resp.BankTransfers, BankTransferToResponse(item))
	}
	return resp
}

func SweepToResponse(result *service.SweepResult) dto.SweepResponse {
	return dto.SweepResponse{Expired: result.Expired, Stale: result.Stale, Failed: result.Failed}
}
