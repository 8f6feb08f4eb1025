package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-memberships/app/dto"
	"github.com/vibast-solutions/ms-go-memberships/app/mapper"
	"github.com/vibast-solutions/ms-go-memberships/app/service"
	"github.com/vibast-solutions/ms-go-memberships/app/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type Server struct {
	types.UnimplementedMembershipsServiceServer
	catalog       *service.CatalogService
	ledger        *service.LedgerService
	checkout      *service.CheckoutService
	bankTransfers *service.BankTransferService
	expiries      *service.ExpiryService
	calculator    *service.EntitlementCalculator
	now           func() time.Time
}

func NewServer(
	catalog *service.CatalogService,
	ledger *service.LedgerService,
	checkout *service.CheckoutService,
	bankTransfers *service.BankTransferService,
	expiries *service.ExpiryService,
	calculator *service.EntitlementCalculator,
) *Server {
	return &Server{
		catalog:       catalog,
		ledger:        ledger,
		checkout:      checkout,
		bankTransfers: bankTransfers,
		expiries:      expiries,
		calculator:    calculator,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *Server) GetMembership(ctx context.Context, req *types.GetMembershipRequest) (*structpb.Struct, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.ledger.GetMembership(ctx, req.GetSubscriberId())
	if err != nil {
		return nil, statusError(ctx, "Get membership", err)
	}
	return reply(&dto.MembershipEnvelopeResponse{Membership: mapper.MembershipToResponse(item, s.now())})
}

func (s *Server) CancelMembership(ctx context.Context, req *types.InternalCancelRequest) (*structpb.Struct, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.checkout.CancelSubscriber(ctx, req.GetSubscriberId(), req.GetReason())
	if err != nil {
		return nil, statusError(ctx, "Cancel membership", err)
	}
	return reply(&dto.MessageWithMembershipResponse{
		Message:    "Membership cancelled successfully",
		Membership: mapper.MembershipToResponse(item, s.now()),
	})
}

func (s *Server) ConfirmBankTransfer(ctx context.Context, req *types.BankTransferRequest) (*structpb.Struct, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := s.bankTransfers.Confirm(ctx, req.GetId())
	if err != nil {
		return nil, statusError(ctx, "Confirm bank transfer", err)
	}
	return reply(&dto.ConfirmBankTransferResponse{
		Message:    "Bank transfer confirmed successfully",
		Transition: string(result.Kind),
		Membership: mapper.MembershipToResponse(result.Membership, s.now()),
	})
}

func (s *Server) ListPackages(ctx context.Context, _ *types.ListPackagesRequest) (*structpb.Struct, error) {
	items, err := s.catalog.ListPackages(ctx)
	if err != nil {
		return nil, statusError(ctx, "List packages", err)
	}
	resp := mapper.PackagesToResponse(items, s.calculator)
	return reply(&resp)
}

func (s *Server) SweepExpiries(ctx context.Context, _ *types.SweepExpiriesRequest) (*structpb.Struct, error) {
	result, err := s.expiries.SweepExpiries(ctx)
	if err != nil {
		return nil, statusError(ctx, "Sweep expiries", err)
	}
	resp := mapper.SweepToResponse(result)
	return reply(&resp)
}

func (s *Server) ConsumeQuota(ctx context.Context, req *types.ConsumeQuotaRequest) (*structpb.Struct, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.ledger.ConsumeQuota(ctx, req.GetSubscriberId(), req.GetProperties(), req.GetFeatured())
	if err != nil {
		return nil, statusError(ctx, "Consume quota", err)
	}
	return reply(&dto.MembershipEnvelopeResponse{Membership: mapper.MembershipToResponse(item, s.now())})
}

func statusError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrInvalidState):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrGateway):
		loggerWithContext(ctx).WithError(err).Warn(op + " failed at the payment gateway")
		return status.Error(codes.Unavailable, service.GatewayMessage(err))
	default:
		loggerWithContext(ctx).WithError(err).Error(op + " failed")
		return status.Error(codes.Internal, "internal server error")
	}
}

func reply(v interface{}) (*structpb.Struct, error) {
	out, err := types.ToStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}
