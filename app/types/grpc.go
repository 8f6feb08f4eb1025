package types

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const MembershipsServiceName = "memberships.v1.MembershipsService"

const (
	MembershipsService_GetMembership_FullMethodName       = "/" + MembershipsServiceName + "/GetMembership"
	MembershipsService_CancelMembership_FullMethodName    = "/" + MembershipsServiceName + "/CancelMembership"
	MembershipsService_ConfirmBankTransfer_FullMethodName = "/" + MembershipsServiceName + "/ConfirmBankTransfer"
	MembershipsService_ListPackages_FullMethodName        = "/" + MembershipsServiceName + "/ListPackages"
	MembershipsService_SweepExpiries_FullMethodName       = "/" + MembershipsServiceName + "/SweepExpiries"
	MembershipsService_ConsumeQuota_FullMethodName        = "/" + MembershipsServiceName + "/ConsumeQuota"
)

// MembershipsServiceServer is served over gRPC with google.protobuf.Struct
// payloads on the wire. Requests are decoded into the same structs the HTTP
// layer binds.
type MembershipsServiceServer interface {
	GetMembership(context.Context, *GetMembershipRequest) (*structpb.Struct, error)
	CancelMembership(context.Context, *InternalCancelRequest) (*structpb.Struct, error)
	ConfirmBankTransfer(context.Context, *BankTransferRequest) (*structpb.Struct, error)
	ListPackages(context.Context, *ListPackagesRequest) (*structpb.Struct, error)
	SweepExpiries(context.Context, *SweepExpiriesRequest) (*structpb.Struct, error)
	ConsumeQuota(context.Context, *ConsumeQuotaRequest) (*structpb.Struct, error)
}

type UnimplementedMembershipsServiceServer struct{}

func (UnimplementedMembershipsServiceServer) GetMembership(context.Context, *GetMembershipRequest) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetMembership not implemented")
}

func (UnimplementedMembershipsServiceServer) CancelMembership(context.Context, *InternalCancelRequest) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method CancelMembership not implemented")
}

func (UnimplementedMembershipsServiceServer) ConfirmBankTransfer(context.Context, *BankTransferRequest) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ConfirmBankTransfer not implemented")
}

func (UnimplementedMembershipsServiceServer) ListPackages(context.Context, *ListPackagesRequest) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListPackages not implemented")
}

func (UnimplementedMembershipsServiceServer) SweepExpiries(context.Context, *SweepExpiriesRequest) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method SweepExpiries not implemented")
}

func (UnimplementedMembershipsServiceServer) ConsumeQuota(context.Context, *ConsumeQuotaRequest) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ConsumeQuota not implemented")
}

func RegisterMembershipsServiceServer(s grpc.ServiceRegistrar, srv MembershipsServiceServer) {
	s.RegisterService(&MembershipsService_ServiceDesc, srv)
}

// ToStruct converts a JSON-serializable value into a Struct payload.
func ToStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}

// FromStruct decodes a Struct payload into out.
func FromStruct(in *structpb.Struct, out interface{}) error {
	if in == nil {
		return nil
	}
	raw, err := json.Marshal(in.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func unaryHandler[Req any](
	method string,
	call func(MembershipsServiceServer, context.Context, *Req) (*structpb.Struct, error),
) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		req := new(Req)
		if err := FromStruct(in, req); err != nil {
			return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("invalid request payload: %v", err))
		}
		if interceptor == nil {
			return call(srv.(MembershipsServiceServer), ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, r interface{}) (interface{}, error) {
			return call(srv.(MembershipsServiceServer), ctx, r.(*Req))
		}
		return interceptor(ctx, req, info, handler)
	}
}

var MembershipsService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: MembershipsServiceName,
	HandlerType: (*MembershipsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetMembership",
			Handler: unaryHandler(MembershipsService_GetMembership_FullMethodName, func(s MembershipsServiceServer, ctx context.Context, r *GetMembershipRequest) (*structpb.Struct, error) {
				return s.GetMembership(ctx, r)
			}),
		},
		{
			MethodName: "CancelMembership",
			Handler: unaryHandler(MembershipsService_CancelMembership_FullMethodName, func(s MembershipsServiceServer, ctx context.Context, r *InternalCancelRequest) (*structpb.Struct, error) {
				return s.CancelMembership(ctx, r)
			}),
		},
		{
			MethodName: "ConfirmBankTransfer",
			Handler: unaryHandler(MembershipsService_ConfirmBankTransfer_FullMethodName, func(s MembershipsServiceServer, ctx context.Context, r *BankTransferRequest) (*structpb.Struct, error) {
				return s.ConfirmBankTransfer(ctx, r)
			}),
		},
		{
			MethodName: "ListPackages",
			Handler: unaryHandler(MembershipsService_ListPackages_FullMethodName, func(s MembershipsServiceServer, ctx context.Context, r *ListPackagesRequest) (*structpb.Struct, error) {
				return s.ListPackages(ctx, r)
			}),
		},
		{
			MethodName: "SweepExpiries",
			Handler: unaryHandler(MembershipsService_SweepExpiries_FullMethodName, func(s MembershipsServiceServer, ctx context.Context, r *SweepExpiriesRequest) (*structpb.Struct, error) {
				return s.SweepExpiries(ctx, r)
			}),
		},
		{
			MethodName: "ConsumeQuota",
			Handler: unaryHandler(MembershipsService_ConsumeQuota_FullMethodName, func(s MembershipsServiceServer, ctx context.Context, r *ConsumeQuotaRequest) (*structpb.Struct, error) {
				return s.ConsumeQuota(ctx, r)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "memberships/v1/memberships.proto",
}

// MembershipsServiceClient is the caller side of MembershipsService.
type MembershipsServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewMembershipsServiceClient(cc grpc.ClientConnInterface) *MembershipsServiceClient {
	return &MembershipsServiceClient{cc: cc}
}

// Invoke sends req to the named method and decodes the reply into out.
func (c *MembershipsServiceClient) Invoke(ctx context.Context, method string, req interface{}, out interface{}, opts ...grpc.CallOption) error {
	in, err := ToStruct(req)
	if err != nil {
		return err
	}
	reply := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, reply, opts...); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return FromStruct(reply, out)
}
