package nbi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "netdesign.v1.DesignService"

// Full method names.
const (
	GetSummaryMethod          = "/" + ServiceName + "/GetSummary"
	CheckConsistencyMethod    = "/" + ServiceName + "/CheckConsistency"
	SetLinkFailureStateMethod = "/" + ServiceName + "/SetLinkFailureState"
	SetNodeFailureStateMethod = "/" + ServiceName + "/SetNodeFailureState"
	AnalyzeSRGsMethod         = "/" + ServiceName + "/AnalyzeSRGs"
	SaveDesignMethod          = "/" + ServiceName + "/SaveDesign"
	LoadDesignMethod          = "/" + ServiceName + "/LoadDesign"
)

// DesignServiceServer is the server API of the design service. Messages are
// protobuf well-known types; structured payloads travel as Struct.
type DesignServiceServer interface {
	GetSummary(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	CheckConsistency(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SetLinkFailureState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetNodeFailureState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AnalyzeSRGs(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// SaveDesign takes the format name ("json", "yaml" or "ndz").
	SaveDesign(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	// LoadDesign reads the format from the x-design-format request header,
	// defaulting to JSON.
	LoadDesign(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
}

// DesignServiceDesc describes the design service for grpc.ServiceRegistrar.
var DesignServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DesignServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSummary", Handler: unaryHandler(GetSummaryMethod, DesignServiceServer.GetSummary)},
		{MethodName: "CheckConsistency", Handler: unaryHandler(CheckConsistencyMethod, DesignServiceServer.CheckConsistency)},
		{MethodName: "SetLinkFailureState", Handler: unaryHandler(SetLinkFailureStateMethod, DesignServiceServer.SetLinkFailureState)},
		{MethodName: "SetNodeFailureState", Handler: unaryHandler(SetNodeFailureStateMethod, DesignServiceServer.SetNodeFailureState)},
		{MethodName: "AnalyzeSRGs", Handler: unaryHandler(AnalyzeSRGsMethod, DesignServiceServer.AnalyzeSRGs)},
		{MethodName: "SaveDesign", Handler: unaryHandler(SaveDesignMethod, DesignServiceServer.SaveDesign)},
		{MethodName: "LoadDesign", Handler: unaryHandler(LoadDesignMethod, DesignServiceServer.LoadDesign)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "netdesign/v1/design_service.proto",
}

// RegisterDesignServiceServer registers srv on s.
func RegisterDesignServiceServer(s grpc.ServiceRegistrar, srv DesignServiceServer) {
	s.RegisterService(&DesignServiceDesc, srv)
}

func unaryHandler[Req, Resp any](fullMethod string, call func(DesignServiceServer, context.Context, *Req) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DesignServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(DesignServiceServer), ctx, req.(*Req))
		})
	}
}

// DesignServiceClient is the client API of the design service.
type DesignServiceClient interface {
	GetSummary(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	CheckConsistency(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	SetLinkFailureState(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	SetNodeFailureState(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	AnalyzeSRGs(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	SaveDesign(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	LoadDesign(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type designServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewDesignServiceClient returns a client bound to cc.
func NewDesignServiceClient(cc grpc.ClientConnInterface) DesignServiceClient {
	return &designServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *designServiceClient) GetSummary(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, GetSummaryMethod, in, opts)
}

func (c *designServiceClient) CheckConsistency(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, CheckConsistencyMethod, in, opts)
}

func (c *designServiceClient) SetLinkFailureState(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, SetLinkFailureStateMethod, in, opts)
}

func (c *designServiceClient) SetNodeFailureState(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, SetNodeFailureStateMethod, in, opts)
}

func (c *designServiceClient) AnalyzeSRGs(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, AnalyzeSRGsMethod, in, opts)
}

func (c *designServiceClient) SaveDesign(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return invoke[wrapperspb.BytesValue](ctx, c.cc, SaveDesignMethod, in, opts)
}

func (c *designServiceClient) LoadDesign(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, LoadDesignMethod, in, opts)
}
