package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// OrchestratorServiceServer is implemented by the orchestrator.
type OrchestratorServiceServer interface {
	NotifyTaskEnd(context.Context, *TaskEndNotification) (*TaskEndResponse, error)
	HealthCheck(context.Context, *HealthCheckRequest) (*HealthCheckResponse, error)
}

// OrchestratorServiceClient is implemented by a worker's connection to the
// orchestrator.
type OrchestratorServiceClient interface {
	NotifyTaskEnd(ctx context.Context, in *TaskEndNotification, opts ...grpc.CallOption) (*TaskEndResponse, error)
	HealthCheck(ctx context.Context, in *HealthCheckRequest, opts ...grpc.CallOption) (*HealthCheckResponse, error)
}

type orchestratorServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewOrchestratorServiceClient wraps a ClientConn with the typed
// OrchestratorService API, forcing every call onto the JSON codec.
func NewOrchestratorServiceClient(cc grpc.ClientConnInterface) OrchestratorServiceClient {
	return &orchestratorServiceClient{cc: cc}
}

func (c *orchestratorServiceClient) NotifyTaskEnd(ctx context.Context, in *TaskEndNotification, opts ...grpc.CallOption) (*TaskEndResponse, error) {
	out := new(TaskEndResponse)
	if err := c.cc.Invoke(ctx, "/taskorch.OrchestratorService/NotifyTaskEnd", in, out, withJSONCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orchestratorServiceClient) HealthCheck(ctx context.Context, in *HealthCheckRequest, opts ...grpc.CallOption) (*HealthCheckResponse, error) {
	out := new(HealthCheckResponse)
	if err := c.cc.Invoke(ctx, "/taskorch.OrchestratorService/HealthCheck", in, out, withJSONCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func _OrchestratorService_NotifyTaskEnd_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(TaskEndNotification)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrchestratorServiceServer).NotifyTaskEnd(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/taskorch.OrchestratorService/NotifyTaskEnd"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrchestratorServiceServer).NotifyTaskEnd(ctx, req.(*TaskEndNotification))
	}
	return interceptor(ctx, in, info, handler)
}

func _OrchestratorService_HealthCheck_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(HealthCheckRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrchestratorServiceServer).HealthCheck(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/taskorch.OrchestratorService/HealthCheck"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrchestratorServiceServer).HealthCheck(ctx, req.(*HealthCheckRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// OrchestratorServiceDesc is the grpc.ServiceDesc for OrchestratorService.
var OrchestratorServiceDesc = grpc.ServiceDesc{
	ServiceName: "taskorch.OrchestratorService",
	HandlerType: (*OrchestratorServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "NotifyTaskEnd", Handler: _OrchestratorService_NotifyTaskEnd_Handler},
		{MethodName: "HealthCheck", Handler: _OrchestratorService_HealthCheck_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "taskorch/orchestrator_service.proto",
}

// RegisterOrchestratorServiceServer registers an OrchestratorServiceServer
// implementation on a gRPC server.
func RegisterOrchestratorServiceServer(s grpc.ServiceRegistrar, srv OrchestratorServiceServer) {
	s.RegisterService(&OrchestratorServiceDesc, srv)
}

// Dial opens a plaintext connection to addr, forcing the JSON codec as the
// default call option. The channel is unauthenticated per this protocol's
// non-goal on RPC authentication.
func Dial(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecureCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
}
