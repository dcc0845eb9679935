package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// TaskServiceServer is implemented by task workers.
type TaskServiceServer interface {
	StartTask(context.Context, *StartTaskRequest) (*StartTaskResponse, error)
	StopTask(context.Context, *StopTaskRequest) (*StopTaskResponse, error)
	GetTaskStatus(context.Context, *TaskStatusRequest) (*TaskStatusResponse, error)
}

// TaskServiceClient is implemented by the orchestrator's connection to one
// worker.
type TaskServiceClient interface {
	StartTask(ctx context.Context, in *StartTaskRequest, opts ...grpc.CallOption) (*StartTaskResponse, error)
	StopTask(ctx context.Context, in *StopTaskRequest, opts ...grpc.CallOption) (*StopTaskResponse, error)
	GetTaskStatus(ctx context.Context, in *TaskStatusRequest, opts ...grpc.CallOption) (*TaskStatusResponse, error)
}

type taskServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewTaskServiceClient wraps a ClientConn with the typed TaskService API,
// forcing every call onto the JSON codec.
func NewTaskServiceClient(cc grpc.ClientConnInterface) TaskServiceClient {
	return &taskServiceClient{cc: cc}
}

func withJSONCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func (c *taskServiceClient) StartTask(ctx context.Context, in *StartTaskRequest, opts ...grpc.CallOption) (*StartTaskResponse, error) {
	out := new(StartTaskResponse)
	if err := c.cc.Invoke(ctx, "/taskorch.TaskService/StartTask", in, out, withJSONCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *taskServiceClient) StopTask(ctx context.Context, in *StopTaskRequest, opts ...grpc.CallOption) (*StopTaskResponse, error) {
	out := new(StopTaskResponse)
	if err := c.cc.Invoke(ctx, "/taskorch.TaskService/StopTask", in, out, withJSONCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *taskServiceClient) GetTaskStatus(ctx context.Context, in *TaskStatusRequest, opts ...grpc.CallOption) (*TaskStatusResponse, error) {
	out := new(TaskStatusResponse)
	if err := c.cc.Invoke(ctx, "/taskorch.TaskService/GetTaskStatus", in, out, withJSONCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func _TaskService_StartTask_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(StartTaskRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TaskServiceServer).StartTask(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/taskorch.TaskService/StartTask"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TaskServiceServer).StartTask(ctx, req.(*StartTaskRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TaskService_StopTask_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(StopTaskRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TaskServiceServer).StopTask(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/taskorch.TaskService/StopTask"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TaskServiceServer).StopTask(ctx, req.(*StopTaskRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TaskService_GetTaskStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(TaskStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TaskServiceServer).GetTaskStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/taskorch.TaskService/GetTaskStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TaskServiceServer).GetTaskStatus(ctx, req.(*TaskStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// TaskServiceDesc is the grpc.ServiceDesc for TaskService, declared by hand
// in the shape protoc-gen-go-grpc would emit.
var TaskServiceDesc = grpc.ServiceDesc{
	ServiceName: "taskorch.TaskService",
	HandlerType: (*TaskServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartTask", Handler: _TaskService_StartTask_Handler},
		{MethodName: "StopTask", Handler: _TaskService_StopTask_Handler},
		{MethodName: "GetTaskStatus", Handler: _TaskService_GetTaskStatus_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "taskorch/task_service.proto",
}

// RegisterTaskServiceServer registers a TaskServiceServer implementation on
// a gRPC server.
func RegisterTaskServiceServer(s grpc.ServiceRegistrar, srv TaskServiceServer) {
	s.RegisterService(&TaskServiceDesc, srv)
}
