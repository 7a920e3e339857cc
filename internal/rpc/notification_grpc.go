package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/models"
)

const (
	ServiceName = "notification.NotificationService"

	SendOrderNotificationMethod  = "/" + ServiceName + "/SendOrderNotification"
	GetNotificationHistoryMethod = "/" + ServiceName + "/GetNotificationHistory"
)

// NotificationServiceClient is the client API for notification.NotificationService.
type NotificationServiceClient interface {
	SendOrderNotification(ctx context.Context, in *models.OrderNotification, opts ...grpc.CallOption) (*models.NotificationResult, error)
	GetNotificationHistory(ctx context.Context, in *models.NotificationHistoryRequest, opts ...grpc.CallOption) (*models.NotificationHistoryResponse, error)
}

type notificationServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewNotificationServiceClient(cc grpc.ClientConnInterface) NotificationServiceClient {
	return &notificationServiceClient{cc: cc}
}

func (c *notificationServiceClient) SendOrderNotification(ctx context.Context, in *models.OrderNotification, opts ...grpc.CallOption) (*models.NotificationResult, error) {
	out := new(models.NotificationResult)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, SendOrderNotificationMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *notificationServiceClient) GetNotificationHistory(ctx context.Context, in *models.NotificationHistoryRequest, opts ...grpc.CallOption) (*models.NotificationHistoryResponse, error) {
	out := new(models.NotificationHistoryResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, GetNotificationHistoryMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// NotificationServiceServer is the server API for notification.NotificationService.
type NotificationServiceServer interface {
	SendOrderNotification(context.Context, *models.OrderNotification) (*models.NotificationResult, error)
	GetNotificationHistory(context.Context, *models.NotificationHistoryRequest) (*models.NotificationHistoryResponse, error)
}

// UnimplementedNotificationServiceServer can be embedded to have forward compatible implementations.
type UnimplementedNotificationServiceServer struct{}

func (UnimplementedNotificationServiceServer) SendOrderNotification(context.Context, *models.OrderNotification) (*models.NotificationResult, error) {
	return nil, status.Error(codes.Unimplemented, "method SendOrderNotification not implemented")
}

func (UnimplementedNotificationServiceServer) GetNotificationHistory(context.Context, *models.NotificationHistoryRequest) (*models.NotificationHistoryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetNotificationHistory not implemented")
}

func RegisterNotificationServiceServer(s grpc.ServiceRegistrar, srv NotificationServiceServer) {
	s.RegisterService(&NotificationServiceDesc, srv)
}

func sendOrderNotificationHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(models.OrderNotification)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NotificationServiceServer).SendOrderNotification(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SendOrderNotificationMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(NotificationServiceServer).SendOrderNotification(ctx, req.(*models.OrderNotification))
	}
	return interceptor(ctx, in, info, handler)
}

func getNotificationHistoryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(models.NotificationHistoryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NotificationServiceServer).GetNotificationHistory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetNotificationHistoryMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(NotificationServiceServer).GetNotificationHistory(ctx, req.(*models.NotificationHistoryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// NotificationServiceDesc describes notification.NotificationService. Messages
// are the JSON forms of the models types.
var NotificationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NotificationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SendOrderNotification",
			Handler:    sendOrderNotificationHandler,
		},
		{
			MethodName: "GetNotificationHistory",
			Handler:    getNotificationHistoryHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "notification.proto",
}
