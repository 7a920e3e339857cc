package rpc

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/models"
	"github.com/prudhivi99/Distributed-Systems/ordersys/internal/notification"
)

// Server exposes a Dispatcher over gRPC.
type Server struct {
	UnimplementedNotificationServiceServer
	dispatcher *notification.Dispatcher
}

func NewServer(dispatcher *notification.Dispatcher) *Server {
	return &Server{dispatcher: dispatcher}
}

func (s *Server) SendOrderNotification(ctx context.Context, req *models.OrderNotification) (*models.NotificationResult, error) {
	result := s.dispatcher.SendOrderNotification(ctx, *req)
	return &result, nil
}

func (s *Server) GetNotificationHistory(ctx context.Context, req *models.NotificationHistoryRequest) (*models.NotificationHistoryResponse, error) {
	if req.ClientID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "client_id must be positive")
	}

	records, err := s.dispatcher.NotificationHistory(ctx, req.ClientID, req.Limit)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to read notification history: %v", err)
	}
	return &models.NotificationHistoryResponse{Notifications: records}, nil
}

// NewGRPCServer registers the notification and health services on a new grpc.Server.
func NewGRPCServer(dispatcher *notification.Dispatcher, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(LoggingInterceptor)}, opts...)
	srv := grpc.NewServer(opts...)
	RegisterNotificationServiceServer(srv, NewServer(dispatcher))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthServer)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return srv, healthServer
}

// LoggingInterceptor logs every unary call with its status code and latency.
func LoggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	entry := log.WithFields(log.Fields{
		"method":  info.FullMethod,
		"code":    status.Code(err).String(),
		"latency": time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Warn("grpc_request")
	} else {
		entry.Debug("grpc_request")
	}
	return resp, err
}
