package grpc_control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"mt5-gateway/src/helpers"
	"mt5-gateway/src/logger"
	"mt5-gateway/src/models"
	"mt5-gateway/src/orders"
	"mt5-gateway/src/session"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// HealthChecker reports the aggregated gateway health.
type HealthChecker interface {
	Check(ctx context.Context) models.MHealthReport
}

// -----------------------------------------------------------------------------

// ControlService implements ControlServer on top of the session registry.
type ControlService struct {
	Sessions *session.Registry
	Orders   *orders.Gateway
	Health   HealthChecker
	Logger   *logger.Logger
}

// NewControlService creates a new instance of ControlService
func NewControlService(sessions *session.Registry, ord *orders.Gateway, h HealthChecker, log *logger.Logger) *ControlService {
	return &ControlService{
		Sessions: sessions,
		Orders:   ord,
		Health:   h,
		Logger:   log,
	}
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(s.Health.Check(ctx))
}

// -----------------------------------------------------------------------------

func (s *ControlService) ListSessions(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	sessions := s.Sessions.List()
	return toStruct(map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// -----------------------------------------------------------------------------

func (s *ControlService) DisconnectSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID := strings.TrimSpace(req.GetFields()["user_id"].GetStringValue())
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}

	if err := s.Sessions.Disconnect(userID); err != nil {
		if errors.Is(err, helpers.ErrNotConnected) {
			return nil, status.Errorf(codes.NotFound, "user %s is not connected", userID)
		}
		s.Logger.Error("gRPC: disconnect of %s failed: %v", userID, err)
		return nil, status.Error(codes.Internal, helpers.PublicMessage(err))
	}
	if s.Orders != nil {
		s.Orders.Forget(userID)
	}

	s.Logger.Info("gRPC: disconnected session of user %s", userID)
	return toStruct(map[string]interface{}{"success": true, "user_id": userID})
}

// -----------------------------------------------------------------------------

// toStruct converts any JSON-serializable value into a protobuf Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server hosts the control service and the standard health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *logger.Logger
}

func NewServer(svc ControlServer, log *logger.Logger) *Server {
	gs := grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(log)))
	gs.RegisterService(&ServiceDesc, svc)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{grpc: gs, health: hs, logger: log}
}

// Serve blocks until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC control server listening on %s", lis.Addr())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func loggingInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			log.Warning("gRPC %s failed: %v", info.FullMethod, err)
		} else {
			log.Debug("gRPC %s ok", info.FullMethod)
		}
		return resp, err
	}
}
