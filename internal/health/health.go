// Package health reports whether the API can serve traffic, over HTTP
// (/healthz) and over the gRPC health checking protocol.
package health

import (
	"context"
	"errors"
	"net/http"

	"github.com/smartcampus/campus-api/internal/utils/response"
	"go.uber.org/zap"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger is satisfied by the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Broker is satisfied by the change publisher.
type Broker interface {
	IsHealthy() bool
}

var errBrokerDown = errors.New("message broker connection lost")

// Checker combines the database and the optional broker.
type Checker struct {
	db     Pinger
	broker Broker
	log    *zap.Logger
}

// NewChecker accepts a nil broker when changes are not routed through one.
func NewChecker(db Pinger, broker Broker, log *zap.Logger) *Checker {
	return &Checker{db: db, broker: broker, log: log}
}

// Check returns the first failing dependency.
func (c *Checker) Check(ctx context.Context) error {
	if err := c.db.Ping(ctx); err != nil {
		c.log.Error("database health check failed", zap.Error(err))
		return err
	}

	if c.broker != nil && !c.broker.IsHealthy() {
		c.log.Error("broker health check failed")
		return errBrokerDown
	}

	return nil
}

// Handler serves GET /healthz.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.Check(r.Context()); err != nil {
			response.WriteJSON(w, http.StatusServiceUnavailable, response.GeneralError(err))
			return
		}
		response.WriteJSON(w, http.StatusOK, map[string]string{"status": response.StatusOK})
	}
}

// Server implements grpc_health_v1.HealthServer on top of a Checker.
type Server struct {
	grpc_health_v1.UnimplementedHealthServer
	checker *Checker
}

func NewServer(checker *Checker) *Server {
	return &Server{checker: checker}
}

func (s *Server) status(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if err := s.checker.Check(ctx); err != nil {
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_SERVING
}

func (s *Server) Check(ctx context.Context, _ *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	return &grpc_health_v1.HealthCheckResponse{Status: s.status(ctx)}, nil
}

// Watch sends the current status once.
func (s *Server) Watch(_ *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	return stream.Send(&grpc_health_v1.HealthCheckResponse{Status: s.status(stream.Context())})
}
