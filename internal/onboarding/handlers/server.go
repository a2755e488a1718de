// Package handlers provides the HTTP API and the gRPC health endpoint of the
// onboarding service, bridging the transport layer and the controllers.
package handlers

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gartstein/onboard/internal/onboarding/auth"
	"github.com/gartstein/onboard/internal/onboarding/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds references to both a gRPC server and an HTTP server.
type Server struct {
	grpcServer   *grpc.Server
	health       *health.Server
	httpServer   *http.Server
	logger       *zap.Logger
	grpcEndpoint string
	httpEndpoint string
}

// NewServer constructs a Server with separate endpoints for gRPC and HTTP.
// The gRPC server carries the standard health service, NOT_SERVING until
// the first successful health check.
func NewServer(
	grpcPort int,
	httpPort int,
	logger *zap.Logger,
	grpcOpts ...grpc.ServerOption,
) *Server {
	s := &Server{
		grpcServer:   grpc.NewServer(grpcOpts...),
		health:       health.NewServer(),
		httpServer:   &http.Server{ReadHeaderTimeout: 10 * time.Second},
		logger:       logger.Named("server"),
		grpcEndpoint: fmt.Sprintf(":%d", grpcPort),
		httpEndpoint: fmt.Sprintf(":%d", httpPort),
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	return s
}

// HTTPConfig carries what the HTTP handler chain needs besides the API.
type HTTPConfig struct {
	JWTSecret string
	Revoked   auth.RevocationChecker
	Metrics   *metrics.Metrics
	Pinger    Pinger
}

// NewHTTPHandler builds the HTTP handler: the gateway mux serving the API,
// /healthz and /metrics, wrapped with request ids, panic recovery and
// bearer authentication.
func NewHTTPHandler(api *API, cfg HTTPConfig, logger *zap.Logger) (http.Handler, error) {
	opts := []runtime.ServeMuxOption{runtime.WithRoutingErrorHandler(routingError)}
	if cfg.Metrics != nil {
		opts = append(opts, runtime.WithMiddlewares(cfg.Metrics.Middleware()))
	}
	mux := runtime.NewServeMux(opts...)

	if err := api.Register(mux); err != nil {
		return nil, err
	}
	if err := mux.HandlePath(http.MethodGet, "/healthz", healthz(cfg.Pinger)); err != nil {
		return nil, err
	}
	if cfg.Metrics != nil {
		h := cfg.Metrics.Handler()
		err := mux.HandlePath(http.MethodGet, "/metrics", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			h.ServeHTTP(w, r)
		})
		if err != nil {
			return nil, err
		}
	}

	authenticated := auth.HTTPMiddleware(mux, cfg.JWTSecret, cfg.Revoked, logger)
	return chi.Chain(middleware.RequestID, middleware.RealIP, middleware.Recoverer).Handler(authenticated), nil
}

// RegisterHTTPHandler installs the handler on the HTTP server.
func (s *Server) RegisterHTTPHandler(h http.Handler) {
	s.httpServer.Handler = h
	s.httpServer.Addr = s.httpEndpoint
}

// SetServing updates the gRPC health status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

// WatchHealth pings the store every interval and mirrors the result in the
// gRPC health status until ctx is done.
func (s *Server) WatchHealth(ctx context.Context, p Pinger, interval time.Duration) {
	check := func() {
		pingCtx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		err := p.Ping(pingCtx)
		if err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
		}
		s.SetServing(err == nil)
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

// Start runs the gRPC and HTTP servers concurrently, returning on the first error.
func (s *Server) Start() error {
	var wg sync.WaitGroup
	wg.Add(2)
	errChan := make(chan error, 2)

	// Start gRPC Server
	go func() {
		defer wg.Done()
		s.logger.Info("Starting gRPC server", zap.String("endpoint", s.grpcEndpoint))
		lis, err := net.Listen("tcp", s.grpcEndpoint)
		if err != nil {
			errChan <- fmt.Errorf("gRPC listen error: %w", err)
			return
		}
		if err := s.grpcServer.Serve(lis); err != nil {
			errChan <- fmt.Errorf("gRPC serve error: %w", err)
		}
	}()

	// Start HTTP Server
	go func() {
		defer wg.Done()
		s.logger.Info("Starting HTTP server", zap.String("endpoint", s.httpEndpoint))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP serve error: %w", err)
		}
	}()

	go func() {
		wg.Wait()
		close(errChan)
	}()

	for err := range errChan {
		if err != nil {
			return err
		}
	}
	return nil
}

// Stop gracefully shuts down both gRPC and HTTP servers.
func (s *Server) Stop() {
	s.logger.Info("Shutting down servers...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpcServer.GracefulStop()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	s.logger.Info("Servers stopped")
}

func healthz(p Pinger) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		if p != nil {
			if err := p.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func routingError(_ context.Context, _ *runtime.ServeMux, _ runtime.Marshaler, w http.ResponseWriter, _ *http.Request, status int) {
	code := "not_found"
	if status == http.StatusMethodNotAllowed {
		code = "method_not_allowed"
	}
	writeJSON(w, status, errorBody{Error: code, Message: http.StatusText(status)})
}
