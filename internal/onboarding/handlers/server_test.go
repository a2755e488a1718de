package handlers

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type flakyPinger struct {
	down atomic.Bool
}

func (p *flakyPinger) Ping(context.Context) error {
	if p.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func healthClient(t *testing.T, s *Server) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.grpcServer.Serve(lis) }()
	t.Cleanup(s.grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func servingStatus(t *testing.T, c healthpb.HealthClient) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestServer_HealthStartsNotServing(t *testing.T) {
	s := NewServer(0, 0, zaptest.NewLogger(t))
	client := healthClient(t, s)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, client))

	s.SetServing(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(t, client))
}

func TestServer_WatchHealthFollowsStore(t *testing.T) {
	s := NewServer(0, 0, zaptest.NewLogger(t))
	client := healthClient(t, s)
	pinger := &flakyPinger{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.WatchHealth(ctx, pinger, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return servingStatus(t, client) == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	pinger.down.Store(true)
	assert.Eventually(t, func() bool {
		return servingStatus(t, client) == healthpb.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestServer_RegisterHTTPHandler(t *testing.T) {
	s := NewServer(50051, 8080, zaptest.NewLogger(t))
	api := NewAPI(Services{}, 0, zaptest.NewLogger(t))

	h, err := NewHTTPHandler(api, HTTPConfig{JWTSecret: "secret"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	s.RegisterHTTPHandler(h)

	assert.NotNil(t, s.httpServer.Handler)
	assert.Equal(t, s.httpEndpoint, s.httpServer.Addr)
	assert.Equal(t, ":8080", s.httpEndpoint)
	assert.Equal(t, ":50051", s.grpcEndpoint)
}
