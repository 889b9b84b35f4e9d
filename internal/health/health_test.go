package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/health/grpc_health_v1"
)

type fakeDB struct{ err error }

func (f fakeDB) Ping(context.Context) error { return f.err }

type fakeBroker bool

func (f fakeBroker) IsHealthy() bool { return bool(f) }

func TestChecker(t *testing.T) {
	tests := []struct {
		name    string
		db      error
		broker  Broker
		status  int
		serving grpc_health_v1.HealthCheckResponse_ServingStatus
	}{
		{"healthy without broker", nil, nil, http.StatusOK, grpc_health_v1.HealthCheckResponse_SERVING},
		{"healthy with broker", nil, fakeBroker(true), http.StatusOK, grpc_health_v1.HealthCheckResponse_SERVING},
		{"database down", errors.New("locked"), nil, http.StatusServiceUnavailable, grpc_health_v1.HealthCheckResponse_NOT_SERVING},
		{"broker down", nil, fakeBroker(false), http.StatusServiceUnavailable, grpc_health_v1.HealthCheckResponse_NOT_SERVING},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker(fakeDB{tt.db}, tt.broker, zap.NewNop())

			w := httptest.NewRecorder()
			checker.Handler()(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			assert.Equal(t, tt.status, w.Code)

			resp, err := NewServer(checker).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
			require.NoError(t, err)
			assert.Equal(t, tt.serving, resp.Status)
		})
	}
}
