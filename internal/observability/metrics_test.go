package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/banking-auth/internal/config"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/auth/login", "POST", 200, 2*time.Millisecond)
	m.RecordRequest("/api/auth/login", "POST", 200, 4*time.Millisecond)
	m.RecordError("/api/auth/login", "POST", "UNAUTHORIZED")
	m.RecordTokenIssued("ML-DSA-65")
	m.RecordVerification("ML-DSA-65", "expired")
	m.RecordVerification("ML-DSA-65", "expired")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/api/auth/login|POST|200"])
	assert.Equal(t, int64(1), snap.Errors["/api/auth/login|POST|UNAUTHORIZED"])
	assert.Equal(t, int64(1), snap.TokensIssued["ML-DSA-65"])
	assert.Equal(t, int64(2), snap.Verifications["ML-DSA-65|expired"])
	assert.Equal(t, int64(2), snap.TotalRequestCount)
	assert.InDelta(t, 3.0, snap.AverageLatencyMS, 0.001)

	snap.TokensIssued["ML-DSA-65"] = 99
	assert.Equal(t, int64(1), m.Snapshot().TokensIssued["ML-DSA-65"])
}

func TestNilMetricsAreInert(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordTokenIssued("HS256")
	assert.Empty(t, m.Snapshot().Requests)
}

func TestRequestLoggerAssignsRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := NewMetrics()

	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), metrics))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil), -1)
	require.NoError(t, err)
	assert.Len(t, resp.Header.Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "caller-id")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "caller-id", resp.Header.Get(RequestIDHeader))

	assert.Equal(t, 2, logs.FilterMessage("request").Len())
	assert.Equal(t, int64(2), metrics.Snapshot().Requests["/ping|GET|200"])
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "chatty"}, "auth-service")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}
