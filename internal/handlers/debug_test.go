package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-gateway/internal/mocks"
	"chat-gateway/internal/telemetry"
)

func TestDebugRoutesDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterDebugRoutes(r, nil, false)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDebugAuditTestEmits(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pub := new(mocks.PublisherMock)
	r := gin.New()
	RegisterDebugRoutes(r, telemetry.NewAuditEmitter(pub, "audit.chat", "chat-gateway", "test"), true)

	session := uuid.NewString()
	pub.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(ev telemetry.AuditEnvelope) bool {
		return ev.RequestID == "req-7" && ev.SessionID != nil && *ev.SessionID == session
	}), mock.Anything).Return(nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil)
	req.Header.Set("X-Request-ID", "req-7")
	req.Header.Set("X-Session-ID", session)
	rec := serve(r, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","level":"INFO","request_id":"req-7","session_id":"`+session+`"}`, rec.Body.String())
	pub.AssertExpectations(t)
}

func TestDebugAuditTestCustomLevelAndText(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pub := new(mocks.PublisherMock)
	r := gin.New()
	RegisterDebugRoutes(r, telemetry.NewAuditEmitter(pub, "audit.chat", "chat-gateway", "test"), true)

	pub.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(ev telemetry.AuditEnvelope) bool {
		return ev.Payload.Level == "WARN" && ev.Payload.Text == "disk nearly full" && ev.SessionID == nil
	}), mock.Anything).Return(nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/debug/audit-test?level=warn&text=disk+nearly+full", nil)
	req.Header.Set("X-Session-ID", "not-a-uuid")
	rec := serve(r, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"session_id":null`)
	assert.Contains(t, rec.Body.String(), `"level":"WARN"`)
	pub.AssertExpectations(t)
}

func TestDebugAuditTestRejectsUnknownLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pub := new(mocks.PublisherMock)
	r := gin.New()
	RegisterDebugRoutes(r, telemetry.NewAuditEmitter(pub, "audit.chat", "chat-gateway", "test"), true)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/debug/audit-test?level=panic", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDebugAuditTestWithoutEmitter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterDebugRoutes(r, nil, true)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/debug/audit-test", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", Health(time.Now().Add(-time.Minute)))

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
