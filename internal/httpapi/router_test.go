package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingHandler struct {
	tenantSlug, endpointSlug, restPath string
	called                             bool
}

func (r *recordingHandler) Handle(w http.ResponseWriter, req *http.Request, tenantSlug, endpointSlug, restPath string) {
	r.called = true
	r.tenantSlug = tenantSlug
	r.endpointSlug = endpointSlug
	r.restPath = restPath
	w.WriteHeader(http.StatusOK)
}

func TestNewDiagnosticsMux_Healthz(t *testing.T) {
	mux := NewDiagnosticsMux()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestNewDiagnosticsMux_Metrics(t *testing.T) {
	mux := NewDiagnosticsMux()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewRouter_ProxyRouteWithoutRest(t *testing.T) {
	h := &recordingHandler{}
	router := NewRouter(h)
	req := httptest.NewRequest(http.MethodGet, "/alice/weather", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.True(t, h.called)
	assert.Equal(t, "alice", h.tenantSlug)
	assert.Equal(t, "weather", h.endpointSlug)
	assert.Equal(t, "", h.restPath)
}

func TestNewRouter_ProxyRouteWithRest(t *testing.T) {
	h := &recordingHandler{}
	router := NewRouter(h)
	req := httptest.NewRequest(http.MethodGet, "/alice/weather/forecast/today", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.True(t, h.called)
	assert.Equal(t, "alice", h.tenantSlug)
	assert.Equal(t, "weather", h.endpointSlug)
	assert.Equal(t, "forecast/today", h.restPath)
}

func TestNewRouter_AnyMethodReachesProxyRoute(t *testing.T) {
	h := &recordingHandler{}
	router := NewRouter(h)
	req := httptest.NewRequest(http.MethodPost, "/alice/weather", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.True(t, h.called)
}
