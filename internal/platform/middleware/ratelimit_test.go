package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
)

// hit sends one request through the limiter and reports the handler error.
func hit(e *echo.Echo, handler echo.HandlerFunc, method, path, ip string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(method, path, nil)
	if ip != "" {
		req.Header.Set("X-Real-Ip", ip)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, handler(c)
}

func limitedHandler(cfg RateLimitConfig) (*echo.Echo, echo.HandlerFunc) {
	e := echo.New()
	handler := RateLimit(cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e, handler
}

func TestRateLimit_SendsWithinBurstPass(t *testing.T) {
	e, handler := limitedHandler(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})

	for i := 0; i < 5; i++ {
		rec, err := hit(e, handler, http.MethodPost, "/api/messages", "")
		if err != nil {
			t.Fatalf("send %d: expected no error, got %v", i+1, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("send %d: expected 200, got %d", i+1, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("send %d: expected X-RateLimit-Limit '10', got %q", i+1, got)
		}
	}
}

func TestRateLimit_SendBurstExhaustsBudget(t *testing.T) {
	e, handler := limitedHandler(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})

	for i := 0; i < 2; i++ {
		if _, err := hit(e, handler, http.MethodPost, "/api/messages", ""); err != nil {
			t.Fatalf("send %d: expected no error, got %v", i+1, err)
		}
	}

	_, err := hit(e, handler, http.MethodPost, "/api/messages", "")
	if err == nil {
		t.Fatal("expected rate limit error on third send")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}
}

func TestRateLimit_RetryAfterHeader(t *testing.T) {
	e, handler := limitedHandler(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})

	if _, err := hit(e, handler, http.MethodPost, "/api/messages", ""); err != nil {
		t.Fatalf("first send: %v", err)
	}

	rec, err := hit(e, handler, http.MethodPost, "/api/messages", "")
	if err == nil {
		t.Fatal("expected rate limit error")
	}

	retryAfter := rec.Header().Get("Retry-After")
	if retryAfter == "" {
		t.Fatal("expected Retry-After header")
	}
	retryVal, parseErr := strconv.Atoi(retryAfter)
	if parseErr != nil {
		t.Fatalf("Retry-After is not an integer: %q", retryAfter)
	}
	if retryVal < 1 {
		t.Errorf("expected Retry-After >= 1, got %d", retryVal)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("expected X-RateLimit-Remaining '0', got %q", got)
	}
}

func TestRateLimit_PerIPIsolation(t *testing.T) {
	e, handler := limitedHandler(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})

	if _, err := hit(e, handler, http.MethodPost, "/api/messages", "10.0.0.1"); err != nil {
		t.Fatalf("10.0.0.1 first send: %v", err)
	}
	if _, err := hit(e, handler, http.MethodPost, "/api/messages", "10.0.0.1"); err == nil {
		t.Fatal("10.0.0.1 second send: expected rate limit error")
	}

	// A colleague on a different workstation is unaffected.
	if _, err := hit(e, handler, http.MethodPost, "/api/messages", "10.0.0.2"); err != nil {
		t.Fatalf("10.0.0.2 send: expected no error, got %v", err)
	}
}

func TestRateLimit_PollBudgetIndependentOfSends(t *testing.T) {
	e, handler := limitedHandler(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})

	// Exhaust the interactive budget with a send.
	if _, err := hit(e, handler, http.MethodPost, "/api/messages", "10.0.0.1"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := hit(e, handler, http.MethodPost, "/api/messages", "10.0.0.1"); err == nil {
		t.Fatal("expected interactive budget exhausted")
	}

	// The poll loop keeps the channel live on its own budget.
	if _, err := hit(e, handler, http.MethodGet, "/api/poll", "10.0.0.1"); err != nil {
		t.Fatalf("poll after send burst: expected no error, got %v", err)
	}
	if _, err := hit(e, handler, http.MethodGet, "/api/notifications/unread", "10.0.0.1"); err == nil {
		t.Fatal("expected poll-class budget shared with notification polls")
	}
}

func TestTrafficClass(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/api/poll", "poll"},
		{http.MethodGet, "/api/notifications/unread", "poll"},
		{http.MethodGet, "/api/messages", "interactive"},
		{http.MethodPost, "/api/messages", "interactive"},
		{http.MethodPost, "/api/notifications/read-all", "interactive"},
	}
	e := echo.New()
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		c := e.NewContext(req, httptest.NewRecorder())
		if got := trafficClass(c); got != tt.want {
			t.Errorf("trafficClass(%s %s) = %q, want %q", tt.method, tt.path, got, tt.want)
		}
	}
}
