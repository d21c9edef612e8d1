package db

import (
	"errors"
	"net/http"
	"testing"
)

func TestHealthResponse_Healthy(t *testing.T) {
	stats := &PoolStats{TotalConns: 5, IdleConns: 3, MaxConns: 20, Healthy: true}

	status, body := healthResponse(nil, stats)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", body["status"])
	}
	if _, present := body["error"]; present {
		t.Error("healthy response must not carry an error")
	}
}

func TestHealthResponse_PingFailureMarksUnhealthy(t *testing.T) {
	// The snapshot can still look fine while the server is unreachable; the
	// ping result wins.
	stats := &PoolStats{TotalConns: 5, Healthy: true}

	status, body := healthResponse(errors.New("connection refused"), stats)
	if status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", status)
	}
	if body["status"] != "unhealthy" {
		t.Errorf("expected unhealthy status, got %v", body["status"])
	}
	if stats.Healthy {
		t.Error("expected snapshot flipped to unhealthy")
	}
	if body["error"] != "connection refused" {
		t.Errorf("expected ping error in body, got %v", body["error"])
	}
}
