package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/welldanyogia/auth-system/internal/logger"
)

func TestStructuredLogger_LevelsByStatus(t *testing.T) {
	tests := []struct {
		status    int
		wantLevel string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusUnauthorized, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(slog.NewJSONHandler(&buf, nil))

			handler := StructuredLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			req := httptest.NewRequest("GET", "/api/v1/auth/stats?x=1", nil)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			var record map[string]any
			if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
				t.Fatalf("failed to decode log record: %v", err)
			}
			if record["level"] != tt.wantLevel {
				t.Errorf("expected level %s, got %v", tt.wantLevel, record["level"])
			}
			if record["path"] != "/api/v1/auth/stats" || record["query"] != "x=1" {
				t.Errorf("unexpected path/query %v %v", record["path"], record["query"])
			}
			if int(record["status"].(float64)) != tt.status {
				t.Errorf("expected status %d, got %v", tt.status, record["status"])
			}
			if id, _ := record["correlation_id"].(string); id == "" {
				t.Error("expected a generated correlation id")
			}
		})
	}
}

func TestStructuredLogger_UsesChiRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.GetCorrelationID(r.Context())
	})
	handler := chimw.RequestID(StructuredLogger(log)(inner))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(chimw.RequestIDHeader, "req-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "req-123" {
		t.Errorf("expected correlation id req-123 in context, got %q", seen)
	}

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("failed to decode log record: %v", err)
	}
	if record["correlation_id"] != "req-123" {
		t.Errorf("expected logged correlation id req-123, got %v", record["correlation_id"])
	}
}
