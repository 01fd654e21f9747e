package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/labdesk/labdesk/internal/platform/auth"
)

func runAudit(t *testing.T, method, path string, status int) (map[string]interface{}, bool) {
	t.Helper()
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, "user-7")
	ctx = context.WithValue(ctx, auth.UserRolesKey, []string{"billing"})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "req-123")

	handler := func(c echo.Context) error {
		return c.NoContent(status)
	}
	if err := Audit(logger)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if buf.Len() == 0 {
		return nil, false
	}
	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode audit line: %v", err)
	}
	return line, true
}

func TestAudit_DeleteUnbilled(t *testing.T) {
	line, ok := runAudit(t, http.MethodDelete, "/api/v1/unbilled/ord-1", http.StatusOK)
	if !ok {
		t.Fatal("expected an audit line")
	}
	if line["action"] != "delete" {
		t.Errorf("expected delete action, got %v", line["action"])
	}
	if line["resource"] != "unbilled" || line["resource_id"] != "ord-1" {
		t.Errorf("unexpected resource: %v/%v", line["resource"], line["resource_id"])
	}
	if line["user_id"] != "user-7" {
		t.Errorf("expected user-7, got %v", line["user_id"])
	}
	if line["level"] != "info" {
		t.Errorf("expected info level, got %v", line["level"])
	}
}

func TestAudit_BulkDeleteIsDelete(t *testing.T) {
	line, ok := runAudit(t, http.MethodPost, "/api/v1/unbilled/bulk-delete", http.StatusMultiStatus)
	if !ok {
		t.Fatal("expected an audit line")
	}
	if line["action"] != "delete" {
		t.Errorf("expected delete action, got %v", line["action"])
	}
	if line["resource_id"] != "" {
		t.Errorf("expected empty resource id, got %v", line["resource_id"])
	}
	if line["status"] != float64(http.StatusMultiStatus) {
		t.Errorf("expected 207, got %v", line["status"])
	}
}

func TestAudit_ReadsLogAtDebug(t *testing.T) {
	line, ok := runAudit(t, http.MethodGet, "/api/v1/orders/o-9/report", http.StatusOK)
	if !ok {
		t.Fatal("expected an audit line")
	}
	if line["level"] != "debug" {
		t.Errorf("expected debug level, got %v", line["level"])
	}
	if line["resource_id"] != "o-9" {
		t.Errorf("expected o-9, got %v", line["resource_id"])
	}
}

func TestAudit_SkipsNonAPIPaths(t *testing.T) {
	if _, ok := runAudit(t, http.MethodGet, "/health", http.StatusOK); ok {
		t.Error("expected no audit line for /health")
	}
}

func TestActionFor(t *testing.T) {
	tests := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/api/v1/unbilled", "read"},
		{http.MethodPost, "/api/v1/orders", "create"},
		{http.MethodPut, "/api/v1/unbilled/1", "update"},
		{http.MethodPatch, "/api/v1/unbilled/1", "update"},
		{http.MethodDelete, "/api/v1/unbilled/1", "delete"},
		{http.MethodPost, "/api/v1/unbilled/bulk-delete", "delete"},
	}
	for _, tt := range tests {
		if got := actionFor(tt.method, tt.path); got != tt.want {
			t.Errorf("actionFor(%s, %s) = %s, want %s", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestSplitResourcePath(t *testing.T) {
	tests := []struct {
		path, resource, id string
	}{
		{"/api/v1/unbilled", "unbilled", ""},
		{"/api/v1/unbilled/", "unbilled", ""},
		{"/api/v1/unbilled/abc", "unbilled", "abc"},
		{"/api/v1/orders/abc/report", "orders", "abc"},
		{"/api/v1/unbilled/bulk-delete", "unbilled", ""},
		{"/api/v1/", "unknown", ""},
	}
	for _, tt := range tests {
		r, id := splitResourcePath(tt.path)
		if r != tt.resource || id != tt.id {
			t.Errorf("splitResourcePath(%q) = (%q, %q), want (%q, %q)", tt.path, r, id, tt.resource, tt.id)
		}
	}
}
