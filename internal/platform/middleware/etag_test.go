package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newETagServer() *echo.Echo {
	e := echo.New()
	g := e.Group("", ETag(5*time.Minute))
	g.GET("/api/v1/doctors", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{"doctors": []string{"Dr. Rao"}})
	})
	g.GET("/api/v1/doctors/missing", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "doctor not found"})
	})
	return e
}

func TestETag_SetsHeaders(t *testing.T) {
	e := newETagServer()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/doctors", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("expected ETag header")
	}
	if rec.Header().Get("Cache-Control") != "private, max-age=300" {
		t.Errorf("unexpected Cache-Control: %q", rec.Header().Get("Cache-Control"))
	}
	if rec.Body.Len() == 0 {
		t.Error("expected body to be flushed")
	}
}

func TestETag_NotModified(t *testing.T) {
	e := newETagServer()
	first := httptest.NewRecorder()
	e.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/v1/doctors", nil))
	etag := first.Header().Get("ETag")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/doctors", nil)
	req.Header.Set("If-None-Match", etag)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotModified {
		t.Errorf("expected 304, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Error("expected empty body on 304")
	}
}

func TestETag_SkipsErrors(t *testing.T) {
	e := newETagServer()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/doctors/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec.Header().Get("ETag") != "" {
		t.Error("expected no ETag on error responses")
	}
}

func TestETagMatch(t *testing.T) {
	etag := computeETag([]byte("body"))
	tests := []struct {
		header string
		want   bool
	}{
		{etag, true},
		{`"other", ` + etag, true},
		{"*", true},
		{`W/"nope"`, false},
	}
	for _, tt := range tests {
		if got := etagMatch(tt.header, etag); got != tt.want {
			t.Errorf("etagMatch(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}
