package obs

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                 "/",
		"/metrics":                         "/metrics",
		"/api/v1/user/12":                  "/api/v1/user/:id",
		"/api/v1/user/12/roles":            "/api/v1/user/:id/roles",
		"/api/v1/role/assign-permission/3": "/api/v1/role/assign-permission/:id",
		"/api/v1/course/7/answer/":         "/api/v1/course/:id/answer",
		"/api/v1/blog/slug/hello-world":    "/api/v1/blog/slug/:slug",
		"/api/v1/user?page=2":              "/api/v1/user",
		"/api/v1/user/me":                  "/api/v1/user/me",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestLogRequestWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	LogRequest("request", slog.String("method", "GET"), slog.Int("status", 200))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "request" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
	if entry["method"] != "GET" {
		t.Fatalf("unexpected method: %v", entry["method"])
	}
	if entry["status"].(float64) != 200 {
		t.Fatalf("unexpected status: %v", entry["status"])
	}
}
