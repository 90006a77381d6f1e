package ids

import (
	"strings"
	"testing"
)

func TestNewIsSortable(t *testing.T) {
	a := New()
	b := New()
	if len(a) != 26 || len(b) != 26 {
		t.Fatalf("unexpected ulid length: %q %q", a, b)
	}
	if a >= b {
		t.Fatalf("expected monotonic ids, got %q then %q", a, b)
	}
}

func TestObjectName(t *testing.T) {
	name := ObjectName("uploads/avatars", ".png")
	if !strings.HasPrefix(name, "uploads/avatars/") {
		t.Fatalf("unexpected prefix: %q", name)
	}
	if !strings.HasSuffix(name, ".png") {
		t.Fatalf("unexpected suffix: %q", name)
	}
	if strings.ToLower(name) != name {
		t.Fatalf("expected lowercase name: %q", name)
	}
}
