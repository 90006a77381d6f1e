package ids

import (
	mathrand "math/rand"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier used for request ids.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// ObjectName joins dir and a fresh identifier, keeping ext when given.
func ObjectName(dir, ext string) string {
	name := strings.ToLower(New())
	if ext != "" {
		name += "." + strings.TrimPrefix(ext, ".")
	}
	return path.Join(dir, name)
}
