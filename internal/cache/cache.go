package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ironsheep/ui-locate-mcp/internal/layout"
)

// DefaultTTL is how long an entry stays valid after creation.
const DefaultTTL = 12 * time.Hour

// Entry is one cached hierarchy.
type Entry struct {
	ImageHash string            `json:"image_hash"`
	Hierarchy *layout.Hierarchy `json:"hierarchy"`
	CreatedAt time.Time         `json:"created_at"`
}

// Expired reports whether the entry is older than ttl at now.
func (e *Entry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CreatedAt) > ttl
}

// Store is an artifact cache backend.
//
// Get reports a miss for absent, expired or unreadable entries; backend
// failures are logged, not returned. Put and Evict report backend failures so
// callers can log them, but a failed Put never invalidates a request.
type Store interface {
	Get(ctx context.Context, hash string) (*Entry, bool)
	Put(ctx context.Context, hash string, h *layout.Hierarchy) error
	Evict(ctx context.Context, hash string) error
}

// Hash returns the hex SHA-256 digest of the raw image bytes.
func Hash(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}
