package cache

import (
	"context"
	"errors"

	"github.com/ironsheep/ui-locate-mcp/internal/layout"
)

// Tiered reads through a Memory front to a Redis back. A back hit is copied
// into the front with its original CreatedAt, so the entry still expires 12h
// after it was first built.
type Tiered struct {
	front *Memory
	back  *Redis
}

// NewTiered combines front and back.
func NewTiered(front *Memory, back *Redis) *Tiered {
	return &Tiered{front: front, back: back}
}

// Get checks the front, then the back.
func (t *Tiered) Get(ctx context.Context, hash string) (*Entry, bool) {
	if e, ok := t.front.Get(ctx, hash); ok {
		return e, true
	}
	e, ok := t.back.Get(ctx, hash)
	if !ok {
		return nil, false
	}
	t.front.store(&Entry{ImageHash: e.ImageHash, Hierarchy: e.Hierarchy.Clone(), CreatedAt: e.CreatedAt})
	return e, true
}

// Put writes both tiers. The front write cannot fail.
func (t *Tiered) Put(ctx context.Context, hash string, h *layout.Hierarchy) error {
	_ = t.front.Put(ctx, hash, h)
	return t.back.Put(ctx, hash, h)
}

// Evict removes hash from both tiers.
func (t *Tiered) Evict(ctx context.Context, hash string) error {
	return errors.Join(t.front.Evict(ctx, hash), t.back.Evict(ctx, hash))
}

// Close closes the back tier.
func (t *Tiered) Close() error {
	return t.back.Close()
}
