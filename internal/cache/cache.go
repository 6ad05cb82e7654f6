// Package cache stores locate results keyed by prompt and screenshot content.
//
// Entries never expire. Callers clear the cache when the screen has changed in a way
// that matters to them.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/adverant/nexus/ui-locator/internal/element"
)

// ResultCache is the contract the locate engine depends on.
type ResultCache interface {
	Get(ctx context.Context, key Key) ([]element.UIElement, bool, error)
	Set(ctx context.Context, key Key, elements []element.UIElement) error
	Clear(ctx context.Context) error
}

// Key identifies one (prompt, screenshot) pair.
type Key struct {
	Prompt    string
	ImageHash string
}

// NewKey builds a key from the prompt text and a content hash of the screenshot pixels.
func NewKey(prompt, imageHash string) Key {
	return Key{Prompt: prompt, ImageHash: imageHash}
}

// String renders the key with the prompt hashed, so it is safe as a Redis key suffix.
func (k Key) String() string {
	sum := sha256.Sum256([]byte(k.Prompt))
	return hex.EncodeToString(sum[:]) + ":" + k.ImageHash
}
