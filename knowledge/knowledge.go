// Package knowledge provides product knowledge-base content for analysis
// prompts. Content is loaded from per-product directories of markdown, text,
// and exported HTML documents.
package knowledge

import (
	"context"
	"errors"
)

// ErrNotFound indicates no knowledge-base content exists for a product.
var ErrNotFound = errors.New("knowledge base not found")

// Provider supplies knowledge-base content keyed by product.
type Provider interface {
	// Content returns the assembled knowledge-base text for a product.
	// Returns ErrNotFound when no content exists.
	Content(ctx context.Context, product string) (string, error)
}
