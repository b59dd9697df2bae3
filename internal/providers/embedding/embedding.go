// Package embedding adapts external embedding models to a single-text,
// fixed-dimension interface.
package embedding

import "context"

// Provider generates an embedding for one text. all-MiniLM-L6-v2 style
// models produce 384 dimensions.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}
