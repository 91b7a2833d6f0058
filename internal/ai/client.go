// Package ai provides the recognition and enhancement clients backed by an
// external model provider. Recognition turns a product photo into
// structured attributes; enhancement produces an improved description and
// promotional image for an already saved product. Providers are selected
// through a small factory so the engine depends only on the interfaces.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/bazarko/go-supplier-bot/internal/domain"
)

// Attributes are the structured fields recognition extracts from a photo.
type Attributes struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	Material         string `json:"material"`
	Dimensions       string `json:"dimensions"`
	ProductionOrigin string `json:"production_origin"`
	Packaging        string `json:"packaging"`
}

// Enhancement is the asynchronous enrichment produced for a saved product.
// ImageURL may be empty when image generation was unavailable; the
// description is always present on success.
type Enhancement struct {
	ImageURL    string `json:"enhanced_image_url"`
	Description string `json:"enhanced_description"`
}

// Recognizer extracts product attributes from an uploaded image.
type Recognizer interface {
	Recognize(ctx context.Context, imageURL string) (Attributes, error)
}

// Enhancer generates improved content for a persisted product.
type Enhancer interface {
	Enhance(ctx context.Context, p domain.Product) (Enhancement, error)
}

// Client bundles both capabilities behind one provider handle.
type Client interface {
	Recognizer
	Enhancer
	Name() string
}

// Config carries provider credentials and model selection.
type Config struct {
	APIKey           string
	RecognitionModel string
	EnhancementModel string
}

// NewClient constructs the client for the named provider. Only "openai" is
// implemented; unknown providers are an error rather than a silent default
// so a config typo cannot route traffic to the wrong vendor.
func NewClient(provider string, cfg Config) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		return NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", provider)
	}
}
