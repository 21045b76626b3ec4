package ai

import "context"

// Embedder generates vector embeddings from text for similarity
// detection. Implementations must be thread-safe.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates embeddings for multiple texts in a batch,
	// returned in input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Classifier assigns content to one of the configured categories.
// Implementations must be thread-safe.
type Classifier interface {
	// Categorize returns the category for the content. The result is
	// always one of the configured categories; unusable model output
	// falls back to the low-signal category.
	Categorize(ctx context.Context, content string) (string, error)
}

// PreviewSource supplies previews of recently removed content. The
// classifier feeds them into its prompt so moderator decisions steer
// future categorization.
type PreviewSource interface {
	ContentPreviews(ctx context.Context, limit, maxLen int) ([]string, error)
}

// Provider aggregates the AI services for convenient initialization
// and lifecycle management.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Classifier returns the category classification service.
	Classifier() Classifier

	// Close releases resources held by the provider and its services.
	Close() error
}
