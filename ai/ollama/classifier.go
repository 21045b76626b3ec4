package ollama

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/poiesic/newswire/ai"
)

// Classifier implements ai.Classifier using the Ollama chat API.
type Classifier struct {
	client            llms.Model
	categories        []string
	lowSignalCategory string
	previews          ai.PreviewSource
	feedbackLimit     int
	feedbackMaxLen    int
	logger            *slog.Logger
}

// newClassifier is an internal constructor that returns the concrete type.
func newClassifier(config *ai.Config, previews ai.PreviewSource) (*Classifier, error) {
	client, err := ollama.New(
		ollama.WithServerURL(config.ClassifierHost),
		ollama.WithModel(config.ClassifierModel),
	)
	if err != nil {
		return nil, err
	}

	return &Classifier{
		client:            client,
		categories:        config.Categories,
		lowSignalCategory: config.LowSignalCategory,
		previews:          previews,
		feedbackLimit:     config.FeedbackLimit,
		feedbackMaxLen:    config.FeedbackMaxLen,
		logger:            slog.Default().With("component", "ollama-classifier"),
	}, nil
}

// NewClassifier creates a classifier using the provided configuration.
// The previews source may be nil.
//
// Returns ai.Classifier interface to enforce abstraction.
func NewClassifier(config *ai.Config, previews ai.PreviewSource) (ai.Classifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newClassifier(config, previews)
}

// Categorize asks the model for a category and maps the raw response
// onto the configured set. Anything unusable lands in the low-signal
// category rather than failing the item.
func (c *Classifier) Categorize(ctx context.Context, content string) (string, error) {
	var removedPreviews []string
	if c.previews != nil {
		previews, err := c.previews.ContentPreviews(ctx, c.feedbackLimit, c.feedbackMaxLen)
		if err != nil {
			c.logger.Warn("failed to load removal previews", "err", err)
		} else {
			removedPreviews = previews
		}
	}

	messages := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(buildClassifierPrompt(c.categories, c.lowSignalCategory, removedPreviews)),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(content),
			},
		},
	}

	response, err := c.client.GenerateContent(ctx, messages, llms.WithTemperature(0.0))
	if err != nil {
		c.logger.Error("classification request failed", "err", err)
		return "", err
	}
	if len(response.Choices) < 1 {
		c.logger.Warn("no choices returned from model")
		return c.lowSignalCategory, nil
	}

	raw := response.Choices[0].Content
	category := matchCategory(raw, c.categories, c.lowSignalCategory)
	c.logger.Debug("content categorized", "raw", raw, "category", category)
	return category, nil
}

// matchCategory maps a raw model response onto the configured
// categories: exact match first, then containment in either direction,
// then the low-signal fallback.
func matchCategory(raw string, categories []string, lowSignal string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.Trim(normalized, `"'.,!`)
	if normalized == "" {
		return lowSignal
	}

	for _, category := range categories {
		if normalized == category {
			return category
		}
	}
	for _, category := range categories {
		if strings.Contains(normalized, category) || strings.Contains(category, normalized) {
			return category
		}
	}
	return lowSignal
}
