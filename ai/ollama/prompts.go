package ollama

import (
	"fmt"
	"strings"
)

const classifierPromptTemplate = `You are a news routing assistant for a crypto news feed. Assign the
given content to exactly one category.

Categories: %s

Rules:
- Respond with the category name only. No punctuation, no explanation.
- Pick the single category that best matches the main subject.
- Low-value content (reposts, shills, giveaways, vague hype) goes to "%s".
- When in doubt between a real category and "%s", prefer "%s".`

const removedFeedbackHeader = `

Moderators removed these recent posts as unwanted. Content resembling
them goes to "%s":`

// buildClassifierPrompt assembles the system prompt from the category
// list and, when available, previews of moderator-removed content.
func buildClassifierPrompt(categories []string, lowSignal string, removedPreviews []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, classifierPromptTemplate,
		strings.Join(categories, ", "), lowSignal, lowSignal, lowSignal)
	if len(removedPreviews) > 0 {
		fmt.Fprintf(&b, removedFeedbackHeader, lowSignal)
		for _, preview := range removedPreviews {
			b.WriteString("\n- ")
			b.WriteString(preview)
		}
	}
	return b.String()
}
