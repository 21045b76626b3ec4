package mock

import (
	"context"
	"sync"
)

// DefaultMockCategory is what the mock classifier returns unless a
// CategorizeFunc is set.
const DefaultMockCategory = "markets"

// MockClassifier is a test double for ai.Classifier.
type MockClassifier struct {
	// CategorizeFunc is called by Categorize if set.
	CategorizeFunc func(ctx context.Context, content string) (string, error)

	mu        sync.Mutex
	callCount int
	contents  []string
}

// NewMockClassifier creates a mock classifier returning
// DefaultMockCategory for everything.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{}
}

// Categorize returns the configured category and records the call.
func (m *MockClassifier) Categorize(ctx context.Context, content string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.contents = append(m.contents, content)
	m.mu.Unlock()

	if m.CategorizeFunc != nil {
		return m.CategorizeFunc(ctx, content)
	}
	return DefaultMockCategory, nil
}

// CallCount returns the number of Categorize calls.
func (m *MockClassifier) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Contents returns a copy of every content string classified.
func (m *MockClassifier) Contents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.contents...)
}
