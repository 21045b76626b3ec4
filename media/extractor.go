// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package media recovers text from an item's attached media so
// image-only posts can still be deduplicated and categorized.
package media

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/poiesic/newswire/core"
)

// ErrExtractionFailed indicates the extractor could not process the
// item's media. The pipeline treats it as recoverable.
var ErrExtractionFailed = errors.New("media extraction failed")

// ImagePlaceholder stands in for image-only items that yielded no
// extractable text, so they still get a stable embedding.
const ImagePlaceholder = "[image content - no text extracted]"

// extractedTextHeader separates original content from recovered text
// in the merged form.
const extractedTextHeader = "\n\n[text from images]:\n"

// Extractor recovers text from an item's media files.
type Extractor interface {
	// ExtractText returns text recovered from the item's media,
	// empty when there is none. ErrExtractionFailed (possibly
	// wrapped) signals a recoverable failure.
	ExtractText(ctx context.Context, item *core.ContentItem) (string, error)
}

// MergeText combines original content with extracted text into the
// form that gets embedded and published. Either part may be empty.
func MergeText(content, extracted string) string {
	content = strings.TrimSpace(content)
	extracted = strings.TrimSpace(extracted)
	switch {
	case extracted == "":
		return content
	case content == "":
		return extracted
	default:
		return content + extractedTextHeader + extracted
	}
}

// CleanupItem removes the item's downloaded media files from disk and
// clears its file list. Files already gone are not errors.
func CleanupItem(item *core.ContentItem) error {
	var errs []error
	for _, path := range item.MediaFiles {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	item.MediaFiles = nil
	return errors.Join(errs...)
}

// NopExtractor never recovers any text. Used when no OCR backend is
// configured.
type NopExtractor struct{}

var _ Extractor = (*NopExtractor)(nil)

// ExtractText always returns empty text.
func (NopExtractor) ExtractText(ctx context.Context, item *core.ContentItem) (string, error) {
	return "", nil
}

// MockExtractor is a test double for Extractor.
type MockExtractor struct {
	// ExtractTextFunc is called by ExtractText if set; otherwise the
	// extractor behaves like NopExtractor.
	ExtractTextFunc func(ctx context.Context, item *core.ContentItem) (string, error)
}

var _ Extractor = (*MockExtractor)(nil)

func (m *MockExtractor) ExtractText(ctx context.Context, item *core.ContentItem) (string, error) {
	if m.ExtractTextFunc != nil {
		return m.ExtractTextFunc(ctx, item)
	}
	return "", nil
}
