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


package core

import "fmt"

// ValidateItem validates a ContentItem according to domain rules.
//
// Validation rules:
//   - Id must not be empty
//   - SourceType must be a known value
//
// NOT validated:
//   - Content (image-only items legitimately arrive empty and are
//     synthesized by the pipeline)
//   - Timestamp (0 means the source provided none and sorts earliest)
func ValidateItem(item *ContentItem) error {
	if item == nil {
		return fmt.Errorf("%w: item is nil", ErrInvalidItem)
	}

	if item.Id == "" {
		return fmt.Errorf("%w: %w", ErrInvalidItem, ErrEmptyItemId)
	}

	if err := ValidateSourceType(item.SourceType); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}

	return nil
}

// ValidateSourceType validates that a SourceType has a known value.
func ValidateSourceType(source SourceType) error {
	if source != SourceTwitter && source != SourceTelegram {
		return fmt.Errorf("%w: %q", ErrInvalidSourceType, source)
	}
	return nil
}
