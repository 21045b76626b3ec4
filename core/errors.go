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

import "errors"

// Domain validation errors
var (
	// ErrInvalidItem indicates a ContentItem failed validation.
	ErrInvalidItem = errors.New("invalid content item")

	// ErrEmptyItemId indicates the Id field is empty.
	ErrEmptyItemId = errors.New("item id cannot be empty")

	// ErrInvalidSourceType indicates an unknown SourceType value.
	ErrInvalidSourceType = errors.New("invalid source type")

	// ErrEmptyVoterId indicates a vote was cast without a voter id.
	ErrEmptyVoterId = errors.New("voter id cannot be empty")

	// ErrEmptyMessageId indicates a vote was cast without a message id.
	ErrEmptyMessageId = errors.New("message id cannot be empty")
)
