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


package pipeline

import "errors"

// Orchestrator construction errors.
var (
	ErrStateRequired     = errors.New("state repository is required")
	ErrIndexRequired     = errors.New("similarity index is required")
	ErrQueueRequired     = errors.New("retry queue is required")
	ErrProviderRequired  = errors.New("ai provider is required")
	ErrPublisherRequired = errors.New("publisher is required")
)
