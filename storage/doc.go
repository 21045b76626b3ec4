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


// Package storage defines the persistence interfaces for the aggregator
// pipeline. It decouples the processing logic from the storage backend;
// the badger subpackage provides the BadgerDB implementation.
//
// # Repositories
//
//   - StateRepository: processed-id ledger, embeddings, message mappings,
//     per-source cursors and retention cleanup
//   - RetryRepository: persisted retry queue entries
//   - VoteRepository: removal vote records keyed by message id
//   - ArchiveRepository: archive of moderator-removed entries
//
// # Thread Safety
//
// All repository implementations must be safe for concurrent use from
// multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation and
// timeout support.
package storage
