// Copyright 2025 The telerag authors
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

// Package storage provides the storage abstraction layer for telerag.
//
// This package defines two independent contracts that decouple storage
// implementations from business logic:
//
//   - AccountRepository: the subscription registry — users and channels with
//     reference-counted channel lifecycles. Releasing the last reference
//     deletes the channel record; the ids of such orphaned channels are
//     returned so the caller can unsubscribe the content source.
//   - VectorStore: named collections of embedded text chunks with cosine
//     similarity queries. Documents are keyed by content hash, so adding
//     identical text twice stores a single document.
//
// Implementation packages return concrete types and assert the contracts at
// compile time:
//
//	accounts := badger.NewAccountRepository(backend) // storage.AccountRepository
//	vectors := badger.NewCollectionStore(backend)    // storage.VectorStore
//
// # Thread Safety
//
// All implementations must be thread-safe. The subscriber reference count in
// particular is mutated from multiple call sites (subscribe, unsubscribe,
// cascading user deletion) and implementations must serialize concurrent
// updates to the same channel's counter.
//
// # Context Support
//
// All methods accept context.Context for cancellation and timeout support.
package storage
