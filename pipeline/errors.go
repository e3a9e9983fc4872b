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

package pipeline

import "errors"

var (
	// ErrVectorStoreRequired is returned when no vector store is provided.
	ErrVectorStoreRequired = errors.New("vector store is required")

	// ErrProviderRequired is returned when no AI provider is provided.
	ErrProviderRequired = errors.New("ai provider is required")

	// ErrAlreadyRunning is returned when Run is invoked on a pipeline or
	// ingestor whose loop is already running.
	ErrAlreadyRunning = errors.New("already running")

	// Stage errors. A failed stage fails the current request; it is not
	// retried or requeued, and collection cleanup still runs.

	// ErrEmbedding marks an embedding gateway failure.
	ErrEmbedding = errors.New("embedding failed")

	// ErrStore marks a vector store failure.
	ErrStore = errors.New("vector store operation failed")

	// ErrGenerate marks a language model failure.
	ErrGenerate = errors.New("answer generation failed")
)
