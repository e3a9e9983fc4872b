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

package badger

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/telerag/telerag/core"
	"github.com/telerag/telerag/storage"
)

// CollectionStore implements storage.VectorStore for BadgerDB.
//
// Documents are stored under per-collection key prefixes and queries are a
// brute-force cosine scan over the collection. That keeps the store exact
// and dependency-free at the collection sizes this system works with; the
// interface leaves room for an approximate index behind the same contract.
type CollectionStore struct {
	backend *Backend
}

var _ storage.VectorStore = (*CollectionStore)(nil)

// NewCollectionStore creates a new CollectionStore.
func NewCollectionStore(backend *Backend) *CollectionStore {
	return &CollectionStore{backend: backend}
}

// Close is a no-op; the backend owns the database handle.
func (s *CollectionStore) Close() error {
	return nil
}

// GetOrCreateCollection ensures the named collection exists. Concurrent
// creation of the same collection is serialized by conflict retry.
func (s *CollectionStore) GetOrCreateCollection(ctx context.Context, name string) error {
	return s.backend.WithRetryTx(func(tx *badger.Txn) error {
		key := collectionKey(name)
		_, err := tx.Get(key)
		if err == nil {
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		if err := tx.Set(key, []byte(name)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// CollectionExists reports whether the named collection exists.
func (s *CollectionStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(collectionKey(name))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	}, false)
	return exists, err
}

// DeleteCollection removes the collection record and every document stored
// under it. Deleting an absent collection is a no-op.
func (s *CollectionStore) DeleteCollection(ctx context.Context, name string) error {
	return s.backend.WithRetryTx(func(tx *badger.Txn) error {
		// Collect document keys first; deleting while iterating is not
		// supported by the iterator.
		var keys [][]byte

		opts := badger.DefaultIteratorOptions
		opts.Prefix = documentPrefix(name)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		if err := tx.Delete(collectionKey(name)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Add upserts chunks into the collection, keyed by their content-derived
// IDs. Re-adding a chunk with identical text overwrites the previous
// document, so repeated ingestion of the same posts stays duplicate-free.
func (s *CollectionStore) Add(ctx context.Context, collection string, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := tx.Get(collectionKey(collection)); err != nil {
			if err == badger.ErrKeyNotFound {
				return fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, collection)
			}
			return err
		}

		for _, chunk := range chunks {
			key := documentKey(collection, chunk.ID)
			if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Query returns up to topN chunks ranked by cosine similarity to the given
// vector, highest first.
func (s *CollectionStore) Query(ctx context.Context, collection string, vector []float32, topN int) ([]storage.Match, error) {
	var results []storage.Match

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := tx.Get(collectionKey(collection)); err != nil {
			if err == badger.ErrKeyNotFound {
				return fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, collection)
			}
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = documentPrefix(collection)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()

			var chunk *core.Chunk
			err := item.Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if chunk == nil || len(chunk.Vector) == 0 {
				continue
			}

			results = append(results, storage.Match{
				Chunk: chunk,
				Score: cosineSimilarity(vector, chunk.Vector),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortFunc(results, func(a, b storage.Match) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if topN >= 0 && len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Embedding models do not all return unit-length vectors, so the dot product
// is normalized explicitly. Returns 0 when either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
