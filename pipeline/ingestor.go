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

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"github.com/telerag/telerag/ai"
	"github.com/telerag/telerag/core"
	"github.com/telerag/telerag/scraper"
	"github.com/telerag/telerag/storage"
)

// ChannelCollection derives the name of a channel's long-lived collection.
// The facade uses it to drop the collection when the channel loses its last
// subscriber.
func ChannelCollection(channelID int64) string {
	return fmt.Sprintf("channel-%d", channelID)
}

// Ingestor continuously feeds channel content into long-lived per-channel
// collections. It consumes a scraper stream and processes messages on a
// worker pool; chunk keys are content hashes, so re-ingesting identical
// text is a no-op.
type Ingestor struct {
	vectors    storage.VectorStore
	embedder   ai.Embedder
	normalizer *Normalizer
	chunker    *Chunker
	pool       *ants.Pool
	logger     *slog.Logger
	running    atomic.Bool
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor) error

// WithIngestPoolSize sets the worker pool size for concurrent ingestion.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithIngestPoolSize(size int) IngestorOption {
	return func(i *Ingestor) error {
		if size < 1 {
			size = 1
		}
		if i.pool != nil {
			i.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		i.pool = pool
		return nil
	}
}

// WithIngestMaxChunkSize sets the maximum chunk size in runes.
func WithIngestMaxChunkSize(size int) IngestorOption {
	return func(i *Ingestor) error {
		chunker, err := NewChunker(size)
		if err != nil {
			return err
		}
		i.chunker = chunker
		return nil
	}
}

// WithIngestLanguage sets the stop-word language for normalization.
func WithIngestLanguage(language string) IngestorOption {
	return func(i *Ingestor) error {
		normalizer, err := NewNormalizer(language)
		if err != nil {
			return err
		}
		i.normalizer = normalizer
		return nil
	}
}

// NewIngestor creates a channel content ingestor.
func NewIngestor(vectors storage.VectorStore, provider ai.Provider, opts ...IngestorOption) (*Ingestor, error) {
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}

	normalizer, err := NewNormalizer("english")
	if err != nil {
		return nil, err
	}
	chunker, err := NewChunker(defaultMaxChunkSize)
	if err != nil {
		return nil, err
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	ing := &Ingestor{
		vectors:    vectors,
		embedder:   provider.Embedder(),
		normalizer: normalizer,
		chunker:    chunker,
		pool:       pool,
		logger:     slog.Default().With("component", "ingestor"),
	}
	for _, opt := range opts {
		if err := opt(ing); err != nil {
			pool.Release()
			return nil, err
		}
	}
	return ing, nil
}

// Run consumes the stream until it is closed, dispatching each message to
// the worker pool. Returns after all dispatched work has finished.
func (i *Ingestor) Run(ctx context.Context, stream <-chan scraper.StreamMessage) error {
	if !i.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer i.running.Store(false)

	i.logger.Info("ingestor started")
	var wg sync.WaitGroup
	for msg := range stream {
		wg.Add(1)
		if err := i.pool.Submit(func() {
			defer wg.Done()
			i.ingest(ctx, msg)
		}); err != nil {
			wg.Done()
			i.logger.Error("failed to submit ingest task",
				"channel_id", msg.ChannelID, "error", err)
		}
	}
	wg.Wait()
	i.logger.Info("ingestor stopped")
	return nil
}

// Close releases the worker pool.
func (i *Ingestor) Close() {
	i.pool.Release()
}

// ingest chunks, embeds and upserts one message into its channel's
// collection. Failures drop the message with a log line; the stream is
// live content, not a durable queue.
func (i *Ingestor) ingest(ctx context.Context, msg scraper.StreamMessage) {
	normalized := i.normalizer.Normalize(msg.Post.Text, msg.ChannelTitle)
	if normalized == "" {
		return
	}

	var chunks []*core.Chunk
	for _, text := range i.chunker.Chunk(normalized) {
		chunks = append(chunks, core.NewChunk(text, msg.ChannelTitle))
	}

	texts := make([]string, len(chunks))
	for n, chunk := range chunks {
		texts[n] = chunk.Text
	}
	vectors, err := i.embedder.EmbedTexts(ctx, texts)
	if err != nil || len(vectors) != len(chunks) {
		i.logger.Error("failed to embed channel content",
			"channel_id", msg.ChannelID, "error", err)
		return
	}
	for n, vector := range vectors {
		chunks[n].Vector = vector
	}

	collection := ChannelCollection(msg.ChannelID)
	if err := i.vectors.GetOrCreateCollection(ctx, collection); err != nil {
		i.logger.Error("failed to ensure channel collection",
			"collection", collection, "error", err)
		return
	}
	if err := i.vectors.Add(ctx, collection, chunks); err != nil {
		i.logger.Error("failed to store channel content",
			"collection", collection, "error", err)
	}
}
