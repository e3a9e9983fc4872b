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
	"sync/atomic"

	"github.com/telerag/telerag/ai"
	"github.com/telerag/telerag/core"
	"github.com/telerag/telerag/storage"
)

const defaultTopResults = 5

// userCollection derives the name of a user's ephemeral collection. The
// name is deterministic, which is why at most one request per user may be
// in flight; the single-worker loop guarantees that.
func userCollection(userID int64) string {
	return fmt.Sprintf("user-%d", userID)
}

// Pipeline answers questions from channel content. Requests are consumed
// from an unbounded FIFO queue by a single worker, one full
// ingest-query-generate-cleanup cycle at a time; responses are pushed to a
// response queue in completion order.
type Pipeline struct {
	vectors    storage.VectorStore
	embedder   ai.Embedder
	generator  ai.Generator
	normalizer *Normalizer
	chunker    *Chunker
	topResults int
	logger     *slog.Logger

	requests  *Queue[*core.IngestRequest]
	responses *Queue[*core.Response]
	running   atomic.Bool
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithMaxChunkSize sets the maximum chunk size in runes.
// Default is 512.
func WithMaxChunkSize(size int) Option {
	return func(p *Pipeline) error {
		chunker, err := NewChunker(size)
		if err != nil {
			return err
		}
		p.chunker = chunker
		return nil
	}
}

// WithTopResults sets how many retrieved chunks ground the answer.
// Default is 5.
func WithTopResults(n int) Option {
	return func(p *Pipeline) error {
		if n <= 0 {
			return fmt.Errorf("top results must be positive, got %d", n)
		}
		p.topResults = n
		return nil
	}
}

// WithLanguage sets the stop-word language for normalization.
// Default is "english".
func WithLanguage(language string) Option {
	return func(p *Pipeline) error {
		normalizer, err := NewNormalizer(language)
		if err != nil {
			return err
		}
		p.normalizer = normalizer
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a question-answering pipeline.
func NewPipeline(vectors storage.VectorStore, provider ai.Provider, opts ...Option) (*Pipeline, error) {
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

	p := &Pipeline{
		vectors:    vectors,
		embedder:   provider.Embedder(),
		generator:  provider.Generator(),
		normalizer: normalizer,
		chunker:    chunker,
		topResults: defaultTopResults,
		logger:     slog.Default().With("component", "pipeline"),
		requests:   NewQueue[*core.IngestRequest](),
		responses:  NewQueue[*core.Response](),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Enqueue adds a request to the tail of the request queue. Invalid requests
// are rejected synchronously; a queued request is never rejected afterwards.
func (p *Pipeline) Enqueue(req *core.IngestRequest) error {
	if err := core.ValidateIngestRequest(req); err != nil {
		return err
	}
	p.requests.Enqueue(req)
	return nil
}

// NextResponse blocks until the next response is available, in request
// completion order.
func (p *Pipeline) NextResponse(ctx context.Context) (*core.Response, error) {
	return p.responses.Dequeue(ctx)
}

// Pending returns the number of queued, unstarted requests.
func (p *Pipeline) Pending() int {
	return p.requests.Len()
}

// Run consumes requests until ctx is cancelled. Exactly one request is in
// flight at any time; cancellation takes effect between requests, and an
// in-flight request still runs its collection cleanup.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)

	p.logger.Info("pipeline started")
	for {
		req, err := p.requests.Dequeue(ctx)
		if err != nil {
			p.logger.Info("pipeline stopped")
			return err
		}
		p.process(ctx, req)
	}
}

// process runs one request's full cycle and always produces a response.
func (p *Pipeline) process(ctx context.Context, req *core.IngestRequest) {
	logger := p.logger.With("user_id", req.UserID)

	answer, err := p.answer(ctx, req)
	resp := &core.Response{UserID: req.UserID}
	if err != nil {
		logger.Error("request failed", "error", err)
		resp.Err = err.Error()
	} else {
		resp.Answer = answer
	}
	p.responses.Enqueue(resp)
}

func (p *Pipeline) answer(ctx context.Context, req *core.IngestRequest) (string, error) {
	// Normalize and chunk all posts. A post whose text does not survive
	// normalization is skipped; the request proceeds with the rest.
	var chunks []*core.Chunk
	for _, batch := range req.Batches {
		for _, post := range batch.Posts {
			normalized := p.normalizer.Normalize(post.Text, batch.ChannelTitle)
			if normalized == "" {
				p.logger.Debug("post skipped after normalization",
					"channel_id", batch.ChannelID, "post_id", post.ID)
				continue
			}
			for _, text := range p.chunker.Chunk(normalized) {
				chunks = append(chunks, core.NewChunk(text, batch.ChannelTitle))
			}
		}
	}

	// No content means no grounded answer; the embedder is never called.
	if len(chunks) == 0 {
		return noInformationAnswer, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vectors) != len(chunks) {
		return "", fmt.Errorf("%w: got %d vectors for %d chunks",
			ErrEmbedding, len(vectors), len(chunks))
	}
	for i, vector := range vectors {
		chunks[i].Vector = vector
	}

	collection := userCollection(req.UserID)
	if err := p.vectors.GetOrCreateCollection(ctx, collection); err != nil {
		return "", fmt.Errorf("%w: creating %s: %v", ErrStore, collection, err)
	}
	// The ephemeral collection is removed whatever happens from here on,
	// even when ctx was cancelled mid-request.
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if err := p.vectors.DeleteCollection(cleanupCtx, collection); err != nil {
			p.logger.Error("collection cleanup failed",
				"collection", collection, "error", err)
		}
	}()

	if err := p.vectors.Add(ctx, collection, chunks); err != nil {
		return "", fmt.Errorf("%w: adding chunks: %v", ErrStore, err)
	}

	questionVector, err := p.embedder.EmbedText(ctx, req.Question)
	if err != nil {
		return "", fmt.Errorf("%w: embedding question: %v", ErrEmbedding, err)
	}

	matches, err := p.vectors.Query(ctx, collection, questionVector, p.topResults)
	if err != nil {
		return "", fmt.Errorf("%w: querying %s: %v", ErrStore, collection, err)
	}
	if len(matches) == 0 {
		return noInformationAnswer, nil
	}

	answer, err := p.generator.Complete(ctx, groundedSystemPrompt, composeUserPrompt(req.Question, matches))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerate, err)
	}
	return answer, nil
}
