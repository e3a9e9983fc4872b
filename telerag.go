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

// Package telerag answers questions from the content of subscribed
// broadcast channels. Users attach channels as sources; questions are
// answered by retrieving the channels' recent content and summarizing it
// with a language model, grounded strictly in what the channels said.
package telerag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/telerag/telerag/ai"
	"github.com/telerag/telerag/ai/openai"
	"github.com/telerag/telerag/core"
	"github.com/telerag/telerag/pipeline"
	"github.com/telerag/telerag/scraper"
	"github.com/telerag/telerag/storage"
	"github.com/telerag/telerag/storage/badger"
)

// Service wires the subscription registry, the channel scraper and the
// question pipeline behind one front-end facing API.
type Service struct {
	backend  *badger.Backend
	accounts storage.AccountRepository
	vectors  storage.VectorStore
	provider ai.Provider
	scraper  *scraper.Scraper
	pipe     *pipeline.Pipeline
	ingestor *pipeline.Ingestor
	logger   *slog.Logger

	started atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	storagePath  string
	inMemory     bool
	aiConfig     *ai.Config
	provider     ai.Provider
	historyLimit int
	maxChunkSize int
	topResults   int
	language     string
}

// WithStoragePath sets the directory of the on-disk store.
// Default is "telerag-data".
func WithStoragePath(path string) ServiceOption {
	return func(o *serviceOptions) {
		o.storagePath = path
		o.inMemory = false
	}
}

// WithInMemoryStorage keeps all state in memory; nothing survives a restart.
func WithInMemoryStorage() ServiceOption {
	return func(o *serviceOptions) {
		o.inMemory = true
	}
}

// WithAIConfig sets the AI gateway configuration.
func WithAIConfig(cfg *ai.Config) ServiceOption {
	return func(o *serviceOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider injects a ready AI provider instead of constructing one from
// the AI configuration. The service takes ownership and closes it.
func WithProvider(provider ai.Provider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithHistoryLimit sets the number of recent messages fetched per channel.
func WithHistoryLimit(limit int) ServiceOption {
	return func(o *serviceOptions) {
		o.historyLimit = limit
	}
}

// WithMaxChunkSize sets the maximum chunk size in runes.
func WithMaxChunkSize(size int) ServiceOption {
	return func(o *serviceOptions) {
		o.maxChunkSize = size
	}
}

// WithTopResults sets how many retrieved chunks ground an answer.
func WithTopResults(n int) ServiceOption {
	return func(o *serviceOptions) {
		o.topResults = n
	}
}

// WithLanguage sets the stop-word language for text normalization.
func WithLanguage(language string) ServiceOption {
	return func(o *serviceOptions) {
		o.language = language
	}
}

// NewService assembles a service on top of the given platform client.
func NewService(client scraper.Client, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		storagePath:  "telerag-data",
		aiConfig:     ai.DefaultConfig(),
		historyLimit: 50,
		maxChunkSize: 512,
		topResults:   5,
		language:     "english",
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(options.storagePath, options.inMemory)
	if err != nil {
		return nil, err
	}
	accounts := badger.NewAccountRepository(backend)
	vectors := badger.NewCollectionStore(backend)

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	scr, err := scraper.NewScraper(client, scraper.WithHistoryLimit(options.historyLimit))
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	pipe, err := pipeline.NewPipeline(vectors, provider,
		pipeline.WithMaxChunkSize(options.maxChunkSize),
		pipeline.WithTopResults(options.topResults),
		pipeline.WithLanguage(options.language),
	)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	ingestor, err := pipeline.NewIngestor(vectors, provider,
		pipeline.WithIngestMaxChunkSize(options.maxChunkSize),
		pipeline.WithIngestLanguage(options.language),
	)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	return &Service{
		backend:  backend,
		accounts: accounts,
		vectors:  vectors,
		provider: provider,
		scraper:  scr,
		pipe:     pipe,
		ingestor: ingestor,
		logger:   slog.Default().With("component", "service"),
	}, nil
}

// Start launches the pipeline worker and the channel ingestor. Both run
// until Close.
func (s *Service) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return pipeline.ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		if err := s.pipe.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("pipeline loop ended", "error", err)
		}
	}()
	stream := s.scraper.Stream(runCtx)
	go func() {
		defer s.wg.Done()
		if err := s.ingestor.Run(runCtx, stream); err != nil {
			s.logger.Error("ingestor loop ended", "error", err)
		}
	}()
	return nil
}

// Close stops the loops and releases all resources.
func (s *Service) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.ingestor.Close()

	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}
	if err := s.vectors.Close(); err != nil {
		s.logger.Error("error closing vector store", "err", err)
	}
	if err := s.accounts.Close(); err != nil {
		s.logger.Error("error closing account repository", "err", err)
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// RegisterUser creates a user account with no subscriptions.
func (s *Service) RegisterUser(ctx context.Context, id int64, name string) error {
	return s.accounts.CreateUser(ctx, id, name)
}

// RemoveUser deletes a user and releases every channel reference the user
// held. Channels left without subscribers are unsubscribed from the platform
// exactly once and their collections dropped.
func (s *Service) RemoveUser(ctx context.Context, id int64) error {
	orphaned, err := s.accounts.DeleteUser(ctx, id)
	if err != nil {
		return err
	}
	s.releaseChannels(ctx, orphaned)
	return nil
}

// AddChannel subscribes the user to a channel by reference. The channel is
// registered in the registry on its first subscriber; every further
// subscriber only bumps the reference count.
func (s *Service) AddChannel(ctx context.Context, userID int64, ref string) (scraper.SubscribeResult, error) {
	if _, err := s.accounts.GetUser(ctx, userID); err != nil {
		return scraper.SubscribeResult{}, err
	}

	result := s.scraper.Subscribe(ctx, ref)
	if result.Status != scraper.StatusSubscribed && result.Status != scraper.StatusAlreadySubscribed {
		return result, nil
	}

	if err := s.accounts.CreateChannel(ctx, result.ChannelID, result.ChannelTitle); err != nil &&
		!errors.Is(err, storage.ErrAlreadyExists) {
		return result, fmt.Errorf("registering channel %d: %w", result.ChannelID, err)
	}
	if _, err := s.accounts.UpdateUserChannels(ctx, userID, []int64{result.ChannelID}, nil); err != nil {
		return result, fmt.Errorf("subscribing user %d to channel %d: %w", userID, result.ChannelID, err)
	}
	return result, nil
}

// RemoveChannel releases the user's reference to a channel. When the last
// reference goes away, the channel is unsubscribed and its collection
// dropped.
func (s *Service) RemoveChannel(ctx context.Context, userID, channelID int64) error {
	orphaned, err := s.accounts.UpdateUserChannels(ctx, userID, nil, []int64{channelID})
	if err != nil {
		return err
	}
	s.releaseChannels(ctx, orphaned)
	return nil
}

// Ask enqueues a question for the user, answered from the buffered content
// of the user's subscribed channels. The answer arrives via NextResponse.
func (s *Service) Ask(ctx context.Context, userID int64, question string) error {
	user, err := s.accounts.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	return s.pipe.Enqueue(&core.IngestRequest{
		UserID:   userID,
		Question: question,
		Batches:  s.scraper.Batches(user.Channels),
	})
}

// NextResponse blocks until the next answer is available, in request
// completion order.
func (s *Service) NextResponse(ctx context.Context) (*core.Response, error) {
	return s.pipe.NextResponse(ctx)
}

// releaseChannels tears down channels that lost their last subscriber:
// platform unsubscribe plus collection removal. Failures are logged; the
// registry already dropped the records.
func (s *Service) releaseChannels(ctx context.Context, channelIDs []int64) {
	for _, id := range channelIDs {
		if err := s.scraper.Unsubscribe(ctx, id); err != nil {
			s.logger.Warn("failed to unsubscribe orphaned channel",
				"channel_id", id, "error", err)
		}
		if err := s.vectors.DeleteCollection(ctx, pipeline.ChannelCollection(id)); err != nil {
			s.logger.Warn("failed to drop channel collection",
				"channel_id", id, "error", err)
		}
	}
}
