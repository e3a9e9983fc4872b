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

package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/telerag/telerag/core"
)

const defaultHistoryLimit = 50

// channelState tracks a channel through its subscription lifecycle.
type channelState int

const (
	stateUnsubscribed channelState = iota
	stateJoining
	stateSubscribed
	stateUnsubscribing
)

func (s channelState) String() string {
	switch s {
	case stateJoining:
		return "joining"
	case stateSubscribed:
		return "subscribed"
	case stateUnsubscribing:
		return "unsubscribing"
	default:
		return "unsubscribed"
	}
}

// SubscribeStatus classifies the outcome of a Subscribe call. Outcomes are
// returned by value, never as errors, so callers branch on a closed set.
type SubscribeStatus int

const (
	// StatusError is a generic failure: invalid reference or an
	// unclassified platform error.
	StatusError SubscribeStatus = iota
	// StatusSubscribed means the channel was subscribed and its initial
	// history fetched.
	StatusSubscribed
	// StatusAlreadySubscribed means the channel was already subscribed.
	StatusAlreadySubscribed
	// StatusRequestSent means the join produced a pending approval
	// request; the channel is not subscribed.
	StatusRequestSent
	// StatusPrivate means the channel is private or inaccessible.
	StatusPrivate
	// StatusRejected means the chat resolved but is not a broadcast
	// channel; the scraper left it immediately.
	StatusRejected
)

func (s SubscribeStatus) String() string {
	switch s {
	case StatusSubscribed:
		return "subscribed"
	case StatusAlreadySubscribed:
		return "already_subscribed"
	case StatusRequestSent:
		return "request_sent"
	case StatusPrivate:
		return "private_channel"
	case StatusRejected:
		return "rejected"
	default:
		return "error"
	}
}

// SubscribeResult is the outcome of a Subscribe call. ChannelID and
// ChannelTitle are set for StatusSubscribed and StatusAlreadySubscribed.
type SubscribeResult struct {
	Status       SubscribeStatus
	ChannelID    int64
	ChannelTitle string
	Description  string
}

// StreamMessage is one buffered or live post together with its provenance.
type StreamMessage struct {
	ChannelID    int64
	ChannelTitle string
	Post         core.Post
}

type channelRecord struct {
	chat  Chat
	state channelState
	posts []core.Post
}

// listener buffers stream messages for one Stream consumer so a slow
// consumer never blocks delivery.
type listener struct {
	mu     sync.Mutex
	items  []StreamMessage
	signal chan struct{}
}

func (l *listener) push(msgs ...StreamMessage) {
	l.mu.Lock()
	l.items = append(l.items, msgs...)
	l.mu.Unlock()
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

func (l *listener) drain() []StreamMessage {
	l.mu.Lock()
	items := l.items
	l.items = nil
	l.mu.Unlock()
	return items
}

// Scraper manages channel subscriptions on top of a platform Client. It
// owns the per-channel state records and buffered content; all platform
// failures are classified before they reach the caller.
type Scraper struct {
	client       Client
	historyLimit int
	logger       *slog.Logger

	mu           sync.Mutex
	channels     map[int64]*channelRecord
	listeners    map[int]*listener
	nextListener int
}

// Option configures a Scraper.
type Option func(*Scraper) error

// WithHistoryLimit sets the number of recent messages fetched per channel.
func WithHistoryLimit(limit int) Option {
	return func(s *Scraper) error {
		if limit <= 0 {
			return fmt.Errorf("history limit must be positive, got %d", limit)
		}
		s.historyLimit = limit
		return nil
	}
}

// NewScraper creates a Scraper driving the given client.
func NewScraper(client Client, opts ...Option) (*Scraper, error) {
	s := &Scraper{
		client:       client,
		historyLimit: defaultHistoryLimit,
		logger:       slog.Default().With("component", "scraper"),
		channels:     make(map[int64]*channelRecord),
		listeners:    make(map[int]*listener),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Subscribe attaches a channel as a content source: resolve the reference,
// confirm membership, join when needed, accept only broadcast channels, then
// fetch the initial history. Any failure leaves the channel unsubscribed
// with nothing partially registered.
func (s *Scraper) Subscribe(ctx context.Context, ref string) SubscribeResult {
	chat, err := withRateLimitRetry(ctx, s.logger, func() (*Chat, error) {
		return s.client.Resolve(ctx, ref)
	})
	if err != nil {
		return s.classifyFailure(ref, err)
	}

	_, memberErr := withRateLimitRetry(ctx, s.logger, func() (struct{}, error) {
		return struct{}{}, s.client.Member(ctx, chat.ID)
	})
	switch {
	case memberErr == nil:
		s.mu.Lock()
		rec, tracked := s.channels[chat.ID]
		s.mu.Unlock()
		if tracked && rec.state == stateSubscribed {
			return SubscribeResult{
				Status:       StatusAlreadySubscribed,
				ChannelID:    chat.ID,
				ChannelTitle: chat.Title,
				Description:  "channel already subscribed",
			}
		}
		// The account participates but this process has no record of it
		// (recovered session). Adopt the membership as a subscription.
		return s.accept(ctx, chat)
	case errors.Is(memberErr, ErrNotParticipant):
		// fall through to join
	default:
		return s.classifyFailure(ref, memberErr)
	}

	s.setState(chat.ID, chat, stateJoining)
	joined, err := withRateLimitRetry(ctx, s.logger, func() (*Chat, error) {
		return s.client.Join(ctx, ref)
	})
	switch {
	case err == nil:
		// Re-lookup after joining; the join response can carry a
		// partial chat record.
		refreshed, err := withRateLimitRetry(ctx, s.logger, func() (*Chat, error) {
			return s.client.Resolve(ctx, ref)
		})
		if err != nil {
			s.forget(joined.ID)
			s.forget(chat.ID)
			return s.classifyFailure(ref, err)
		}
		chat = refreshed
	case errors.Is(err, ErrAlreadyParticipant):
		// Keep the chat from the lookup.
	default:
		s.forget(chat.ID)
		return s.classifyFailure(ref, err)
	}

	return s.accept(ctx, chat)
}

// accept registers a resolved, joined chat as a subscribed channel after the
// broadcast type check and runs the initial history fetch.
func (s *Scraper) accept(ctx context.Context, chat *Chat) SubscribeResult {
	if !chat.Type.Broadcast() {
		if _, err := withRateLimitRetry(ctx, s.logger, func() (struct{}, error) {
			return struct{}{}, s.client.Leave(ctx, chat.ID)
		}); err != nil {
			s.logger.Warn("failed to leave rejected chat",
				"chat_id", chat.ID, "error", err)
		}
		s.forget(chat.ID)
		return SubscribeResult{
			Status:      StatusRejected,
			Description: fmt.Sprintf("chat type %q is not a broadcast channel", chat.Type),
		}
	}

	s.setState(chat.ID, chat, stateSubscribed)
	if err := s.Fetch(ctx, chat.ID); err != nil {
		s.logger.Warn("initial history fetch failed",
			"channel_id", chat.ID, "error", err)
	}

	s.logger.Info("channel subscribed", "channel_id", chat.ID, "title", chat.Title)
	return SubscribeResult{
		Status:       StatusSubscribed,
		ChannelID:    chat.ID,
		ChannelTitle: chat.Title,
		Description:  "subscribed",
	}
}

// classifyFailure maps a classified client error to a result variant.
func (s *Scraper) classifyFailure(ref string, err error) SubscribeResult {
	switch {
	case errors.Is(err, ErrPrivate):
		return SubscribeResult{
			Status:      StatusPrivate,
			Description: fmt.Sprintf("channel %q is private or inaccessible", ref),
		}
	case errors.Is(err, ErrJoinRequestSent):
		return SubscribeResult{
			Status:      StatusRequestSent,
			Description: "join request sent, awaiting approval",
		}
	case errors.Is(err, ErrInvalidRef):
		return SubscribeResult{
			Status:      StatusError,
			Description: fmt.Sprintf("invalid channel reference %q", ref),
		}
	default:
		return SubscribeResult{
			Status:      StatusError,
			Description: err.Error(),
		}
	}
}

// Unsubscribe leaves the channel and discards its buffered content. Valid
// only for subscribed channels.
func (s *Scraper) Unsubscribe(ctx context.Context, channelID int64) error {
	s.mu.Lock()
	rec, ok := s.channels[channelID]
	if !ok || rec.state != stateSubscribed {
		s.mu.Unlock()
		return fmt.Errorf("%w: channel %d", ErrNotSubscribed, channelID)
	}
	rec.state = stateUnsubscribing
	s.mu.Unlock()

	_, err := withRateLimitRetry(ctx, s.logger, func() (struct{}, error) {
		return struct{}{}, s.client.Leave(ctx, channelID)
	})

	// The record and its buffered content are dropped even when the
	// leave call failed; the subscription is gone from this component's
	// viewpoint either way.
	s.forget(channelID)
	if err != nil {
		return fmt.Errorf("leaving channel %d: %w", channelID, err)
	}

	s.logger.Info("channel unsubscribed", "channel_id", channelID)
	return nil
}

// Subscribed reports whether the channel is currently subscribed.
func (s *Scraper) Subscribed(channelID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.channels[channelID]
	return ok && rec.state == stateSubscribed
}

// Fetch pulls the most recent text-bearing messages of a subscribed channel
// and appends them to its buffer, most recent last. A platform rate limit
// suspends the fetch for the mandated duration and retries without dropping
// anything already collected.
func (s *Scraper) Fetch(ctx context.Context, channelID int64) error {
	s.mu.Lock()
	rec, ok := s.channels[channelID]
	if !ok || rec.state != stateSubscribed {
		s.mu.Unlock()
		return fmt.Errorf("%w: channel %d", ErrNotSubscribed, channelID)
	}
	title := rec.chat.Title
	s.mu.Unlock()

	messages, err := withRateLimitRetry(ctx, s.logger, func() ([]Message, error) {
		return s.client.History(ctx, channelID, s.historyLimit)
	})
	if err != nil {
		return fmt.Errorf("fetching history of channel %d: %w", channelID, err)
	}

	// History is newest first; the buffer keeps most recent last.
	var posts []core.Post
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.TrimSpace(messages[i].Text) == "" {
			continue
		}
		posts = append(posts, core.Post{ID: messages[i].ID, Text: messages[i].Text})
	}

	s.deliver(channelID, title, posts...)
	return nil
}

// Notify feeds a live platform message into the channel's buffer and any
// active streams. Messages for unsubscribed channels and messages without
// text are dropped.
func (s *Scraper) Notify(channelID int64, msg Message) {
	if strings.TrimSpace(msg.Text) == "" {
		return
	}
	s.mu.Lock()
	title := ""
	if rec, ok := s.channels[channelID]; ok && rec.state == stateSubscribed {
		title = rec.chat.Title
	}
	s.mu.Unlock()
	if title == "" {
		return
	}
	s.deliver(channelID, title, core.Post{ID: msg.ID, Text: msg.Text})
}

// Batches snapshots the buffered content of the given channels as post
// batches. Unsubscribed channels are skipped.
func (s *Scraper) Batches(channelIDs []int64) []core.PostBatch {
	s.mu.Lock()
	defer s.mu.Unlock()

	var batches []core.PostBatch
	for _, id := range channelIDs {
		rec, ok := s.channels[id]
		if !ok || rec.state != stateSubscribed {
			continue
		}
		batches = append(batches, core.PostBatch{
			ChannelID:    id,
			ChannelTitle: rec.chat.Title,
			Posts:        slices.Clone(rec.posts),
		})
	}
	return batches
}

// Stream returns a channel that first replays all currently buffered content
// and then carries live arrivals until ctx is cancelled. The returned
// channel is closed on cancellation; closure is the end-of-stream signal.
func (s *Scraper) Stream(ctx context.Context) <-chan StreamMessage {
	out := make(chan StreamMessage)
	l := &listener{signal: make(chan struct{}, 1)}

	s.mu.Lock()
	for _, id := range slices.Sorted(maps.Keys(s.channels)) {
		rec := s.channels[id]
		if rec.state != stateSubscribed {
			continue
		}
		for _, post := range rec.posts {
			l.items = append(l.items, StreamMessage{
				ChannelID:    id,
				ChannelTitle: rec.chat.Title,
				Post:         post,
			})
		}
	}
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = l
	s.mu.Unlock()

	go func() {
		defer close(out)
		defer s.removeListener(id)
		for {
			for _, msg := range l.drain() {
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-l.signal:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// deliver appends posts to the channel buffer and forwards them to active
// stream listeners. Dropped silently if the channel left the subscribed
// state in the meantime.
func (s *Scraper) deliver(channelID int64, title string, posts ...core.Post) {
	if len(posts) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.channels[channelID]
	if !ok || rec.state != stateSubscribed {
		return
	}
	rec.posts = append(rec.posts, posts...)

	if len(s.listeners) == 0 {
		return
	}
	msgs := make([]StreamMessage, len(posts))
	for i, post := range posts {
		msgs[i] = StreamMessage{ChannelID: channelID, ChannelTitle: title, Post: post}
	}
	for _, l := range s.listeners {
		l.push(msgs...)
	}
}

func (s *Scraper) setState(channelID int64, chat *Chat, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.channels[channelID]
	if !ok {
		rec = &channelRecord{chat: *chat}
		s.channels[channelID] = rec
	}
	rec.chat = *chat
	rec.state = state
}

func (s *Scraper) forget(channelID int64) {
	s.mu.Lock()
	delete(s.channels, channelID)
	s.mu.Unlock()
}

func (s *Scraper) removeListener(id int) {
	s.mu.Lock()
	delete(s.listeners, id)
	s.mu.Unlock()
}

// withRateLimitRetry runs fn, honoring platform rate limits by waiting the
// mandated duration and retrying. Cancelling ctx aborts the wait.
func withRateLimitRetry[T any](ctx context.Context, logger *slog.Logger, fn func() (T, error)) (T, error) {
	for {
		v, err := fn()
		var rle *RateLimitError
		if !errors.As(err, &rle) {
			return v, err
		}

		logger.Warn("rate limited by platform", "retry_after", rle.RetryAfter)
		timer := time.NewTimer(rle.RetryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return v, ctx.Err()
		case <-timer.C:
		}
	}
}
