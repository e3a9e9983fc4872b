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

import "context"

// ChatType classifies a chat on the platform. Only broadcast channels are
// accepted as content sources.
type ChatType string

const (
	ChatTypeChannel    ChatType = "channel"
	ChatTypeGroup      ChatType = "group"
	ChatTypeSupergroup ChatType = "supergroup"
	ChatTypePrivate    ChatType = "private"
)

// Broadcast reports whether the chat type is a broadcast channel.
func (t ChatType) Broadcast() bool {
	return t == ChatTypeChannel
}

// Chat describes a chat resolved on the platform.
type Chat struct {
	ID    int64
	Title string
	Type  ChatType
}

// Message is a raw platform message. Messages without text are skipped
// during fetching.
type Message struct {
	ID   int64
	Text string
}

// Client is the platform transport the scraper drives. Implementations talk
// the chat wire protocol; failures are classified into the sentinel errors
// of this package so callers can branch on outcome instead of parsing
// platform error strings.
type Client interface {
	// Resolve looks up a chat by reference (username, invite link or
	// numeric id) without joining it.
	Resolve(ctx context.Context, ref string) (*Chat, error)

	// Member reports whether the account participates in the chat.
	// Returns nil when it does and ErrNotParticipant when it does not.
	Member(ctx context.Context, chatID int64) error

	// Join joins the chat by reference and returns it.
	Join(ctx context.Context, ref string) (*Chat, error)

	// Leave leaves the chat.
	Leave(ctx context.Context, chatID int64) error

	// History returns up to limit of the most recent messages,
	// newest first.
	History(ctx context.Context, chatID int64, limit int) ([]Message, error)
}
