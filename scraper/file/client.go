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

// Package file implements a scraper client backed by local text files,
// for development and offline runs. Every "<name>.txt" file in the root
// directory is a broadcast channel named <name>; posts are separated by
// blank lines, oldest first.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/telerag/telerag/core"
	"github.com/telerag/telerag/scraper"
)

// Client serves channels from a directory of text files.
type Client struct {
	root string

	mu     sync.Mutex
	joined map[int64]string // channel id -> file name
}

var _ scraper.Client = (*Client)(nil)

// NewClient creates a file-backed client rooted at dir.
func NewClient(dir string) (*Client, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return &Client{root: dir, joined: make(map[int64]string)}, nil
}

// channelID derives a stable id from the channel name. Negative, matching
// the convention of platform channel ids.
func channelID(name string) int64 {
	id := int64(core.IDFromContent(name))
	if id > 0 {
		id = -id
	}
	return id
}

func (c *Client) chatFor(ref string) (*scraper.Chat, error) {
	name := strings.TrimSuffix(filepath.Base(ref), ".txt")
	if _, err := os.Stat(c.path(name)); err != nil {
		if os.IsNotExist(err) {
			return nil, scraper.ErrInvalidRef
		}
		return nil, err
	}
	return &scraper.Chat{ID: channelID(name), Title: name, Type: scraper.ChatTypeChannel}, nil
}

func (c *Client) path(name string) string {
	return filepath.Join(c.root, name+".txt")
}

// Resolve looks up a channel file by name.
func (c *Client) Resolve(ctx context.Context, ref string) (*scraper.Chat, error) {
	return c.chatFor(ref)
}

// Member reports whether Join was called for the channel.
func (c *Client) Member(ctx context.Context, chatID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.joined[chatID]; ok {
		return nil
	}
	return scraper.ErrNotParticipant
}

// Join marks the channel as joined.
func (c *Client) Join(ctx context.Context, ref string) (*scraper.Chat, error) {
	chat, err := c.chatFor(ref)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.joined[chat.ID] = chat.Title
	c.mu.Unlock()
	return chat, nil
}

// Leave forgets the channel.
func (c *Client) Leave(ctx context.Context, chatID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.joined[chatID]; !ok {
		return scraper.ErrNotParticipant
	}
	delete(c.joined, chatID)
	return nil
}

// History reads the channel file and returns up to limit posts, newest
// first. Posts are blank-line separated, oldest first in the file.
func (c *Client) History(ctx context.Context, chatID int64, limit int) ([]scraper.Message, error) {
	c.mu.Lock()
	name, ok := c.joined[chatID]
	c.mu.Unlock()
	if !ok {
		return nil, scraper.ErrNotParticipant
	}

	data, err := os.ReadFile(c.path(name))
	if err != nil {
		return nil, err
	}

	var posts []string
	for _, block := range strings.Split(string(data), "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			posts = append(posts, block)
		}
	}

	var messages []scraper.Message
	for i := len(posts) - 1; i >= 0 && len(messages) < limit; i-- {
		messages = append(messages, scraper.Message{ID: int64(i + 1), Text: posts[i]})
	}
	return messages, nil
}
