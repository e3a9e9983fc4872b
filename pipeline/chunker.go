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
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const defaultMaxChunkSize = 512

// SplitSentences splits text into sentences. A sentence ends at a run of
// '.', '!' or '?' followed by whitespace or end of text.
func SplitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		// Absorb a run of terminators ("?!", "...")
		end := i + 1
		for end < len(text) && (text[end] == '.' || text[end] == '!' || text[end] == '?') {
			end++
		}
		if end < len(text) {
			r, _ := utf8.DecodeRuneInString(text[end:])
			if !unicode.IsSpace(r) {
				i = end - 1
				continue
			}
		}
		if s := strings.TrimSpace(text[start:end]); s != "" {
			sentences = append(sentences, s)
		}
		start = end
		i = end - 1
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// Chunker splits text into sentence-bounded chunks. Sentences are greedily
// accumulated while the chunk stays within maxSize runes; a single sentence
// longer than the limit becomes a chunk of its own.
type Chunker struct {
	maxSize int
}

// NewChunker creates a chunker with the given maximum chunk size in runes.
func NewChunker(maxSize int) (*Chunker, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("max chunk size must be positive, got %d", maxSize)
	}
	return &Chunker{maxSize: maxSize}, nil
}

// Chunk splits text into chunks. Joining the chunks with a single space
// reconstructs the sentence sequence.
func (c *Chunker) Chunk(text string) []string {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	current := ""
	for _, sentence := range sentences {
		candidate := sentence
		if current != "" {
			candidate = current + " " + sentence
		}
		if utf8.RuneCountInString(candidate) <= c.maxSize {
			current = candidate
			continue
		}
		if current != "" {
			chunks = append(chunks, current)
		}
		// The sentence starts a new chunk; if it alone exceeds the
		// limit it stays a chunk of its own.
		current = sentence
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}
