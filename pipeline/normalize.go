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
)

// Stop words filtered during normalization, per supported language.
var englishStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

var russianStopWords = map[string]bool{
	"и": true, "в": true, "не": true, "на": true, "я": true, "что": true,
	"с": true, "он": true, "а": true, "как": true, "это": true, "по": true,
	"но": true, "из": true, "у": true, "за": true, "то": true, "же": true,
	"о": true, "бы": true, "мы": true, "вы": true, "они": true, "она": true,
	"так": true, "был": true, "была": true, "были": true, "к": true, "до": true,
	"вот": true, "только": true, "для": true, "или": true, "ли": true,
	"его": true, "ее": true, "их": true, "от": true,
}

// Normalizer prepares raw post text for chunking and embedding: emoji and
// punctuation are stripped, text is lowercased, stop words of the configured
// language are removed, and the result is prefixed with a source-channel
// marker so provenance survives chunking. Sentence terminators are kept so
// the chunker can still find sentence boundaries.
type Normalizer struct {
	language string
	stop     map[string]bool
}

// NewNormalizer creates a normalizer for the given language
// ("english" or "russian").
func NewNormalizer(language string) (*Normalizer, error) {
	var stop map[string]bool
	switch strings.ToLower(language) {
	case "english":
		stop = englishStopWords
	case "russian":
		stop = russianStopWords
	default:
		return nil, fmt.Errorf("unsupported language %q", language)
	}
	return &Normalizer{language: language, stop: stop}, nil
}

// Normalize cleans one post's text and tags it with its source channel.
// Returns "" when nothing of the text survives cleaning.
func (n *Normalizer) Normalize(text, channelTitle string) string {
	var out []string
	for _, sentence := range SplitSentences(text) {
		cleaned := n.cleanSentence(sentence)
		if cleaned == "" {
			continue
		}
		out = append(out, cleaned+".")
	}
	if len(out) == 0 {
		return ""
	}
	return fmt.Sprintf("[source:%s] %s", channelTitle, strings.Join(out, " "))
}

// cleanSentence lowercases a sentence, drops everything that is not a letter
// or digit (punctuation, emoji, symbols) and removes stop words.
func (n *Normalizer) cleanSentence(sentence string) string {
	var b strings.Builder
	b.Grow(len(sentence))
	for _, r := range sentence {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	filtered := words[:0]
	for _, word := range words {
		if !n.stop[word] {
			filtered = append(filtered, word)
		}
	}
	return strings.Join(filtered, " ")
}
