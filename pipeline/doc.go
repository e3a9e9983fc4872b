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

// Package pipeline turns channel content into grounded answers.
//
// The Pipeline is the per-question path: a single worker takes requests off
// an unbounded FIFO queue and runs each through normalize, chunk, embed,
// store into an ephemeral per-user collection, retrieve, generate, and
// unconditional collection cleanup, producing exactly one response per
// request. The Ingestor is the continuous path: it consumes a scraper
// stream and upserts chunks into long-lived per-channel collections, where
// content-hash keys make re-ingestion idempotent.
package pipeline
