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

// Package scraper attaches broadcast channels as content sources and
// buffers their posts for the ingestion pipeline.
//
// The Scraper drives a platform Client through an explicit per-channel
// state machine (unsubscribed, joining, subscribed, unsubscribing) and
// classifies every platform failure into a closed set of outcomes. Content
// reaches consumers two ways: point-in-time snapshots via Batches, used to
// build per-question ingest requests, and a continuous Stream that replays
// buffered posts and then carries live arrivals.
package scraper
