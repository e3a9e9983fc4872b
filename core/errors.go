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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidRequest indicates an IngestRequest failed validation.
	ErrInvalidRequest = errors.New("invalid ingest request")

	// ErrEmptyQuestion indicates the request question is empty.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrMissingUserID indicates the request carries no user id.
	ErrMissingUserID = errors.New("user id is required")

	// ErrEmptyUserName indicates a user name is empty.
	ErrEmptyUserName = errors.New("user name cannot be empty")

	// ErrEmptyChannelTitle indicates a channel title is empty.
	ErrEmptyChannelTitle = errors.New("channel title cannot be empty")

	// ErrNegativeSubscribers indicates a channel subscriber count below zero.
	ErrNegativeSubscribers = errors.New("subscriber count cannot be negative")
)
