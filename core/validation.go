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

import "fmt"

// ValidateIngestRequest validates an IngestRequest according to domain rules.
//
// Validation rules:
//   - UserID must be set
//   - Question must not be empty
//
// NOT validated:
//   - Batches (an empty batch set is legal; the pipeline answers it with a
//     no-information response)
func ValidateIngestRequest(req *IngestRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", ErrInvalidRequest)
	}

	if req.UserID == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, ErrMissingUserID)
	}

	if req.Question == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, ErrEmptyQuestion)
	}

	return nil
}

// ValidateUser validates a User record.
func ValidateUser(user *User) error {
	if user == nil {
		return fmt.Errorf("user is nil")
	}
	if user.Name == "" {
		return ErrEmptyUserName
	}
	return nil
}

// ValidateChannel validates a Channel record.
func ValidateChannel(channel *Channel) error {
	if channel == nil {
		return fmt.Errorf("channel is nil")
	}
	if channel.Title == "" {
		return ErrEmptyChannelTitle
	}
	if channel.Subscribers < 0 {
		return ErrNegativeSubscribers
	}
	return nil
}
