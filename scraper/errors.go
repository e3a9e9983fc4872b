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
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRef indicates the channel reference does not resolve to
	// any chat on the platform.
	ErrInvalidRef = errors.New("invalid channel reference")

	// ErrPrivate indicates the chat is private or otherwise inaccessible
	// to the account.
	ErrPrivate = errors.New("channel is private or inaccessible")

	// ErrNotParticipant indicates the account does not participate in
	// the chat.
	ErrNotParticipant = errors.New("account is not a participant")

	// ErrAlreadyParticipant indicates a join attempt for a chat the
	// account already participates in.
	ErrAlreadyParticipant = errors.New("account already participates")

	// ErrJoinRequestSent indicates the join produced a pending request
	// awaiting admin approval instead of immediate membership.
	ErrJoinRequestSent = errors.New("join request sent, awaiting approval")

	// ErrNotSubscribed indicates an operation on a channel the scraper
	// is not subscribed to.
	ErrNotSubscribed = errors.New("channel is not subscribed")
)

// RateLimitError is returned by the client when the platform demands a
// pause. The scraper honors RetryAfter before retrying the call.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}
