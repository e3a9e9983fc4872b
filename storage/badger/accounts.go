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

package badger

import (
	"context"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/telerag/telerag/core"
	"github.com/telerag/telerag/storage"
)

// AccountRepository implements storage.AccountRepository for BadgerDB.
//
// Subscriber counts are updated inside read-modify-write transactions and
// retried on commit conflicts, so two users subscribing to or leaving the
// same channel at once never lose an increment.
type AccountRepository struct {
	backend *Backend
}

var _ storage.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(backend *Backend) *AccountRepository {
	return &AccountRepository{backend: backend}
}

// Close is a no-op; the backend owns the database handle.
func (r *AccountRepository) Close() error {
	return nil
}

// CreateUser creates a user with an empty channel set.
func (r *AccountRepository) CreateUser(ctx context.Context, id int64, name string) error {
	user := &core.User{ID: id, Name: name}
	if err := core.ValidateUser(user); err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := userKey(id)
		existing, err := r.readUser(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: user %d", storage.ErrAlreadyExists, id)
		}

		if err := tx.Set(key, storage.MarshalUser(user)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetUser retrieves a user by id.
func (r *AccountRepository) GetUser(ctx context.Context, id int64) (*core.User, error) {
	var user *core.User
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		user, err = r.readUser(tx, userKey(id))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", storage.ErrNotFound, id)
	}
	return user, nil
}

// DeleteUser removes the user record and releases one reference for every
// channel the user holds. Channels whose count reached zero are deleted and
// their ids returned so the caller can tear down the matching subscriptions.
func (r *AccountRepository) DeleteUser(ctx context.Context, id int64) ([]int64, error) {
	var orphaned []int64
	err := r.backend.WithRetryTx(func(tx *badger.Txn) error {
		orphaned = orphaned[:0]

		key := userKey(id)
		user, err := r.readUser(tx, key)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("%w: user %d", storage.ErrNotFound, id)
		}

		for _, channelID := range user.Channels {
			released, err := r.releaseChannel(tx, channelID)
			if err != nil {
				return err
			}
			if released {
				orphaned = append(orphaned, channelID)
			}
		}

		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return orphaned, nil
}

// UpdateUserChannels applies set semantics to the user's channel references:
// references are acquired only for channels the user does not already hold
// and released only for channels the user actually holds. Returns the ids of
// channels whose reference count dropped to zero.
func (r *AccountRepository) UpdateUserChannels(ctx context.Context, id int64, add, remove []int64) ([]int64, error) {
	var orphaned []int64
	err := r.backend.WithRetryTx(func(tx *badger.Txn) error {
		orphaned = orphaned[:0]

		key := userKey(id)
		user, err := r.readUser(tx, key)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("%w: user %d", storage.ErrNotFound, id)
		}

		channels := slices.Clone(user.Channels)

		for _, channelID := range add {
			if slices.Contains(channels, channelID) {
				continue
			}
			if err := r.acquireChannel(tx, channelID); err != nil {
				return err
			}
			channels = append(channels, channelID)
		}

		for _, channelID := range remove {
			idx := slices.Index(channels, channelID)
			if idx < 0 {
				continue
			}
			channels = slices.Delete(channels, idx, idx+1)

			released, err := r.releaseChannel(tx, channelID)
			if err != nil {
				return err
			}
			if released {
				orphaned = append(orphaned, channelID)
			}
		}

		user.Channels = channels
		if err := tx.Set(key, storage.MarshalUser(user)); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return orphaned, nil
}

// CreateChannel registers a channel record with a zero subscriber count.
func (r *AccountRepository) CreateChannel(ctx context.Context, id int64, title string) error {
	channel := &core.Channel{ID: id, Title: title}
	if err := core.ValidateChannel(channel); err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := channelKey(id)
		existing, err := r.readChannel(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: channel %d", storage.ErrAlreadyExists, id)
		}

		if err := tx.Set(key, storage.MarshalChannel(channel)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetChannel retrieves a channel by id.
func (r *AccountRepository) GetChannel(ctx context.Context, id int64) (*core.Channel, error) {
	var channel *core.Channel
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		channel, err = r.readChannel(tx, channelKey(id))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, fmt.Errorf("%w: channel %d", storage.ErrNotFound, id)
	}
	return channel, nil
}

// ListChannels returns every registered channel, ordered by id.
func (r *AccountRepository) ListChannels(ctx context.Context) ([]*core.Channel, error) {
	var channels []*core.Channel

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixChannel + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var channel *core.Channel
			err := iter.Item().Value(func(val []byte) error {
				var unmarshalErr error
				channel, unmarshalErr = storage.UnmarshalChannel(val)
				return unmarshalErr
			})
			if err != nil {
				return err
			}
			channels = append(channels, channel)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Key order is lexicographic over the decimal id, not numeric.
	slices.SortFunc(channels, func(a, b *core.Channel) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return channels, nil
}

// DeleteChannel removes a channel record. Channels still referenced by a
// user cannot be deleted directly.
func (r *AccountRepository) DeleteChannel(ctx context.Context, id int64) error {
	return r.backend.WithRetryTx(func(tx *badger.Txn) error {
		key := channelKey(id)
		channel, err := r.readChannel(tx, key)
		if err != nil {
			return err
		}
		if channel == nil {
			return fmt.Errorf("%w: channel %d", storage.ErrNotFound, id)
		}
		if channel.Subscribers > 0 {
			return fmt.Errorf("%w: channel %d has %d subscribers",
				storage.ErrChannelInUse, id, channel.Subscribers)
		}

		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// acquireChannel increments the subscriber count of an existing channel.
func (r *AccountRepository) acquireChannel(tx *badger.Txn, id int64) error {
	key := channelKey(id)
	channel, err := r.readChannel(tx, key)
	if err != nil {
		return err
	}
	if channel == nil {
		return fmt.Errorf("%w: channel %d", storage.ErrNotFound, id)
	}

	channel.Subscribers++
	return tx.Set(key, storage.MarshalChannel(channel))
}

// releaseChannel decrements the subscriber count of a channel, deleting the
// record when the count reaches zero. Reports whether the record was deleted.
// A missing channel is tolerated so that releasing is idempotent under
// retried transactions.
func (r *AccountRepository) releaseChannel(tx *badger.Txn, id int64) (bool, error) {
	key := channelKey(id)
	channel, err := r.readChannel(tx, key)
	if err != nil {
		return false, err
	}
	if channel == nil {
		return false, nil
	}

	if channel.Subscribers <= 1 {
		if err := tx.Delete(key); err != nil {
			return false, err
		}
		return true, nil
	}

	channel.Subscribers--
	return false, tx.Set(key, storage.MarshalChannel(channel))
}

func (r *AccountRepository) readUser(tx *badger.Txn, key []byte) (*core.User, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var user *core.User
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		user, unmarshalErr = storage.UnmarshalUser(val)
		return unmarshalErr
	})
	return user, err
}

func (r *AccountRepository) readChannel(tx *badger.Txn, key []byte) (*core.Channel, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var channel *core.Channel
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		channel, unmarshalErr = storage.UnmarshalChannel(val)
		return unmarshalErr
	})
	return channel, err
}
