package badger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/telerag/telerag/storage"
)

func newTestAccounts(t *testing.T) storage.AccountRepository {
	t.Helper()
	accounts, _, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return accounts
}

func TestUserLifecycle(t *testing.T) {
	accounts := newTestAccounts(t)
	ctx := context.Background()

	if err := accounts.CreateUser(ctx, 100, "alice"); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	// Duplicate creation must be rejected
	err := accounts.CreateUser(ctx, 100, "alice")
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("Expected ErrAlreadyExists, got %v", err)
	}

	user, err := accounts.GetUser(ctx, 100)
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if user.Name != "alice" {
		t.Fatalf("Expected name 'alice', got '%s'", user.Name)
	}
	if len(user.Channels) != 0 {
		t.Fatalf("Expected empty channel set, got %v", user.Channels)
	}

	orphaned, err := accounts.DeleteUser(ctx, 100)
	if err != nil {
		t.Fatalf("Failed to delete user: %v", err)
	}
	if len(orphaned) != 0 {
		t.Fatalf("Expected no orphaned channels, got %v", orphaned)
	}

	if _, err := accounts.GetUser(ctx, 100); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestChannelRefcount(t *testing.T) {
	accounts := newTestAccounts(t)
	ctx := context.Background()

	if err := accounts.CreateUser(ctx, 1, "alice"); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if err := accounts.CreateUser(ctx, 2, "bob"); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if err := accounts.CreateChannel(ctx, -1000, "news"); err != nil {
		t.Fatalf("Failed to create channel: %v", err)
	}

	// Two users reference the same channel
	if _, err := accounts.UpdateUserChannels(ctx, 1, []int64{-1000}, nil); err != nil {
		t.Fatalf("Failed to add channel for alice: %v", err)
	}
	if _, err := accounts.UpdateUserChannels(ctx, 2, []int64{-1000}, nil); err != nil {
		t.Fatalf("Failed to add channel for bob: %v", err)
	}

	channel, err := accounts.GetChannel(ctx, -1000)
	if err != nil {
		t.Fatalf("Failed to get channel: %v", err)
	}
	if channel.Subscribers != 2 {
		t.Fatalf("Expected 2 subscribers, got %d", channel.Subscribers)
	}

	// First removal only decrements
	orphaned, err := accounts.UpdateUserChannels(ctx, 1, nil, []int64{-1000})
	if err != nil {
		t.Fatalf("Failed to remove channel for alice: %v", err)
	}
	if len(orphaned) != 0 {
		t.Fatalf("Expected no orphans while bob still subscribes, got %v", orphaned)
	}

	// Second removal deletes the channel record
	orphaned, err = accounts.UpdateUserChannels(ctx, 2, nil, []int64{-1000})
	if err != nil {
		t.Fatalf("Failed to remove channel for bob: %v", err)
	}
	if len(orphaned) != 1 || orphaned[0] != -1000 {
		t.Fatalf("Expected channel -1000 orphaned, got %v", orphaned)
	}

	if _, err := accounts.GetChannel(ctx, -1000); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after last release, got %v", err)
	}
}

func TestUpdateUserChannelsSetSemantics(t *testing.T) {
	accounts := newTestAccounts(t)
	ctx := context.Background()

	if err := accounts.CreateUser(ctx, 1, "alice"); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if err := accounts.CreateChannel(ctx, 10, "first"); err != nil {
		t.Fatalf("Failed to create channel: %v", err)
	}

	// Adding twice must count once
	if _, err := accounts.UpdateUserChannels(ctx, 1, []int64{10}, nil); err != nil {
		t.Fatalf("Failed to add channel: %v", err)
	}
	if _, err := accounts.UpdateUserChannels(ctx, 1, []int64{10}, nil); err != nil {
		t.Fatalf("Failed on repeated add: %v", err)
	}

	channel, err := accounts.GetChannel(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to get channel: %v", err)
	}
	if channel.Subscribers != 1 {
		t.Fatalf("Expected 1 subscriber after repeated add, got %d", channel.Subscribers)
	}

	// Removing a channel the user does not hold is a no-op
	orphaned, err := accounts.UpdateUserChannels(ctx, 1, nil, []int64{999})
	if err != nil {
		t.Fatalf("Failed on no-op removal: %v", err)
	}
	if len(orphaned) != 0 {
		t.Fatalf("Expected no orphans, got %v", orphaned)
	}

	user, err := accounts.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if len(user.Channels) != 1 || user.Channels[0] != 10 {
		t.Fatalf("Expected channel set [10], got %v", user.Channels)
	}

	// Adding an unknown channel fails and leaves state untouched
	if _, err := accounts.UpdateUserChannels(ctx, 1, []int64{999}, nil); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for unknown channel, got %v", err)
	}
	user, err = accounts.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if len(user.Channels) != 1 {
		t.Fatalf("Expected channel set unchanged after failed add, got %v", user.Channels)
	}
}

func TestDeleteUserReleasesChannels(t *testing.T) {
	accounts := newTestAccounts(t)
	ctx := context.Background()

	if err := accounts.CreateUser(ctx, 1, "alice"); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if err := accounts.CreateUser(ctx, 2, "bob"); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	for id, title := range map[int64]string{20: "shared", 21: "exclusive"} {
		if err := accounts.CreateChannel(ctx, id, title); err != nil {
			t.Fatalf("Failed to create channel %d: %v", id, err)
		}
	}

	if _, err := accounts.UpdateUserChannels(ctx, 1, []int64{20, 21}, nil); err != nil {
		t.Fatalf("Failed to subscribe alice: %v", err)
	}
	if _, err := accounts.UpdateUserChannels(ctx, 2, []int64{20}, nil); err != nil {
		t.Fatalf("Failed to subscribe bob: %v", err)
	}

	// Deleting alice orphans only the channel bob does not hold
	orphaned, err := accounts.DeleteUser(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to delete user: %v", err)
	}
	if len(orphaned) != 1 || orphaned[0] != 21 {
		t.Fatalf("Expected only channel 21 orphaned, got %v", orphaned)
	}

	channel, err := accounts.GetChannel(ctx, 20)
	if err != nil {
		t.Fatalf("Failed to get shared channel: %v", err)
	}
	if channel.Subscribers != 1 {
		t.Fatalf("Expected 1 subscriber on shared channel, got %d", channel.Subscribers)
	}
}

func TestDeleteChannelInUse(t *testing.T) {
	accounts := newTestAccounts(t)
	ctx := context.Background()

	if err := accounts.CreateUser(ctx, 1, "alice"); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if err := accounts.CreateChannel(ctx, 30, "busy"); err != nil {
		t.Fatalf("Failed to create channel: %v", err)
	}
	if _, err := accounts.UpdateUserChannels(ctx, 1, []int64{30}, nil); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	if err := accounts.DeleteChannel(ctx, 30); !errors.Is(err, storage.ErrChannelInUse) {
		t.Fatalf("Expected ErrChannelInUse, got %v", err)
	}

	// Unreferenced channels can be deleted directly
	if err := accounts.CreateChannel(ctx, 31, "idle"); err != nil {
		t.Fatalf("Failed to create channel: %v", err)
	}
	if err := accounts.DeleteChannel(ctx, 31); err != nil {
		t.Fatalf("Failed to delete idle channel: %v", err)
	}
	if _, err := accounts.GetChannel(ctx, 31); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentRefcountMutation(t *testing.T) {
	accounts := newTestAccounts(t)
	ctx := context.Background()

	const users = 24
	if err := accounts.CreateChannel(ctx, -100, "contended"); err != nil {
		t.Fatalf("Failed to create channel: %v", err)
	}
	for i := int64(1); i <= users; i++ {
		if err := accounts.CreateUser(ctx, i, "user"); err != nil {
			t.Fatalf("Failed to create user %d: %v", i, err)
		}
	}

	// All users subscribe at once; every acquire must land.
	var wg sync.WaitGroup
	errs := make(chan error, users)
	for i := int64(1); i <= users; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := accounts.UpdateUserChannels(ctx, id, []int64{-100}, nil); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Concurrent subscribe failed: %v", err)
	}

	channel, err := accounts.GetChannel(ctx, -100)
	if err != nil {
		t.Fatalf("Failed to get channel: %v", err)
	}
	if channel.Subscribers != users {
		t.Fatalf("Expected %d subscribers, got %d", users, channel.Subscribers)
	}

	// All but one release at once; no release may orphan the channel yet.
	errs = make(chan error, users-1)
	orphans := make(chan int64, users-1)
	for i := int64(2); i <= users; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			orphaned, err := accounts.UpdateUserChannels(ctx, id, nil, []int64{-100})
			if err != nil {
				errs <- err
				return
			}
			for _, orphan := range orphaned {
				orphans <- orphan
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	close(orphans)
	for err := range errs {
		t.Errorf("Concurrent release failed: %v", err)
	}
	for orphan := range orphans {
		t.Errorf("Channel %d orphaned while still referenced", orphan)
	}

	channel, err = accounts.GetChannel(ctx, -100)
	if err != nil {
		t.Fatalf("Failed to get channel after releases: %v", err)
	}
	if channel.Subscribers != 1 {
		t.Fatalf("Expected 1 subscriber after releases, got %d", channel.Subscribers)
	}

	// The last release reports the orphan exactly once.
	orphaned, err := accounts.UpdateUserChannels(ctx, 1, nil, []int64{-100})
	if err != nil {
		t.Fatalf("Failed final release: %v", err)
	}
	if len(orphaned) != 1 || orphaned[0] != -100 {
		t.Fatalf("Expected orphaned [-100], got %v", orphaned)
	}
	if _, err := accounts.GetChannel(ctx, -100); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after last release, got %v", err)
	}
}

func TestListChannels(t *testing.T) {
	accounts := newTestAccounts(t)
	ctx := context.Background()

	channels, err := accounts.ListChannels(ctx)
	if err != nil {
		t.Fatalf("Failed to list channels: %v", err)
	}
	if len(channels) != 0 {
		t.Fatalf("Expected empty listing, got %d channels", len(channels))
	}

	// Ids chosen so byte order of the keys differs from numeric order
	ids := []int64{-1002, 9, -1001, 100}
	for _, id := range ids {
		if err := accounts.CreateChannel(ctx, id, "channel"); err != nil {
			t.Fatalf("Failed to create channel %d: %v", id, err)
		}
	}

	channels, err = accounts.ListChannels(ctx)
	if err != nil {
		t.Fatalf("Failed to list channels: %v", err)
	}
	if len(channels) != len(ids) {
		t.Fatalf("Expected %d channels, got %d", len(ids), len(channels))
	}
	want := []int64{-1002, -1001, 9, 100}
	for i, channel := range channels {
		if channel.ID != want[i] {
			t.Fatalf("Expected channel %d at position %d, got %d", want[i], i, channel.ID)
		}
	}
}
