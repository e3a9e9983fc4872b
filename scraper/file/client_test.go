package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telerag/telerag/scraper"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	dir := t.TempDir()
	content := "First announcement.\n\nSecond announcement.\n\nThird announcement.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "news.txt"), []byte(content), 0644))

	client, err := NewClient(dir)
	require.NoError(t, err)
	return client
}

func TestResolveAndJoin(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	chat, err := client.Resolve(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, "news", chat.Title)
	assert.True(t, chat.Type.Broadcast())

	// Not a member before joining
	assert.ErrorIs(t, client.Member(ctx, chat.ID), scraper.ErrNotParticipant)

	joined, err := client.Join(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, chat.ID, joined.ID)
	assert.NoError(t, client.Member(ctx, chat.ID))
}

func TestResolveUnknownChannel(t *testing.T) {
	client := newTestClient(t)

	_, err := client.Resolve(context.Background(), "missing")
	assert.ErrorIs(t, err, scraper.ErrInvalidRef)
}

func TestHistoryNewestFirst(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	chat, err := client.Join(ctx, "news")
	require.NoError(t, err)

	messages, err := client.History(ctx, chat.ID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "Third announcement.", messages[0].Text)
	assert.Equal(t, "First announcement.", messages[2].Text)

	limited, err := client.History(ctx, chat.ID, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "Third announcement.", limited[0].Text)
}

func TestHistoryRequiresMembership(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	chat, err := client.Resolve(ctx, "news")
	require.NoError(t, err)

	_, err = client.History(ctx, chat.ID, 10)
	assert.ErrorIs(t, err, scraper.ErrNotParticipant)
}

func TestLeave(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	chat, err := client.Join(ctx, "news")
	require.NoError(t, err)
	require.NoError(t, client.Leave(ctx, chat.ID))
	assert.ErrorIs(t, client.Member(ctx, chat.ID), scraper.ErrNotParticipant)
}
