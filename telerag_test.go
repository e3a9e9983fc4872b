package telerag

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telerag/telerag/ai/mock"
	"github.com/telerag/telerag/scraper"
	"github.com/telerag/telerag/storage"
)

// stubClient is a minimal platform client serving a fixed set of broadcast
// channels keyed by reference.
type stubClient struct {
	mu         sync.Mutex
	chats      map[string]*scraper.Chat
	history    map[int64][]scraper.Message
	joined     map[int64]bool
	leaveCalls map[int64]int
}

func newStubClient() *stubClient {
	return &stubClient{
		chats:      make(map[string]*scraper.Chat),
		history:    make(map[int64][]scraper.Message),
		joined:     make(map[int64]bool),
		leaveCalls: make(map[int64]int),
	}
}

func (c *stubClient) addChannel(ref string, id int64, title string, messages ...scraper.Message) {
	c.chats[ref] = &scraper.Chat{ID: id, Title: title, Type: scraper.ChatTypeChannel}
	c.history[id] = messages
}

func (c *stubClient) Resolve(ctx context.Context, ref string) (*scraper.Chat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	chat, ok := c.chats[ref]
	if !ok {
		return nil, scraper.ErrInvalidRef
	}
	return chat, nil
}

func (c *stubClient) Member(ctx context.Context, chatID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.joined[chatID] {
		return nil
	}
	return scraper.ErrNotParticipant
}

func (c *stubClient) Join(ctx context.Context, ref string) (*scraper.Chat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	chat, ok := c.chats[ref]
	if !ok {
		return nil, scraper.ErrInvalidRef
	}
	c.joined[chat.ID] = true
	return chat, nil
}

func (c *stubClient) Leave(ctx context.Context, chatID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined[chatID] = false
	c.leaveCalls[chatID]++
	return nil
}

func (c *stubClient) History(ctx context.Context, chatID int64, limit int) ([]scraper.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history[chatID], nil
}

func (c *stubClient) leaves(chatID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.leaveCalls[chatID]
}

func newTestService(t *testing.T) (*Service, *stubClient) {
	t.Helper()
	client := newStubClient()
	client.addChannel("news", -1001, "Daily News",
		scraper.Message{ID: 2, Text: "Parliament passed the budget today."},
		scraper.Message{ID: 1, Text: "Storm warnings issued for the coast."},
	)

	svc, err := NewService(client,
		WithInMemoryStorage(),
		WithProvider(mock.NewMockProvider()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	require.NoError(t, svc.Start(context.Background()))
	return svc, client
}

func TestSharedChannelRefcountLifecycle(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RegisterUser(ctx, 1, "alice"))
	require.NoError(t, svc.RegisterUser(ctx, 2, "bob"))

	first, err := svc.AddChannel(ctx, 1, "news")
	require.NoError(t, err)
	assert.Equal(t, scraper.StatusSubscribed, first.Status)

	second, err := svc.AddChannel(ctx, 2, "news")
	require.NoError(t, err)
	assert.Equal(t, scraper.StatusAlreadySubscribed, second.Status)

	channel, err := svc.accounts.GetChannel(ctx, -1001)
	require.NoError(t, err)
	assert.Equal(t, int64(2), channel.Subscribers)

	// First removal keeps the channel alive
	require.NoError(t, svc.RemoveChannel(ctx, 1, -1001))
	channel, err = svc.accounts.GetChannel(ctx, -1001)
	require.NoError(t, err)
	assert.Equal(t, int64(1), channel.Subscribers)
	assert.Equal(t, 0, client.leaves(-1001))

	// Last removal tears everything down, unsubscribing exactly once
	require.NoError(t, svc.RemoveChannel(ctx, 2, -1001))
	_, err = svc.accounts.GetChannel(ctx, -1001)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 1, client.leaves(-1001))
}

func TestRemoveUserCascades(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RegisterUser(ctx, 1, "alice"))
	result, err := svc.AddChannel(ctx, 1, "news")
	require.NoError(t, err)
	require.Equal(t, scraper.StatusSubscribed, result.Status)

	require.NoError(t, svc.RemoveUser(ctx, 1))

	_, err = svc.accounts.GetUser(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = svc.accounts.GetChannel(ctx, -1001)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 1, client.leaves(-1001))
}

func TestAddChannelUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AddChannel(context.Background(), 999, "news")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAddChannelBadRef(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RegisterUser(ctx, 1, "alice"))
	result, err := svc.AddChannel(ctx, 1, "no-such-channel")
	require.NoError(t, err)
	assert.Equal(t, scraper.StatusError, result.Status)

	// Nothing was registered
	user, err := svc.accounts.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, user.Channels)
}

func TestAskAnswersFromChannelContent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RegisterUser(ctx, 1, "alice"))
	result, err := svc.AddChannel(ctx, 1, "news")
	require.NoError(t, err)
	require.Equal(t, scraper.StatusSubscribed, result.Status)

	require.NoError(t, svc.Ask(ctx, 1, "what did parliament do?"))

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	resp, err := svc.NextResponse(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.UserID)
	assert.False(t, resp.Failed())
	assert.NotEmpty(t, resp.Answer)
}

func TestAskWithoutSubscriptions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RegisterUser(ctx, 1, "alice"))
	require.NoError(t, svc.Ask(ctx, 1, "anything at all?"))

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	resp, err := svc.NextResponse(waitCtx)
	require.NoError(t, err)
	assert.False(t, resp.Failed())
	assert.Contains(t, resp.Answer, "no information")
}

func TestAskUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Ask(context.Background(), 404, "who am I?")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
