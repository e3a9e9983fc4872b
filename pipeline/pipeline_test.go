package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telerag/telerag/ai/mock"
	"github.com/telerag/telerag/core"
	"github.com/telerag/telerag/storage"
	"github.com/telerag/telerag/storage/badger"
)

// startPipeline builds a pipeline on an in-memory store with mock AI and
// starts its worker loop; everything is torn down with the test.
func startPipeline(t *testing.T, opts ...Option) (*Pipeline, storage.VectorStore, *mock.MockProvider) {
	t.Helper()

	_, vectors, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	provider := mock.NewMockProvider().(*mock.MockProvider)
	p, err := NewPipeline(vectors, provider, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go p.Run(ctx)

	return p, vectors, provider
}

func newsRequest(userID int64, question string) *core.IngestRequest {
	return &core.IngestRequest{
		UserID:   userID,
		Question: question,
		Batches: []core.PostBatch{{
			ChannelID:    -1001,
			ChannelTitle: "Daily News",
			Posts: []core.Post{
				{ID: 1, Text: "Heavy rain flooded the eastern districts today."},
				{ID: 2, Text: "City services restored power in most areas."},
			},
		}},
	}
}

func nextResponse(t *testing.T, p *Pipeline) *core.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := p.NextResponse(ctx)
	require.NoError(t, err)
	return resp
}

func TestRequestsCompleteInArrivalOrder(t *testing.T) {
	p, _, _ := startPipeline(t)

	for _, userID := range []int64{11, 22, 33} {
		require.NoError(t, p.Enqueue(newsRequest(userID, "what happened today?")))
	}

	for _, want := range []int64{11, 22, 33} {
		resp := nextResponse(t, p)
		assert.Equal(t, want, resp.UserID)
		assert.False(t, resp.Failed())
		assert.NotEmpty(t, resp.Answer)
	}
}

func TestEmptyContentShortCircuits(t *testing.T) {
	p, _, provider := startPipeline(t)

	require.NoError(t, p.Enqueue(&core.IngestRequest{
		UserID:   7,
		Question: "anything new?",
	}))

	resp := nextResponse(t, p)
	assert.False(t, resp.Failed())
	assert.Equal(t, noInformationAnswer, resp.Answer)
	// Neither the embedder nor the generator may be touched
	assert.Zero(t, provider.GetMockEmbedder().CallCount())
	assert.Zero(t, provider.GetMockGenerator().CallCount())
}

func TestGeneratorFailureStillCleansUp(t *testing.T) {
	p, vectors, provider := startPipeline(t)
	provider.GetMockGenerator().CompleteFunc = func(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
		return "", errors.New("model unavailable")
	}

	require.NoError(t, p.Enqueue(newsRequest(42, "what happened?")))

	resp := nextResponse(t, p)
	assert.True(t, resp.Failed())
	assert.Contains(t, resp.Err, "model unavailable")

	exists, err := vectors.CollectionExists(context.Background(), userCollection(42))
	require.NoError(t, err)
	assert.False(t, exists, "ephemeral collection must be deleted after a failed request")
}

func TestSuccessfulRequestCleansUp(t *testing.T) {
	p, vectors, _ := startPipeline(t)

	require.NoError(t, p.Enqueue(newsRequest(42, "what happened?")))
	resp := nextResponse(t, p)
	require.False(t, resp.Failed())

	exists, err := vectors.CollectionExists(context.Background(), userCollection(42))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEmbeddingFailureProducesFailureResponse(t *testing.T) {
	p, _, provider := startPipeline(t)
	provider.GetMockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("embedding service down")
	}

	require.NoError(t, p.Enqueue(newsRequest(5, "what happened?")))

	resp := nextResponse(t, p)
	assert.True(t, resp.Failed())
	assert.Contains(t, resp.Err, "embedding")
}

func TestGroundedPromptCarriesSources(t *testing.T) {
	p, _, provider := startPipeline(t)

	require.NoError(t, p.Enqueue(newsRequest(9, "was there flooding?")))
	resp := nextResponse(t, p)
	require.False(t, resp.Failed())

	gen := provider.GetMockGenerator()
	assert.Contains(t, gen.LastSystemPrompt(), "only the provided source excerpts")
	assert.Contains(t, gen.LastUserPrompt(), "[Daily News]")
	assert.Contains(t, gen.LastUserPrompt(), "was there flooding?")
}

func TestEnqueueRejectsInvalidRequest(t *testing.T) {
	p, _, _ := startPipeline(t)

	err := p.Enqueue(&core.IngestRequest{UserID: 1})
	assert.ErrorIs(t, err, core.ErrEmptyQuestion)

	err = p.Enqueue(&core.IngestRequest{Question: "who?"})
	assert.ErrorIs(t, err, core.ErrMissingUserID)
}

func TestRunRejectsSecondInvocation(t *testing.T) {
	p, _, _ := startPipeline(t)

	// The loop from startPipeline is already running
	time.Sleep(10 * time.Millisecond)
	err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}
