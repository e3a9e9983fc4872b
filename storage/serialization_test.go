package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telerag/telerag/core"
)

func TestMarshalUnmarshalUser(t *testing.T) {
	tests := []struct {
		name string
		user *core.User
	}{
		{
			name: "user without channels",
			user: &core.User{ID: 42, Name: "alice"},
		},
		{
			name: "user with channels",
			user: &core.User{ID: 42, Name: "alice", Channels: []int64{-1001234, -1005678}},
		},
		{
			name: "negative id",
			user: &core.User{ID: -7, Name: "bot"},
		},
		{
			name: "unicode name",
			user: &core.User{ID: 1, Name: "Алиса"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalUser(tt.user)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalUser(data)
			require.NoError(t, err)
			assert.Equal(t, tt.user.ID, decoded.ID)
			assert.Equal(t, tt.user.Name, decoded.Name)
			assert.Equal(t, tt.user.Channels, decoded.Channels)
		})
	}
}

func TestMarshalUnmarshalChannel(t *testing.T) {
	channel := &core.Channel{ID: -1001234, Title: "Daily News", Subscribers: 3}

	data := MarshalChannel(channel)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalChannel(data)
	require.NoError(t, err)
	assert.Equal(t, channel, decoded)
}

func TestMarshalUnmarshalChunk(t *testing.T) {
	chunk := core.NewChunk("embedded text fragment", "Daily News")
	chunk.Vector = []float32{0.25, -0.5, 0.125}

	data := MarshalChunk(chunk)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalChunk(data)
	require.NoError(t, err)
	assert.Equal(t, chunk.ID, decoded.ID)
	assert.Equal(t, chunk.Text, decoded.Text)
	assert.Equal(t, chunk.ChannelTitle, decoded.ChannelTitle)
	assert.Equal(t, chunk.Vector, decoded.Vector)
}

func TestUnmarshal_Truncated(t *testing.T) {
	chunk := core.NewChunk("some text", "News")
	chunk.Vector = []float32{0.1, 0.2}
	data := MarshalChunk(chunk)

	_, err := UnmarshalChunk(data[:len(data)/2])
	assert.Error(t, err)

	_, err = UnmarshalUser([]byte{})
	assert.Error(t, err)
}
