package core

import (
	"encoding/binary"
	"fmt"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier for stored chunks.
// Identical chunk text always maps to the same ID, which makes re-insertion
// of the same content a no-op.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// String renders the ID the way it is used as a vector-store document key.
func (id ID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// User is an account registered with the service. Channels holds the ids of
// the channels the user currently references; order is not significant.
type User struct {
	ID       int64
	Name     string
	Channels []int64
}

// Subscribed reports whether the user currently references the channel.
func (u *User) Subscribed(channelID int64) bool {
	for _, id := range u.Channels {
		if id == channelID {
			return true
		}
	}
	return false
}

// Channel is a broadcast content source. Subscribers is the reference count
// gating the channel's lifecycle: the record exists iff Subscribers > 0.
type Channel struct {
	ID          int64
	Title       string
	Subscribers int64
}

// Post is a single text-bearing message fetched from a channel.
type Post struct {
	ID   int64
	Text string
}

// PostBatch groups the posts fetched from one channel, most recent last.
type PostBatch struct {
	ChannelID    int64
	ChannelTitle string
	Posts        []Post
}

// IngestRequest is one question together with the channel content it should
// be answered from. Produced by the front-end, consumed exactly once by the
// pipeline.
type IngestRequest struct {
	UserID   int64
	Question string
	Batches  []PostBatch
}

// Response carries the generated answer back to the front-end. Err is set
// instead of Answer when the request failed; a request never disappears
// silently.
type Response struct {
	UserID int64
	Answer string
	Err    string
}

// Failed reports whether the response is a failure response.
func (r *Response) Failed() bool {
	return r.Err != ""
}

// Chunk is a bounded text fragment derived from channel content, together
// with its embedding and provenance. Chunks live in a vector-store collection
// between ingestion and collection cleanup.
type Chunk struct {
	ID           ID
	Text         string
	ChannelTitle string
	Vector       []float32
}

// NewChunk builds a chunk with its content-derived ID. The vector is
// populated later by the embedding step.
func NewChunk(text, channelTitle string) *Chunk {
	return &Chunk{
		ID:           IDFromContent(text),
		Text:         text,
		ChannelTitle: channelTitle,
	}
}
