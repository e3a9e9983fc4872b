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


package storage

import (
	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"

	"github.com/telerag/telerag/core"
)

// Field serializers shared by the record serializers below.
var (
	channelSetMUS = ord.NewSliceSer[int64](varint.Int64)
	vectorMUS     = ord.NewSliceSer[float32](raw.Float32)
)

// UserMUS serializes core.User values for the storage layer.
var UserMUS = userMUS{}

type userMUS struct{}

var _ mus.Serializer[core.User] = userMUS{}

func (userMUS) Marshal(u core.User, bs []byte) (n int) {
	n = varint.Int64.Marshal(u.ID, bs)
	n += ord.String.Marshal(u.Name, bs[n:])
	n += channelSetMUS.Marshal(u.Channels, bs[n:])
	return
}

func (userMUS) Unmarshal(bs []byte) (u core.User, n int, err error) {
	var n1 int
	u.ID, n, err = varint.Int64.Unmarshal(bs)
	if err != nil {
		return
	}
	u.Name, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	u.Channels, n1, err = channelSetMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (userMUS) Size(u core.User) (size int) {
	size = varint.Int64.Size(u.ID)
	size += ord.String.Size(u.Name)
	size += channelSetMUS.Size(u.Channels)
	return
}

func (s userMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// ChannelMUS serializes core.Channel values for the storage layer.
var ChannelMUS = channelMUS{}

type channelMUS struct{}

var _ mus.Serializer[core.Channel] = channelMUS{}

func (channelMUS) Marshal(c core.Channel, bs []byte) (n int) {
	n = varint.Int64.Marshal(c.ID, bs)
	n += ord.String.Marshal(c.Title, bs[n:])
	n += varint.Int64.Marshal(c.Subscribers, bs[n:])
	return
}

func (channelMUS) Unmarshal(bs []byte) (c core.Channel, n int, err error) {
	var n1 int
	c.ID, n, err = varint.Int64.Unmarshal(bs)
	if err != nil {
		return
	}
	c.Title, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.Subscribers, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	return
}

func (channelMUS) Size(c core.Channel) (size int) {
	size = varint.Int64.Size(c.ID)
	size += ord.String.Size(c.Title)
	size += varint.Int64.Size(c.Subscribers)
	return
}

func (s channelMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// ChunkMUS serializes core.Chunk values for vector collections.
var ChunkMUS = chunkMUS{}

type chunkMUS struct{}

var _ mus.Serializer[core.Chunk] = chunkMUS{}

func (chunkMUS) Marshal(c core.Chunk, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(c.ID), bs)
	n += ord.String.Marshal(c.Text, bs[n:])
	n += ord.String.Marshal(c.ChannelTitle, bs[n:])
	n += vectorMUS.Marshal(c.Vector, bs[n:])
	return
}

func (chunkMUS) Unmarshal(bs []byte) (c core.Chunk, n int, err error) {
	var (
		n1 int
		id uint64
	)
	id, n, err = varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	c.ID = core.ID(id)
	c.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.ChannelTitle, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	c.Vector, n1, err = vectorMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (chunkMUS) Size(c core.Chunk) (size int) {
	size = varint.Uint64.Size(uint64(c.ID))
	size += ord.String.Size(c.Text)
	size += ord.String.Size(c.ChannelTitle)
	size += vectorMUS.Size(c.Vector)
	return
}

func (s chunkMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

// MarshalUser serializes a User to bytes.
func MarshalUser(user *core.User) []byte {
	buf := make([]byte, UserMUS.Size(*user))
	UserMUS.Marshal(*user, buf)
	return buf
}

// UnmarshalUser deserializes a User from bytes.
func UnmarshalUser(data []byte) (*core.User, error) {
	user, _, err := UserMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// MarshalChannel serializes a Channel to bytes.
func MarshalChannel(channel *core.Channel) []byte {
	buf := make([]byte, ChannelMUS.Size(*channel))
	ChannelMUS.Marshal(*channel, buf)
	return buf
}

// UnmarshalChannel deserializes a Channel from bytes.
func UnmarshalChannel(data []byte) (*core.Channel, error) {
	channel, _, err := ChannelMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, ChunkMUS.Size(*chunk))
	ChunkMUS.Marshal(*chunk, buf)
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	chunk, _, err := ChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}
