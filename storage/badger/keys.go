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
	"fmt"

	"github.com/telerag/telerag/core"
)

// Key prefixes for the different record families. Keeping them short keeps
// the prefix scans over document keys cheap.
const (
	prefixUser       = "usr"
	prefixChannel    = "chn"
	prefixCollection = "col"
	prefixDocument   = "doc"
)

// userKey builds the key for a user account record.
func userKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s:%d", prefixUser, id))
}

// channelKey builds the key for a channel record.
func channelKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s:%d", prefixChannel, id))
}

// collectionKey builds the registry key for a named collection.
func collectionKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", prefixCollection, name))
}

// documentKey builds the key for a chunk stored in a collection. The chunk
// ID is rendered in fixed-width hex so all documents of a collection share
// a common, scannable prefix.
func documentKey(collection string, id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", prefixDocument, collection, id))
}

// documentPrefix builds the scan prefix covering every chunk of a collection.
func documentPrefix(collection string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", prefixDocument, collection))
}
