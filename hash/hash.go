// Package hash provides the blake3 hashing used for proof challenges and state fingerprints.
package hash

import (
	"sync"

	"github.com/zeebo/blake3"
)

// Size of a digest in bytes.
const Size = 32

// hashers are reset before they go back.
var hashers = sync.Pool{
	New: func() any { return blake3.New() },
}

// Sum hashes the concatenation of chunks.
func Sum(chunks ...[]byte) (out [Size]byte) {
	h := hashers.Get().(*blake3.Hasher)
	defer func() {
		h.Reset()
		hashers.Put(h)
	}()
	for _, chunk := range chunks {
		h.Write(chunk)
	}
	h.Sum(out[:0])
	return out
}
