// Package fingerprint implements the engine's content-addressing primitive:
// a canonical byte encoding of a Go value followed by a 128-bit
// cryptographic hash, used both by the memoization layer's cache keys and
// by the auth registry's transient-entry keys.
package fingerprint

import (
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/blake2b"
)

// Digest is a 128-bit fingerprint, printed as base64url without padding.
type Digest [16]byte

func (d Digest) String() string {
	return base64.RawURLEncoding.EncodeToString(d[:])
}

// Of canonicalizes x and hashes it under salt. Identical (x, salt) pairs
// always produce the same Digest; distinct salts keep otherwise-identical
// payloads from colliding across domains (e.g. "cocoindex_auth" for
// transient auth keys versus the memoization table's own salt).
func Of(salt string, x any) (Digest, error) {
	canon, err := Canonicalize(x)
	if err != nil {
		return Digest{}, fmt.Errorf("canonicalize: %w", err)
	}
	h, err := blake2b.New(16, nil)
	if err != nil {
		return Digest{}, err
	}
	if salt != "" {
		_, _ = h.Write([]byte(salt))
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.Write(canon)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// Canonicalize re-encodes x as compact MessagePack with map keys sorted
// into lexicographic byte order, so that two structurally-equal values
// (regardless of map iteration order) produce identical bytes. Floats are
// msgpack's native IEEE-754 big-endian encoding.
func Canonicalize(x any) ([]byte, error) {
	norm, err := normalize(x)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(norm)
}

// normalize walks x, turning any map into a canonically-key-sorted
// []mapEntry so msgpack emits them in a stable order; everything else
// passes through (structs are encoded field-by-field by msgpack in their
// declared Go field order, which callers are expected to keep aligned with
// schema-declared field order).
func normalize(x any) (any, error) {
	switch v := x.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]mapEntry, len(keys))
		for i, k := range keys {
			nv, err := normalize(v[k])
			if err != nil {
				return nil, err
			}
			entries[i] = mapEntry{Key: k, Value: nv}
		}
		return entries, nil
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			ne, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = ne
		}
		return out, nil
	default:
		return x, nil
	}
}

type mapEntry struct {
	Key   string `msgpack:"k"`
	Value any    `msgpack:"v"`
}
