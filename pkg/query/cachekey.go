// Package query is the Query Builder & Fetcher: it turns a QueryParam into
// a physical KV read, coalesces concurrent identical reads behind a single
// in-flight future, and optionally serves a short-TTL result cache.
package query

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/arcgraph/edgestore/pkg/kv"
)

// CacheKey is a 128-bit content hash of a physical GetRequest. Both the
// coalescing cache and the result cache key on this rather than a raw
// struct comparison, since a shorter hash risks collisions between
// unrelated requests landing on the same cache entry.
type CacheKey [16]byte

// KeyFor hashes every field of req that affects its result: row, family,
// qualifiers, column-range bounds, RPC timeout, the min/max timestamp
// window, offset, and limit. Two requests differing
// only in, say, timeout must never collide: coalescing or cache-sharing
// across different RPC timeouts or filters would return one caller's
// result to another caller who asked for something subtly different.
func KeyFor(req kv.GetRequest) CacheKey {
	h, _ := blake2b.New(16, nil)
	writeFramed(h, req.Row)
	writeFramed(h, req.Family)
	for _, q := range req.Qualifiers {
		writeFramed(h, q)
	}
	writeFramed(h, req.ColMin)
	writeFramed(h, req.ColMax)

	var tail [8 + 8 + 8 + 8 + 8]byte
	binary.BigEndian.PutUint64(tail[0:8], uint64(req.RPCTimeout))
	binary.BigEndian.PutUint64(tail[8:16], uint64(req.MinTs.UnixNano()))
	binary.BigEndian.PutUint64(tail[16:24], uint64(req.MaxTs.UnixNano()))
	binary.BigEndian.PutUint64(tail[24:32], uint64(req.OffsetN))
	binary.BigEndian.PutUint64(tail[32:40], uint64(req.LimitN))
	h.Write(tail[:])

	var key CacheKey
	copy(key[:], h.Sum(nil))
	return key
}

type hasher interface {
	Write(p []byte) (int, error)
}

// writeFramed writes a length prefix before b so that, e.g., row="ab"
// followed by family="c" never hashes the same as row="a" followed by
// family="bc".
func writeFramed(h hasher, b []byte) {
	var lb [4]byte
	binary.BigEndian.PutUint32(lb[:], uint32(len(b)))
	h.Write(lb[:])
	h.Write(b)
}
