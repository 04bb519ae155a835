// Package mutate is the Mutation Builder: it turns high-level mutation
// intents — a vertex put/delete, or the EdgeMutate delta the Commit Engine
// computes — into an ordered list of physical KV operations, tagged by
// kind, then runs them through one dispatcher rather than type-switching at
// each call site.
package mutate

import (
	"context"
	"fmt"
	"time"

	"github.com/arcgraph/edgestore/pkg/kv"
)

// OpKind tags a KVOp's physical effect.
type OpKind uint8

const (
	OpPut OpKind = iota
	OpDelete
	OpIncrement
)

func (k OpKind) String() string {
	switch k {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	case OpIncrement:
		return "increment"
	default:
		return fmt.Sprintf("OpKind(%d)", uint8(k))
	}
}

// DegreeMarker and CountMarker are the one-byte value-prefix markers that
// distinguish the two AtomicIncrement use cases sharing a counter cell:
// 0x00 = degree, 0x01 = count.
var (
	DegreeMarker = []byte{0x00}
	CountMarker  = []byte{0x01}
)

// KVOp is one physical operation the builder emits. Only the fields
// relevant to Kind are meaningful.
type KVOp struct {
	Kind      OpKind
	Row       kv.Row
	Family    kv.Family
	Qualifier kv.Qualifier
	Value     []byte
	Ts        time.Time
	Buffered  bool

	IncrementPrefix []byte
	IncrementAmount int64
}

// Dispatch runs one KVOp against store, returning a future that resolves
// once the operation completes. This is the single dispatcher every caller
// (pkg/commit, pkg/deleteall, the eventual-consistency direct-write path)
// goes through instead of type-switching on op kind at each call site.
func Dispatch(store kv.Store, op KVOp) *kv.Future[struct{}] {
	switch op.Kind {
	case OpPut:
		return store.Put(op.Row, op.Family, op.Qualifier, op.Value, op.Ts, op.Buffered)
	case OpDelete:
		return store.Delete(op.Row, op.Family, op.Qualifier, op.Ts, op.Buffered)
	case OpIncrement:
		f := store.AtomicIncrement(op.Row, op.Family, op.Qualifier, op.IncrementPrefix, op.IncrementAmount, op.Buffered)
		return kv.Then(f, func(_ int64, err error) (struct{}, error) { return struct{}{}, err })
	default:
		fut, resolve := kv.NewFuture[struct{}]()
		resolve(struct{}{}, fmt.Errorf("mutate: unknown op kind %d", op.Kind))
		return fut
	}
}

// DispatchAll runs every op concurrently and awaits all of them, returning
// the first error encountered (if any). Callers that need "all must
// succeed, or abort without further steps" semantics use this rather than
// awaiting one Dispatch at a time.
func DispatchAll(ctx context.Context, store kv.Store, ops []KVOp) error {
	futures := make([]*kv.Future[struct{}], len(ops))
	for i, op := range ops {
		futures[i] = Dispatch(store, op)
	}
	var firstErr error
	for _, f := range futures {
		if _, err := f.Await(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
