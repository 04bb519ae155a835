// Package schema defines the narrow read interface the core consumes for
// schema lookups (services, columns, labels, indices) plus an in-memory
// implementation suitable for tests and the CLI's bootstrap path.
//
// The schema catalog itself — its storage, mutation, and consistency model
// — is assumed to be a read-mostly store exposing lookups by id/name,
// maintained by something outside this process. Nothing here mutates state
// once loaded; cache invalidation is the caller's responsibility.
package schema

import (
	"fmt"

	"github.com/arcgraph/edgestore/pkg/model"
)

// ConsistencyLevel selects the write path the Commit Engine takes for a
// label: strong labels go through the lock/CAS protocol, weak labels take
// the direct-write eventual-consistency path.
type ConsistencyLevel uint8

const (
	ConsistencyStrong ConsistencyLevel = iota
	ConsistencyWeak
)

// SchemaVersion selects a codec variant.
type SchemaVersion uint8

const (
	V1 SchemaVersion = 1
	V2 SchemaVersion = 2
	V3 SchemaVersion = 3
)

func (v SchemaVersion) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	case V3:
		return "v3"
	default:
		return fmt.Sprintf("SchemaVersion(%d)", uint8(v))
	}
}

// ServiceColumn is the schema metadata a ColumnID resolves to.
type ServiceColumn struct {
	ID            model.ColumnID
	ServiceID     int32
	ColumnName    string
	SchemaVersion SchemaVersion
	Meta          map[string]string
}

// IndexDecl declares one of a label's indices: the seq it occupies and the
// ordered property keys edges are sorted by within it.
type IndexDecl struct {
	Seq      model.IndexSeq
	PropKeys []model.PropKey
}

// Label is the schema metadata a LabelID resolves to.
type Label struct {
	ID               model.LabelID
	Name             string
	Indices          []IndexDecl
	Metas            []LabelMeta
	SrcColumn        model.ColumnID
	TgtColumn        model.ColumnID
	Cluster          string
	HBaseTable       string
	ConsistencyLevel ConsistencyLevel
	SchemaVersion    SchemaVersion
}

// FirstIndex returns the index the degree counter lives on.
func (l Label) FirstIndex() (IndexDecl, bool) {
	if len(l.Indices) == 0 {
		return IndexDecl{}, false
	}
	return l.Indices[0], true
}

// LabelMeta describes one property column declared on a label.
type LabelMeta struct {
	Seq     model.PropKey
	Name    string
	Type    string
	Default model.PropValue
}

// ErrNotFound is returned by lookups that miss; callers surface it as a
// non-retryable illegal-argument error rather than a transient failure.
type ErrNotFound struct {
	Kind string
	Key  any
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("schema: %s not found: %v", e.Kind, e.Key)
}

// Catalog is the interface the core consumes for schema lookups.
// Implementations must be safe for concurrent use; the core never mutates
// through this interface.
type Catalog interface {
	FindServiceColumn(id model.ColumnID) (ServiceColumn, error)
	FindLabel(id model.LabelID) (Label, error)
	LabelMeta(labelID model.LabelID, seq model.PropKey) (LabelMeta, error)
}
