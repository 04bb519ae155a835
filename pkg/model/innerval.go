package model

import "fmt"

// InnerValKind discriminates the closed sum type InnerVal is built from.
type InnerValKind uint8

const (
	KindLong InnerValKind = iota
	KindString
	KindComposite
)

// InnerVal is a vertex's typed inner id: a long, a string, or an opaque
// composite byte payload whose internal layout is caller-defined.
//
// InnerVal is immutable and comparable by value so it can key a Go map
// directly.
type InnerVal struct {
	kind  InnerValKind
	long  int64
	str   string
	bytes string // composite payload, stored as string so InnerVal stays comparable
}

// Long builds a long-typed InnerVal.
func Long(v int64) InnerVal { return InnerVal{kind: KindLong, long: v} }

// Str builds a string-typed InnerVal.
func Str(v string) InnerVal { return InnerVal{kind: KindString, str: v} }

// Composite builds a composite-typed InnerVal from a pre-encoded payload.
// The codec treats the bytes as opaque; only the caller's schema knows how
// to interpret them.
func Composite(payload []byte) InnerVal {
	return InnerVal{kind: KindComposite, bytes: string(payload)}
}

func (v InnerVal) Kind() InnerValKind { return v.kind }

// AsLong returns the long value and whether v is long-typed.
func (v InnerVal) AsLong() (int64, bool) { return v.long, v.kind == KindLong }

// AsString returns the string value and whether v is string-typed.
func (v InnerVal) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsComposite returns the composite payload and whether v is composite-typed.
func (v InnerVal) AsComposite() ([]byte, bool) {
	return []byte(v.bytes), v.kind == KindComposite
}

func (v InnerVal) String() string {
	switch v.kind {
	case KindLong:
		return fmt.Sprintf("L(%d)", v.long)
	case KindString:
		return fmt.Sprintf("S(%q)", v.str)
	case KindComposite:
		return fmt.Sprintf("C(%d bytes)", len(v.bytes))
	default:
		return "InnerVal(?)"
	}
}
