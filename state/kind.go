// Package state implements the Operator State Registry: two closed
// tagged unions, LocalState and GlobalState, one variant per physical
// operator kind. The set of physical operators is fixed at build
// time, so closing the set eliminates dispatch-by-pointer on the hot
// path and lets a Partition Pipeline allocate the exact state storage
// once at construction — the same trade-off the pack's own physical
// plan tree makes with its NodeType-tagged Node struct
// (physical/nodes.go): one tag field selects which of several
// mutually-exclusive pointer fields is populated.
package state

import "github.com/vecql/engine/execerrors"

// Kind identifies the concrete operator a Local/GlobalState variant
// belongs to. It is the tag of both tagged unions.
type Kind int

const (
	KindFilter Kind = iota
	KindProjection
	KindTableScan
	KindLimit
	KindHashAggregate
	KindHashJoin
	KindNestedLoopJoin
	KindSort
	KindExchange
)

func (k Kind) String() string {
	switch k {
	case KindFilter:
		return "filter"
	case KindProjection:
		return "projection"
	case KindTableScan:
		return "table_scan"
	case KindLimit:
		return "limit"
	case KindHashAggregate:
		return "hash_aggregate"
	case KindHashJoin:
		return "hash_join"
	case KindNestedLoopJoin:
		return "nested_loop_join"
	case KindSort:
		return "sort"
	case KindExchange:
		return "exchange"
	default:
		return "unknown"
	}
}

// Waker is the minimal capability a Global/LocalState needs from a
// registered wakeup token: the ability to fire it. It is satisfied
// structurally by *operator.Waker without this package importing the
// operator package, which in turn needs to import state for the
// LocalState/GlobalState types — keeping the dependency one-directional.
type Waker interface {
	Wake()
}

// mismatch builds the Internal error every accessor below returns when
// the Kind tag on a Local/GlobalState doesn't match the variant field
// the caller asked for. Per spec.md §4.2 this is always a bug, never a
// data condition — it means an operator was wired to the wrong state.
func mismatch(wantKind Kind, gotKind Kind) error {
	return execerrors.Internalf("state: operator kind mismatch: expected %s state, got %s state", wantKind, gotKind)
}
