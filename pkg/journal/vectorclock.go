// Package journal implements the durable change journal and vector-clock
// logical timestamping spec.md §4.6 and §3 describe, grounded on the
// teacher's WAL (pkg/storage/wal.go): a dense, strictly monotonic
// per-writer sequence, append/appendBatch atomicity, and a corrupt-entry
// skip-and-log recovery path, adapted from file-backed durability onto the
// ordered-key pkg/kv.Store used throughout this store.
package journal

// Order is the result of comparing two vector clocks.
type Order int

const (
	Equal Order = iota
	Before
	After
	Concurrent
)

// Clock is a vector clock: nodeID -> logical counter. The zero value is a
// valid empty clock.
type Clock map[string]uint64

// Tick increments node's own counter and returns the updated clock (a
// copy; Clock values are treated as immutable once published to a
// ChangeEntry).
func (c Clock) Tick(node string) Clock {
	out := c.Clone()
	out[node] = out[node] + 1
	return out
}

// Merge returns the pointwise maximum of c and other, the CRDT join
// operation vector clocks use to absorb a remote clock.
func (c Clock) Merge(other Clock) Clock {
	out := c.Clone()
	for node, v := range other {
		if v > out[node] {
			out[node] = v
		}
	}
	return out
}

// Compare reports the causal relationship of c to other: Before if every
// component of c is <= the matching component of other (and at least one
// is strictly less), After if the reverse holds, Equal if all components
// match, Concurrent otherwise.
func (c Clock) Compare(other Clock) Order {
	cLessOrEqual, cStrictlyLess := true, false
	oLessOrEqual, oStrictlyLess := true, false

	nodes := make(map[string]bool, len(c)+len(other))
	for n := range c {
		nodes[n] = true
	}
	for n := range other {
		nodes[n] = true
	}

	for n := range nodes {
		a, b := c[n], other[n]
		if a > b {
			oLessOrEqual = false
		}
		if b > a {
			cLessOrEqual = false
		}
		if a < b {
			cStrictlyLess = true
		}
		if b < a {
			oStrictlyLess = true
		}
	}

	switch {
	case cLessOrEqual && oLessOrEqual:
		return Equal
	case cLessOrEqual && cStrictlyLess:
		return Before
	case oLessOrEqual && oStrictlyLess:
		return After
	default:
		return Concurrent
	}
}

// Clone returns an independent copy of c.
func (c Clock) Clone() Clock {
	out := make(Clock, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
