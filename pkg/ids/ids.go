// Package ids generates the opaque UUID-like identifiers spec.md §3 calls
// for on neurons, synapses, attractors, and journal node ids. Centralizing
// generation here keeps the arena-of-ids pattern (spec.md §9) consistent:
// nothing outside this package constructs an id string by hand.
package ids

import "github.com/google/uuid"

// New returns a fresh random (v4) id in canonical hyphenated form, e.g.
// "f47ac10b-58cc-4372-a567-0e02b2c3d479".
func New() string {
	return uuid.NewString()
}

// Valid reports whether s parses as a UUID. Stores use this to reject
// malformed ids at the boundary (InvalidInput) rather than storing garbage.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
