package attractor

import (
	"math"
	"time"
)

// decayLambda is chosen so strength halves roughly every 24h of inactivity
// (spec.md §3: "strength decays if untouched for >24h of wall-clock time"),
// narrowly extracted from the teacher's three-tier exponential decay system
// (pkg/decay/decay.go's `score = exp(-lambda*hoursSinceAccess)`, lambda
// picked per tier via its `HalfLife(tier) = ln(2)/lambda/24` relation). This
// store has only one decaying quantity — attractor strength — so the tier
// table and reinforcement-on-access bookkeeping that formula lived inside
// are not carried over; see DESIGN.md for the cut rationale.
const decayHalfLifeHours = 24.0

var decayLambda = math.Log(2) / decayHalfLifeHours

// DecayStrength applies exponential decay to strength based on hours
// elapsed since lastActivated, floored at 0.
func DecayStrength(strength float64, lastActivated time.Time, now time.Time) float64 {
	hours := now.Sub(lastActivated).Hours()
	if hours <= 0 {
		return strength
	}
	decayed := strength * math.Exp(-decayLambda*hours)
	if decayed < 0 {
		return 0
	}
	return decayed
}

// ShouldPrune reports whether an attractor has decayed past the point of
// usefulness (spec.md §3: "pruned when strength < 0.01 and activations < 5").
func ShouldPrune(strength float64, activations int64) bool {
	return strength < 0.01 && activations < 5
}
