package ride

import (
	"fmt"
	"strings"

	"github.com/mobsim/ridepool/internal/model"
	"github.com/mobsim/ridepool/pkg/skim"
)

// ─── Insertion enumeration ──────────────────────────────────

// InsertionCandidates enumerates every ordering obtained by inserting
// the new traveller's origin at position i and destination at position
// j>i into each currently admissible ordering of the ride's remaining
// stops, subject to:
//
//  1. Precedence — every origin precedes its paired destination. This
//     holds by construction: the base orderings are admissible and the
//     new origin is always placed ahead of the new destination.
//  2. Pickup bound — the distance from the vehicle's current position
//     through the prefix up to the new origin must not exceed
//     maxDistancePickup (meters).
//  3. Detour bound — the distance from the vehicle's current position
//     through the full sequence must not exceed maxTripLength (meters).
//
// The enumerator consumes the ride's cached admissible-combinations set,
// so it prunes exponentially with ride size. Returns the empty list when
// no ordering survives.
func InsertionCandidates(
	r *PoolRide,
	origin model.Stop,
	destination model.Stop,
	maxDistancePickup float64,
	maxTripLength float64,
	sk *skim.Skim,
) ([][]model.Stop, error) {
	vehicle := r.ServingVehicle
	if vehicle == nil {
		return nil, fmt.Errorf("ride %d: insertion candidates without a serving vehicle", r.ID)
	}

	var out [][]model.Stop
	seen := make(map[string]bool)

	for _, base := range r.AdmissibleCombinations {
		for i := 0; i <= len(base); i++ {
			for j := i + 1; j <= len(base)+1; j++ {
				seq := insertPair(base, origin, i, destination, j)

				key := sequenceKey(seq)
				if seen[key] {
					continue
				}
				seen[key] = true

				ok, err := withinBounds(vehicle, seq, origin, maxDistancePickup, maxTripLength, sk)
				if err != nil {
					return nil, err
				}
				if ok {
					out = append(out, seq)
				}
			}
		}
	}
	return out, nil
}

// insertPair places origin at index i and destination at index j of the
// resulting sequence (j counted after the origin insertion).
func insertPair(base []model.Stop, origin model.Stop, i int, destination model.Stop, j int) []model.Stop {
	seq := make([]model.Stop, 0, len(base)+2)
	seq = append(seq, base[:i]...)
	seq = append(seq, origin)
	seq = append(seq, base[i:]...)

	out := make([]model.Stop, 0, len(seq)+1)
	out = append(out, seq[:j]...)
	out = append(out, destination)
	out = append(out, seq[j:]...)
	return out
}

func withinBounds(
	vehicle *model.Vehicle,
	seq []model.Stop,
	origin model.Stop,
	maxDistancePickup float64,
	maxTripLength float64,
	sk *skim.Skim,
) (bool, error) {
	// Pickup bound.
	prefix := []int64{vehicle.Path.CurrentPosition}
	for _, st := range seq {
		prefix = append(prefix, st.Node)
		if st == origin {
			break
		}
	}
	pickupDist, err := sk.Distance(prefix...)
	if err != nil {
		return false, err
	}
	if pickupDist > maxDistancePickup {
		return false, nil
	}

	// Detour bound over the full route from the vehicle.
	total, err := sk.Distance(append([]int64{vehicle.Path.CurrentPosition}, StopNodes(seq)...)...)
	if err != nil {
		return false, err
	}
	return total <= maxTripLength, nil
}

// CheckPrecedence reports whether every origin in the ordering precedes
// its paired destination.
func CheckPrecedence(seq []model.Stop) bool {
	dropped := make(map[int64]bool)
	for _, st := range seq {
		switch st.Kind {
		case model.StopOrigin:
			if dropped[st.TravellerID] {
				return false
			}
		case model.StopDestination:
			dropped[st.TravellerID] = true
		}
	}
	return true
}

// RemoveStopFromCombinations drops a fulfilled stop from every cached
// admissible ordering.
func RemoveStopFromCombinations(combs [][]model.Stop, stop model.Stop) [][]model.Stop {
	for ci, comb := range combs {
		for si, st := range comb {
			if st == stop {
				combs[ci] = append(comb[:si], comb[si+1:]...)
				break
			}
		}
	}
	return combs
}

func sequenceKey(seq []model.Stop) string {
	var b strings.Builder
	for _, st := range seq {
		fmt.Fprintf(&b, "%d%s%d|", st.Node, st.Kind, st.TravellerID)
	}
	return b.String()
}
