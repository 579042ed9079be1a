package ride

import (
	"fmt"

	"github.com/mobsim/ridepool/internal/model"
	"github.com/mobsim/ridepool/pkg/skim"
)

// ─── PoolRide ───────────────────────────────────────────────

// PoolRide is an on-demand ride that may become shared. It starts as a
// single-traveller ride and accepts insertions of further travellers as
// long as the stop-sequence, utility, and profitability constraints hold.
type PoolRide struct {
	State

	// AdmissibleCombinations is the current set of orderings of the
	// remaining stops this ride could still execute. Every ordering
	// keeps each origin ahead of its paired destination.
	AdmissibleCombinations [][]model.Stop

	Shared bool

	// VehicleStartPosition is the node the serving vehicle was heading
	// to (or standing at) when the ride was committed.
	VehicleStartPosition int64
}

// NewPoolRide builds a poolable ride with a single scheduled traveller.
// The initial stop sequence seeds the admissible-combinations set.
func NewPoolRide(id int64, traveller *model.Traveller, stops []model.Stop) *PoolRide {
	seed := make([]model.Stop, len(stops))
	copy(seed, stops)
	return &PoolRide{
		State: State{
			ID:                  id,
			ScheduledTravellers: []*model.Traveller{traveller},
			DestinationPoints:   stops,
			Active:              true,
		},
		AdmissibleCombinations: [][]model.Stop{seed},
	}
}

// Kind reports the ride variant tag.
func (r *PoolRide) Kind() model.ServiceKind { return model.ServicePool }

// SoloUtility is the taxi-style baseline utility used when the ride
// carries (or would carry) a single traveller.
func (r *PoolRide) SoloUtility(
	vehicle *model.Vehicle,
	traveller *model.Traveller,
	fare float64,
	sk *skim.Skim,
	pickupDelay *float64,
) (float64, error) {
	return taxiUtility(vehicle, traveller, fare, sk, pickupDelay)
}

// SharedUtility computes the traveller's utility under the candidate
// stop sequence when the ride is shared by travellers riders:
//
//	U = −L·fare·(1−poolDiscount) − (L/speed)·VoT·PfS[N]
//	    − pickupDelay·VoT·pickupDelaySensitivity − PfSconst
//
// L is the traveller's effective in-vehicle distance: for an onboard
// traveller it is reconstructed from their past pickup through the
// vehicle's current edge through the remaining sequence to their
// dropoff; otherwise from the vehicle through the future sequence up to
// their dropoff.
func (r *PoolRide) SharedUtility(
	traveller *model.Traveller,
	seq []model.Stop,
	travellers int,
	fare float64,
	poolDiscount float64,
	sk *skim.Skim,
) (float64, error) {
	vehicle := r.ServingVehicle
	if vehicle == nil {
		return 0, fmt.Errorf("ride %d: shared utility without a serving vehicle", r.ID)
	}

	alreadyPickedUp := traveller.Service.PickedUp

	nodes, err := r.effectiveNodes(traveller, seq, alreadyPickedUp)
	if err != nil {
		return 0, err
	}
	tripLength, err := sk.Distance(nodes...)
	if err != nil {
		return 0, err
	}

	var delay float64
	if alreadyPickedUp {
		delay = traveller.Service.PickupDelay
	} else {
		approach, err := r.approachDistance(traveller, seq)
		if err != nil {
			return 0, err
		}
		d, err := sk.Distance(approach...)
		if err != nil {
			return 0, err
		}
		delay = d / vehicle.Speed
	}

	pref := traveller.Behaviour
	u := -tripLength * fare * (1 - poolDiscount)
	u -= tripLength / vehicle.Speed * pref.VoT * pref.PfSFor(travellers)
	u -= delay * pref.VoT * pref.PickupDelaySensitivity
	u -= pref.PfSConst
	return u, nil
}

// effectiveNodes rebuilds the node sequence the traveller experiences
// under the candidate ordering.
func (r *PoolRide) effectiveNodes(traveller *model.Traveller, seq []model.Stop, onboard bool) ([]int64, error) {
	vehicle := r.ServingVehicle
	var nodes []int64

	if onboard {
		// Past trail from the traveller's pickup onwards.
		started := false
		for _, st := range r.PastDestinationPoints {
			if !started && st.Kind == model.StopOrigin && st.TravellerID == traveller.ID {
				started = true
			}
			if started {
				nodes = append(nodes, st.Node)
			}
		}
		if !started {
			return nil, fmt.Errorf("ride %d: traveller %d marked onboard but has no past pickup", r.ID, traveller.ID)
		}
	}

	nodes = append(nodes, vehicle.Path.CurrentPosition)
	if vehicle.Path.ClosestCrossroad != nil {
		nodes = append(nodes, *vehicle.Path.ClosestCrossroad)
	}

	for _, st := range seq {
		nodes = append(nodes, st.Node)
		if st.Kind == model.StopDestination && st.TravellerID == traveller.ID {
			return nodes, nil
		}
	}
	return nil, fmt.Errorf("ride %d: sequence has no dropoff for traveller %d", r.ID, traveller.ID)
}

// approachDistance is the node sequence from the vehicle through the
// candidate prefix up to the traveller's pickup.
func (r *PoolRide) approachDistance(traveller *model.Traveller, seq []model.Stop) ([]int64, error) {
	vehicle := r.ServingVehicle
	nodes := []int64{vehicle.Path.CurrentPosition}
	if vehicle.Path.ClosestCrossroad != nil {
		nodes = append(nodes, *vehicle.Path.ClosestCrossroad)
	}
	for _, st := range seq {
		nodes = append(nodes, st.Node)
		if st.Kind == model.StopOrigin && st.TravellerID == traveller.ID {
			return nodes, nil
		}
	}
	return nil, fmt.Errorf("ride %d: sequence has no pickup for traveller %d", r.ID, traveller.ID)
}

// ComputeProfitability computes the operator-side outcome under the
// candidate extension:
//
//	revenue = (1−sharingDiscount)·fare·Σ tripLength  (shared)
//	          fare·tripLength                        (single traveller)
//	cost    = operatingCost · distance(eventTrail ⧺ newStops)
//
// newStops and additionalTraveller may be nil to evaluate the ride as
// currently committed.
func (r *PoolRide) ComputeProfitability(
	fare float64,
	operatingCost float64,
	sharingDiscount float64,
	newStops []model.Stop,
	additionalTraveller *model.Traveller,
	sk *skim.Skim,
) (Profitability, error) {
	travellers := r.AllTravellers()
	if additionalTraveller != nil {
		travellers = append(travellers, additionalTraveller)
	}

	var revenue float64
	if len(travellers) > 1 {
		var total float64
		for _, t := range travellers {
			total += t.Request.TripLength
		}
		revenue = (1 - sharingDiscount) * fare * total
	} else if len(travellers) == 1 {
		revenue = fare * travellers[0].Request.TripLength
	}

	stops := newStops
	if stops == nil {
		stops = r.DestinationPoints
	}
	trail := append(r.EventTrail(), StopNodes(stops)...)
	dist, err := sk.Distance(trail...)
	if err != nil {
		return Profitability{}, err
	}
	cost := operatingCost * dist

	return Profitability{Revenue: revenue, Cost: cost, Profit: revenue - cost}, nil
}

// AddTraveller commits an insertion: the traveller joins the vehicle's
// schedule, the vehicle's path is rebuilt through the new stop sequence,
// and the ride's plan, admissible set, and profitability are replaced.
// The vehicle becomes unavailable once it reaches capacity.
func (r *PoolRide) AddTraveller(
	traveller *model.Traveller,
	profitability Profitability,
	stops []model.Stop,
	admissible [][]model.Stop,
	sk *skim.Skim,
) error {
	vehicle := r.ServingVehicle
	if vehicle == nil {
		return fmt.Errorf("ride %d: add traveller without a serving vehicle", r.ID)
	}

	r.ScheduledTravellers = append(r.ScheduledTravellers, traveller)
	vehicle.ScheduledTravellers = append(vehicle.ScheduledTravellers, traveller)
	if vehicle.AtCapacity() {
		vehicle.Available = false
	}

	nodes := []int64{vehicle.Path.CurrentPosition}
	if vehicle.Path.ClosestCrossroad != nil {
		nodes = append(nodes, *vehicle.Path.ClosestCrossroad)
	}
	nodes = append(nodes, StopNodes(stops)...)
	newPath, err := sk.Path(nodes...)
	if err != nil {
		return err
	}
	if len(newPath) < 2 {
		return fmt.Errorf("ride %d: rebuilt path has no edge to follow", r.ID)
	}
	vehicle.Path.CurrentPath = newPath
	next := newPath[1]
	vehicle.Path.ClosestCrossroad = &next
	vehicle.Path.Stationary = false

	// The plan and the cached orderings must not share backing arrays:
	// fulfilled stops are later spliced out of the plan in place, and the
	// chosen sequence is itself one of the enumerated orderings.
	r.DestinationPoints = append([]model.Stop(nil), stops...)
	combos := make([][]model.Stop, len(admissible))
	for i, seq := range admissible {
		combos[i] = append([]model.Stop(nil), seq...)
	}
	r.AdmissibleCombinations = combos
	r.Profitability = profitability
	r.Shared = true
	r.Active = true
	return nil
}
