// Package ride implements the two ride variants of the simulation — the
// private TaxiRide and the shared PoolRide — together with per-traveller
// utility, operator profitability, and the shared-ride insertion
// enumerator.
package ride

import (
	"github.com/mobsim/ridepool/internal/model"
	"github.com/mobsim/ridepool/pkg/skim"
)

// ─── Profitability ──────────────────────────────────────────

// Profitability is the operator-side outcome of a ride.
type Profitability struct {
	Revenue float64
	Cost    float64
	Profit  float64
}

// ─── Ride sum type ──────────────────────────────────────────

// Ride is the closed sum over TaxiRide and PoolRide.
type Ride interface {
	RideState() *State
	Kind() model.ServiceKind
}

var (
	_ Ride = (*TaxiRide)(nil)
	_ Ride = (*PoolRide)(nil)
)

// State holds the fields shared by both ride variants.
type State struct {
	ID int64

	Travellers          []*model.Traveller // picked up and still onboard
	ScheduledTravellers []*model.Traveller // assigned, not yet picked up

	DestinationPoints     []model.Stop // future stops, ordered
	PastDestinationPoints []model.Stop // fulfilled stops

	ServingVehicle *model.Vehicle
	Active         bool
	Profitability  Profitability
	Events         []model.Event
}

// RideState returns the shared ride state; it makes both variants
// satisfy Ride. The name avoids colliding with the embedded State field,
// which would shadow a promoted method called State.
func (s *State) RideState() *State { return s }

// AllTravellers returns onboard plus scheduled travellers.
func (s *State) AllTravellers() []*model.Traveller {
	out := make([]*model.Traveller, 0, len(s.Travellers)+len(s.ScheduledTravellers))
	out = append(out, s.Travellers...)
	out = append(out, s.ScheduledTravellers...)
	return out
}

// EventTrail returns the ordered node trail recorded in the ride's event
// log, with consecutive duplicates collapsed.
func (s *State) EventTrail() []int64 {
	var trail []int64
	for _, ev := range s.Events {
		if len(trail) > 0 && trail[len(trail)-1] == ev.Node {
			continue
		}
		trail = append(trail, ev.Node)
	}
	return trail
}

// RemainingDistance is the shortest-path length of the route still ahead
// of the serving vehicle, in meters: its current position through the
// future stop sequence.
func (s *State) RemainingDistance(sk *skim.Skim) (float64, error) {
	nodes := make([]int64, 0, len(s.DestinationPoints)+1)
	if s.ServingVehicle != nil {
		nodes = append(nodes, s.ServingVehicle.Path.CurrentPosition)
	}
	nodes = append(nodes, StopNodes(s.DestinationPoints)...)
	return sk.Distance(nodes...)
}

// ─── Helpers ────────────────────────────────────────────────

// StopNodes extracts the node sequence of a stop list.
func StopNodes(stops []model.Stop) []int64 {
	nodes := make([]int64, len(stops))
	for i, st := range stops {
		nodes[i] = st.Node
	}
	return nodes
}

// taxiUtility is the solo-ride utility formula shared by TaxiRide and the
// pool solo baseline:
//
//	U = −L·fare − (L/speed)·VoT − pickupDelay·VoT·pickupDelaySensitivity
//
// where L is the traveller's direct trip length and pickupDelay defaults
// to deadheadDistance/speed.
func taxiUtility(
	vehicle *model.Vehicle,
	traveller *model.Traveller,
	fare float64,
	sk *skim.Skim,
	pickupDelay *float64,
) (float64, error) {
	tripLength := traveller.Request.TripLength

	var delay float64
	if pickupDelay != nil {
		delay = *pickupDelay
	} else {
		deadhead, err := sk.Distance(traveller.Request.Origin, vehicle.Path.CurrentPosition)
		if err != nil {
			return 0, err
		}
		delay = deadhead / vehicle.Speed
	}

	pref := traveller.Behaviour
	u := -tripLength * fare
	u -= tripLength / vehicle.Speed * pref.VoT
	u -= delay * pref.VoT * pref.PickupDelaySensitivity
	return u, nil
}
