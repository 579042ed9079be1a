package service

import (
	"log"
	"math"
	"sort"

	"github.com/mobsim/ridepool/internal/model"
	"github.com/mobsim/ridepool/internal/ride"
	"github.com/mobsim/ridepool/pkg/skim"
)

// ─── Fare and cost tables ───────────────────────────────────

// FareTable holds one operator's per-meter fares.
type FareTable struct {
	Taxi         float64
	Pool         float64
	PoolDiscount float64
}

// CostTable holds one operator's per-meter operating costs.
type CostTable struct {
	Taxi float64
	Pool float64
}

// ─── Dispatcher ─────────────────────────────────────────────

// Dispatcher is one operator's matcher. It owns its fleet and rides;
// travellers are owned by the simulation and referenced weakly.
//
// Matching overview, per incoming pool request:
//
//  1. FALLBACK: find the closest empty pool vehicle and price a solo
//     taxi-style ride, if its approach fits the traveller's pickup bound.
//  2. ENUMERATE: for every ongoing shared ride, insert the new (o,d)
//     pair into each cached admissible ordering (ride.InsertionCandidates).
//  3. FILTER: drop orderings unattractive for any participant, then
//     orderings that do not raise the ride's profit.
//  4. SELECT: ascending sort by profit; the event loop commits the last
//     (best-profit) candidate, falling back to the solo ride.
type Dispatcher struct {
	ID             string
	Fares          FareTable
	OperatingCosts CostTable

	Fleet map[model.ServiceKind][]*model.Vehicle
	Rides map[model.ServiceKind][]ride.Ride

	opts   Options
	logger *log.Logger

	nextRideID int64
}

// NewDispatcher creates an operator with an empty fleet.
func NewDispatcher(id string, fares FareTable, costs CostTable, opts Options, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		ID:             id,
		Fares:          fares,
		OperatingCosts: costs,
		Fleet:          make(map[model.ServiceKind][]*model.Vehicle),
		Rides:          make(map[model.ServiceKind][]ride.Ride),
		opts:           opts,
		logger:         logger,
	}
}

// RegisterVehicle adds a vehicle to the fleet under its declared type.
func (d *Dispatcher) RegisterVehicle(v *model.Vehicle) {
	d.Fleet[v.Type] = append(d.Fleet[v.Type], v)
}

// AllRides returns every ride the operator has committed.
func (d *Dispatcher) AllRides() []ride.Ride {
	var out []ride.Ride
	for _, rides := range d.Rides {
		out = append(out, rides...)
	}
	return out
}

// AllVehicles returns every vehicle of the fleet.
func (d *Dispatcher) AllVehicles() []*model.Vehicle {
	var out []*model.Vehicle
	for _, vehs := range d.Fleet {
		out = append(out, vehs...)
	}
	return out
}

func (d *Dispatcher) newRideID() int64 {
	d.nextRideID++
	return d.nextRideID
}

// ─── Closest vehicle ────────────────────────────────────────

// ClosestVehicle is the result of a fleet scan.
type ClosestVehicle struct {
	Vehicle       *model.Vehicle
	TimeToArrival float64 // seconds
}

// FindClosestVehicle scans the fleet of the allowed types and returns
// the available vehicle with the smallest approach time to the request
// origin; ties keep the first found in scan order. With emptyPoolOnly a
// pool vehicle carrying or expecting any traveller is skipped.
func (d *Dispatcher) FindClosestVehicle(
	origin int64,
	types []model.ServiceKind,
	sk *skim.Skim,
	emptyPoolOnly bool,
) (ClosestVehicle, bool) {
	best := ClosestVehicle{TimeToArrival: math.Inf(1)}
	found := false

	for _, kind := range types {
		for _, veh := range d.Fleet[kind] {
			if !veh.Available {
				continue
			}
			if emptyPoolOnly && kind == model.ServicePool && veh.Occupancy() != 0 {
				continue
			}
			dist, err := sk.Distance(origin, veh.Path.CurrentPosition)
			if err != nil {
				logf(d.logger, "[dispatch] %s: skipping vehicle %d: %v", d.ID, veh.ID, err)
				continue
			}
			t := dist / veh.Speed
			if t < best.TimeToArrival {
				best = ClosestVehicle{Vehicle: veh, TimeToArrival: t}
				found = true
			}
		}
	}
	return best, found
}

// ─── Taxi dispatch ──────────────────────────────────────────

// TaxiProposal is a priced private-ride assignment candidate.
type TaxiProposal struct {
	Ride          *ride.TaxiRide
	Vehicle       *model.Vehicle
	Profitability ride.Profitability
	Utility       float64
}

// TaxiUtility finds the closest taxi-capable vehicle and prices a fresh
// private ride for the traveller. With onlyTaxi the scan is restricted
// to the taxi fleet; otherwise an empty pool vehicle also qualifies.
// ok=false when no vehicle is free.
func (d *Dispatcher) TaxiUtility(
	traveller *model.Traveller,
	sk *skim.Skim,
	onlyTaxi bool,
) (TaxiProposal, bool, error) {
	var cv ClosestVehicle
	var found bool
	if onlyTaxi {
		cv, found = d.FindClosestVehicle(traveller.Request.Origin, []model.ServiceKind{model.ServiceTaxi}, sk, false)
	} else {
		cv, found = d.FindClosestVehicle(traveller.Request.Origin,
			[]model.ServiceKind{model.ServiceTaxi, model.ServicePool}, sk, true)
	}
	if !found {
		return TaxiProposal{}, false, nil
	}

	stops := []model.Stop{
		{Node: traveller.Request.Origin, Kind: model.StopOrigin, TravellerID: traveller.ID},
		{Node: traveller.Request.Destination, Kind: model.StopDestination, TravellerID: traveller.ID},
	}
	newRide := ride.NewTaxiRide(d.newRideID(), traveller, stops)

	utility, err := newRide.Utility(cv.Vehicle, traveller, d.Fares.Taxi, sk, nil)
	if err != nil {
		return TaxiProposal{}, false, err
	}
	profitability, err := newRide.ComputeProfitability(cv.Vehicle, traveller, d.Fares.Taxi, d.OperatingCosts.Taxi, sk)
	if err != nil {
		return TaxiProposal{}, false, err
	}

	logf(d.logger, "[dispatch] %s: taxi utility %.2f for traveller %d (vehicle %d, %.0fs away)",
		d.ID, utility, traveller.ID, cv.Vehicle.ID, cv.TimeToArrival)

	return TaxiProposal{Ride: newRide, Vehicle: cv.Vehicle, Profitability: profitability, Utility: utility}, true, nil
}

// AssignTaxi commits a private-style ride (TaxiRide, or a single
// traveller PoolRide fallback) to the vehicle: the ride binds the
// vehicle, the vehicle schedules the traveller and receives a path
// through the ride's stops, and the traveller's taxi utility is
// recorded.
func (d *Dispatcher) AssignTaxi(
	rd ride.Ride,
	vehicle *model.Vehicle,
	utility float64,
	traveller *model.Traveller,
	profitability ride.Profitability,
	sk *skim.Skim,
) error {
	st := rd.RideState()
	st.ServingVehicle = vehicle

	markerNode := vehicle.Path.CurrentPosition
	if vehicle.Path.ClosestCrossroad != nil {
		markerNode = *vehicle.Path.ClosestCrossroad
	}
	st.Events = append(st.Events, model.Event{
		Time:        vehicle.Path.CurrentTime,
		Node:        markerNode,
		Kind:        model.StopAssignment,
		TravellerID: traveller.ID,
	})
	st.Profitability = profitability

	vehicle.Available = false
	vehicle.ScheduledTravellers = []*model.Traveller{traveller}

	nodes := append([]int64{vehicle.Path.CurrentPosition}, ride.StopNodes(st.DestinationPoints)...)
	newPath, err := sk.Path(nodes...)
	if err != nil {
		return err
	}
	if len(newPath) < 2 {
		return model.ErrInvariant
	}
	vehicle.Path.CurrentPath = newPath
	next := newPath[1]
	vehicle.Path.ClosestCrossroad = &next
	vehicle.Path.Stationary = false

	d.Rides[rd.Kind()] = append(d.Rides[rd.Kind()], rd)
	traveller.Utilities[model.ServiceTaxi] = utility

	if pool, ok := rd.(*ride.PoolRide); ok {
		pool.VehicleStartPosition = *vehicle.Path.ClosestCrossroad
	}

	logf(d.logger, "[dispatch] %s: %s: traveller %d assigned to vehicle %d",
		d.ID, vehicle.Path.CurrentTime.Format("15:04:05"), traveller.ID, vehicle.ID)
	return nil
}

// ─── Pool dispatch ──────────────────────────────────────────

// PoolFallback is the solo pool ride offered when no shared insertion
// survives the filters.
type PoolFallback struct {
	Ride          *ride.PoolRide
	Vehicle       *model.Vehicle
	Utility       float64
	Profitability ride.Profitability
}

// PoolCandidate is one surviving insertion into an ongoing shared ride.
type PoolCandidate struct {
	Ride          *ride.PoolRide
	Sequence      []model.Stop
	Profitability ride.Profitability
	Utilities     map[int64]float64 // traveller id → shared utility
	Admissible    [][]model.Stop    // enumerated orderings, pre-filter
}

// PoolUtility prices all ways of serving a pool request: a solo taxi
// fallback on an empty pool vehicle, and insertions into every ongoing
// shared ride. Candidates are returned sorted ascending by profit (ties
// by ride id), so the best candidate is last.
func (d *Dispatcher) PoolUtility(
	traveller *model.Traveller,
	sk *skim.Skim,
) ([]PoolCandidate, *PoolFallback, error) {
	maxPickupTime := traveller.Behaviour.MaxPickup

	originStop := model.Stop{Node: traveller.Request.Origin, Kind: model.StopOrigin, TravellerID: traveller.ID}
	destStop := model.Stop{Node: traveller.Request.Destination, Kind: model.StopDestination, TravellerID: traveller.ID}

	// ── Step 1: solo taxi fallback ──────────────────────
	var fallback *PoolFallback
	if cv, found := d.FindClosestVehicle(traveller.Request.Origin, []model.ServiceKind{model.ServicePool}, sk, true); found &&
		cv.TimeToArrival <= maxPickupTime {
		solo := ride.NewPoolRide(d.newRideID(), traveller, []model.Stop{originStop, destStop})

		utility, err := solo.SoloUtility(cv.Vehicle, traveller, d.Fares.Taxi, sk, nil)
		if err != nil {
			return nil, nil, err
		}
		deadhead, err := sk.Distance(cv.Vehicle.Path.CurrentPosition, traveller.Request.Origin)
		if err != nil {
			return nil, nil, err
		}
		revenue := d.Fares.Pool * traveller.Request.TripLength
		cost := (deadhead + traveller.Request.TripLength) * d.OperatingCosts.Pool

		traveller.Utilities[model.ServiceTaxi] = utility
		fallback = &PoolFallback{
			Ride:          solo,
			Vehicle:       cv.Vehicle,
			Utility:       utility,
			Profitability: ride.Profitability{Revenue: revenue, Cost: cost, Profit: revenue - cost},
		}
	}

	// ── Step 2: insertions into ongoing shared rides ────
	var candidates []PoolCandidate

	for _, anyRide := range d.Rides[model.ServicePool] {
		pool, ok := anyRide.(*ride.PoolRide)
		if !ok || !pool.Active || len(pool.AllTravellers()) == 0 || pool.ServingVehicle == nil {
			continue
		}
		if pool.ServingVehicle.AtCapacity() {
			continue
		}

		maxDistancePickup := maxPickupTime * pool.ServingVehicle.Speed
		remaining, err := pool.RemainingDistance(sk)
		if err != nil {
			return nil, nil, err
		}
		maxTripLength := remaining + traveller.Request.TripLength

		sequences, err := ride.InsertionCandidates(pool, originStop, destStop, maxDistancePickup, maxTripLength, sk)
		if err != nil {
			return nil, nil, err
		}
		if len(sequences) == 0 {
			continue
		}
		admissible := make([][]model.Stop, len(sequences))
		copy(admissible, sequences)

		participants := append(pool.AllTravellers(), traveller)
		n := len(participants)

		for _, seq := range sequences {
			// Every participant's shared utility is priced and recorded on
			// the candidate regardless of filtering; AssignPool writes it
			// back on commit.
			utilities := make(map[int64]float64, n)
			attractive := true
			for _, p := range participants {
				shared, err := pool.SharedUtility(p, seq, n, d.Fares.Pool, d.Fares.PoolDiscount, sk)
				if err != nil {
					return nil, nil, err
				}
				utilities[p.ID] = shared
				if baseline, ok := p.Utilities[model.ServiceTaxi]; ok && shared <= baseline {
					attractive = false
				}
			}

			// Filter A: every participant must beat their solo baseline.
			if d.opts.AttractiveOnly && !attractive {
				continue
			}

			// Filter B: the insertion must raise the ride's profit.
			profitability, err := pool.ComputeProfitability(
				d.Fares.Pool, d.OperatingCosts.Pool, d.Fares.PoolDiscount, seq, traveller, sk)
			if err != nil {
				return nil, nil, err
			}
			if d.opts.ProfitableOnly && profitability.Profit <= pool.Profitability.Profit {
				continue
			}

			candidates = append(candidates, PoolCandidate{
				Ride:          pool,
				Sequence:      seq,
				Profitability: profitability,
				Utilities:     utilities,
				Admissible:    admissible,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Profitability.Profit != candidates[j].Profitability.Profit {
			return candidates[i].Profitability.Profit < candidates[j].Profitability.Profit
		}
		return candidates[i].Ride.ID < candidates[j].Ride.ID
	})

	logf(d.logger, "[dispatch] %s: traveller %d: %d pool candidates, fallback=%v",
		d.ID, traveller.ID, len(candidates), fallback != nil)

	return candidates, fallback, nil
}

// AssignPool commits the highest-profit candidate: participants record
// their shared utilities and the ride absorbs the new traveller with the
// chosen stop sequence.
func (d *Dispatcher) AssignPool(
	candidates []PoolCandidate,
	traveller *model.Traveller,
	sk *skim.Skim,
) error {
	best := candidates[len(candidates)-1]

	for id, utility := range best.Utilities {
		for _, p := range append(best.Ride.AllTravellers(), traveller) {
			if p.ID == id {
				p.Utilities[model.ServicePool] = utility
			}
		}
	}

	if err := best.Ride.AddTraveller(traveller, best.Profitability, best.Sequence, best.Admissible, sk); err != nil {
		return err
	}

	logf(d.logger, "[dispatch] %s: traveller %d inserted into pool ride %d (profit %.2f)",
		d.ID, traveller.ID, best.Ride.ID, best.Profitability.Profit)
	return nil
}
