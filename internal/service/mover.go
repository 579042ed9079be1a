package service

import (
	"log"

	"github.com/mobsim/ridepool/internal/model"
	"github.com/mobsim/ridepool/internal/ride"
	"github.com/mobsim/ridepool/pkg/skim"
)

// ─── Vehicle mover ──────────────────────────────────────────

// MoveVehicleRide advances one (vehicle, ride) pair by dt seconds along
// the vehicle's planned path, firing pickup and dropoff events at node
// boundaries.
//
// Events are checked before, during, and after every node crossing so
// that stops coincident with the starting node, the arrival node, and
// nodes reached later within the same call all fire in traversal order.
func MoveVehicleRide(
	vehicle *model.Vehicle,
	rd ride.Ride,
	dt float64,
	sk *skim.Skim,
	opts Options,
	logger *log.Logger,
) error {
	timeLeft := dt

	for vehicle.Path.CurrentPath != nil {
		if err := vehicle.CheckPathInvariants(); err != nil {
			return err
		}
		vehicle.Path.Stationary = false

		edgeLength, err := sk.Distance(vehicle.Path.CurrentPosition, *vehicle.Path.ClosestCrossroad)
		if err != nil {
			return err
		}
		required := edgeLength/vehicle.Speed - vehicle.Path.TimeBetweenCrossroads

		if timeLeft < required {
			// Not enough time to reach the next crossroad.
			vehicle.Path.TimeBetweenCrossroads += timeLeft
			remaining := required - timeLeft
			vehicle.Path.ToClosestCrossroads = &remaining
			vehicle.Path.CurrentTime = vehicle.Path.CurrentTime.Add(seconds(timeLeft))
			checkEvents(rd, vehicle, opts, logger)
			break
		}

		// Fire anything pending at the node we are leaving.
		checkEvents(rd, vehicle, opts, logger)

		vehicle.Mileage += edgeLength
		timeLeft -= required
		vehicle.Path.CurrentTime = vehicle.Path.CurrentTime.Add(seconds(required))
		vehicle.Path.CurrentPosition = *vehicle.Path.ClosestCrossroad
		vehicle.Path.CurrentPath = vehicle.Path.CurrentPath[1:]
		vehicle.Path.TimeBetweenCrossroads = 0
		vehicle.Path.ToClosestCrossroads = nil

		for _, trav := range vehicle.Travellers {
			trav.DistanceTravelled[rd.Kind()] += edgeLength
		}

		checkEvents(rd, vehicle, opts, logger)

		if len(vehicle.Path.CurrentPath) == 1 {
			vehicle.Path.CurrentPath = nil
			vehicle.Path.ClosestCrossroad = nil
			vehicle.Path.Stationary = true
			vehicle.Available = true
			rd.RideState().Active = false
			logf(logger, "[mover] %s: ride %d finished with vehicle %d",
				vehicle.Path.CurrentTime.Format("15:04:05"), rd.RideState().ID, vehicle.ID)
		} else {
			next := vehicle.Path.CurrentPath[1]
			vehicle.Path.ClosestCrossroad = &next
		}

		checkEvents(rd, vehicle, opts, logger)
	}

	if !vehicle.Path.CurrentTime.Before(vehicle.EndTime) {
		vehicle.Available = false
	}
	return nil
}

// checkEvents fires every future stop located at the vehicle's current
// position: pickups board their traveller, dropoffs alight them.
// Fulfilled stops move to the ride's past list and leave every cached
// admissible combination.
func checkEvents(rd ride.Ride, vehicle *model.Vehicle, opts Options, logger *log.Logger) {
	st := rd.RideState()
	now := vehicle.Path.CurrentTime

	var due []model.Stop
	for _, stop := range st.DestinationPoints {
		if stop.Node == vehicle.Path.CurrentPosition {
			due = append(due, stop)
		}
	}

	for _, stop := range due {
		ev := model.Event{Time: now, Node: stop.Node, Kind: stop.Kind, TravellerID: stop.TravellerID}

		switch stop.Kind {
		case model.StopOrigin:
			trav, rest := model.RemoveTraveller(vehicle.ScheduledTravellers, stop.TravellerID)
			if trav != nil {
				vehicle.ScheduledTravellers = rest
				vehicle.Travellers = append(vehicle.Travellers, trav)
				trav.Service.PickedUp = true
				trav.Service.PickupDelay = now.Sub(trav.Request.RequestTime).Seconds()
			}
			if t, rest := model.RemoveTraveller(st.ScheduledTravellers, stop.TravellerID); t != nil {
				st.ScheduledTravellers = rest
				st.Travellers = append(st.Travellers, t)
			}
			vehicle.Events = append(vehicle.Events, ev)
			st.Events = append(st.Events, ev)
			logf(logger, "[mover] %s: traveller %d joined vehicle %d at node %d",
				now.Format("15:04:05"), stop.TravellerID, vehicle.ID, stop.Node)

		case model.StopDestination:
			if t, rest := model.RemoveTraveller(st.Travellers, stop.TravellerID); t != nil {
				st.Travellers = rest
			}
			if t, rest := model.RemoveTraveller(vehicle.Travellers, stop.TravellerID); t != nil {
				vehicle.Travellers = rest
			}
			vehicle.Events = append(vehicle.Events, ev)
			st.Events = append(st.Events, ev)
			if opts.PoolCapacityFreed && rd.Kind() == model.ServicePool {
				vehicle.Available = true
			}
			logf(logger, "[mover] %s: traveller %d finished trip at node %d",
				now.Format("15:04:05"), stop.TravellerID, stop.Node)

		}

		st.DestinationPoints = removeStop(st.DestinationPoints, stop)
		st.PastDestinationPoints = append(st.PastDestinationPoints, stop)

		if pool, ok := rd.(*ride.PoolRide); ok && (stop.Kind == model.StopOrigin || stop.Kind == model.StopDestination) {
			pool.AdmissibleCombinations = ride.RemoveStopFromCombinations(pool.AdmissibleCombinations, stop)
		}
	}

	if len(st.Travellers) == 0 && len(st.ScheduledTravellers) == 0 {
		st.Active = false
	}
}

func removeStop(stops []model.Stop, stop model.Stop) []model.Stop {
	for i, st := range stops {
		if st == stop {
			return append(stops[:i], stops[i+1:]...)
		}
	}
	return stops
}
