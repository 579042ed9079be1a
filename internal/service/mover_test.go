package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mobsim/ridepool/internal/model"
	"github.com/mobsim/ridepool/internal/ride"
	"github.com/mobsim/ridepool/pkg/skim"
)

// enRouteTaxi builds a taxi ride whose vehicle is about to drive 1→2→3
// picking up its traveller at node 1.
func enRouteTaxi(t *testing.T, sk *skim.Skim) (*model.Vehicle, *ride.TaxiRide, *model.Traveller) {
	t.Helper()
	veh := testVehicle(1, 1, model.ServiceTaxi, 10)
	trav := testTraveller(1, 1, 3, model.ServiceTaxi, 2000)

	rd := ride.NewTaxiRide(1, trav, []model.Stop{
		{Node: 1, Kind: model.StopOrigin, TravellerID: 1},
		{Node: 3, Kind: model.StopDestination, TravellerID: 1},
	})
	rd.ServingVehicle = veh

	veh.Available = false
	veh.ScheduledTravellers = []*model.Traveller{trav}
	path, err := sk.Path(1, 1, 3)
	require.NoError(t, err)
	veh.Path.CurrentPath = path
	next := path[1]
	veh.Path.ClosestCrossroad = &next
	veh.Path.Stationary = false
	return veh, rd, trav
}

func TestMove_SplitEqualsWhole(t *testing.T) {
	sk := lineSkim(t)
	opts := DefaultOptions()

	vehA, rdA, _ := enRouteTaxi(t, sk)
	require.NoError(t, MoveVehicleRide(vehA, rdA, 150, sk, opts, nil))

	vehB, rdB, _ := enRouteTaxi(t, sk)
	require.NoError(t, MoveVehicleRide(vehB, rdB, 70, sk, opts, nil))
	require.NoError(t, MoveVehicleRide(vehB, rdB, 80, sk, opts, nil))

	require.Equal(t, vehA.Path.CurrentPosition, vehB.Path.CurrentPosition)
	require.Equal(t, vehA.Mileage, vehB.Mileage)
	require.InDelta(t, vehA.Path.TimeBetweenCrossroads, vehB.Path.TimeBetweenCrossroads, 1e-9)
	require.True(t, vehA.Path.CurrentTime.Equal(vehB.Path.CurrentTime))

	// 150 s at 10 m/s: one full edge plus 50 s into the second.
	require.EqualValues(t, 2, vehA.Path.CurrentPosition)
	require.InDelta(t, 1000, vehA.Mileage, 1e-9)
	require.InDelta(t, 50, vehA.Path.TimeBetweenCrossroads, 1e-9)
}

func TestMove_EventsFireInOrder(t *testing.T) {
	sk := lineSkim(t)
	veh, rd, trav := enRouteTaxi(t, sk)

	require.NoError(t, MoveVehicleRide(veh, rd, 200, sk, DefaultOptions(), nil))

	st := rd.RideState()
	require.Len(t, st.Events, 2)

	pickup, dropoff := st.Events[0], st.Events[1]
	require.Equal(t, model.StopOrigin, pickup.Kind)
	require.EqualValues(t, 1, pickup.Node)
	require.True(t, pickup.Time.Equal(testStart))

	require.Equal(t, model.StopDestination, dropoff.Kind)
	require.EqualValues(t, 3, dropoff.Node)
	require.True(t, dropoff.Time.Equal(testStart.Add(200*time.Second)))

	require.True(t, trav.Service.PickedUp)
	require.InDelta(t, 0, trav.Service.PickupDelay, 1e-9)
	require.InDelta(t, 2000, trav.DistanceTravelled[model.ServiceTaxi], 1e-9)
}

func TestMove_TerminalStopParksVehicle(t *testing.T) {
	sk := lineSkim(t)
	veh, rd, _ := enRouteTaxi(t, sk)

	require.NoError(t, MoveVehicleRide(veh, rd, 200, sk, DefaultOptions(), nil))

	require.Nil(t, veh.Path.CurrentPath)
	require.Nil(t, veh.Path.ClosestCrossroad)
	require.True(t, veh.Path.Stationary)
	require.True(t, veh.Available)
	require.False(t, rd.RideState().Active)
	require.InDelta(t, 2000, veh.Mileage, 1e-9)
	require.EqualValues(t, 3, veh.Path.CurrentPosition)
}

func TestMove_ShiftEndWithdrawsVehicle(t *testing.T) {
	sk := lineSkim(t)
	veh, rd, _ := enRouteTaxi(t, sk)
	veh.EndTime = testStart.Add(100 * time.Second)

	require.NoError(t, MoveVehicleRide(veh, rd, 200, sk, DefaultOptions(), nil))

	require.False(t, veh.Available)
	require.False(t, rd.RideState().Active)
}

// enRoutePool builds a pool ride with two onboard travellers dropping
// off at nodes 3 and 4, vehicle at node 2.
func enRoutePool(t *testing.T, sk *skim.Skim) (*model.Vehicle, *ride.PoolRide) {
	t.Helper()
	veh := testVehicle(1, 2, model.ServicePool, 10)
	t1 := testTraveller(1, 1, 3, model.ServicePool, 2000)
	t2 := testTraveller(2, 1, 4, model.ServicePool, 3000)
	for _, trav := range []*model.Traveller{t1, t2} {
		trav.Service.PickedUp = true
	}

	rd := ride.NewPoolRide(1, t1, []model.Stop{
		{Node: 3, Kind: model.StopDestination, TravellerID: 1},
		{Node: 4, Kind: model.StopDestination, TravellerID: 2},
	})
	rd.ServingVehicle = veh
	rd.ScheduledTravellers = nil
	rd.Travellers = []*model.Traveller{t1, t2}
	rd.Shared = true

	veh.Available = false
	veh.Travellers = []*model.Traveller{t1, t2}
	path, err := sk.Path(2, 3, 4)
	require.NoError(t, err)
	veh.Path.CurrentPath = path
	next := path[1]
	veh.Path.ClosestCrossroad = &next
	veh.Path.Stationary = false
	return veh, rd
}

func TestMove_DropoffFreesPoolCapacity(t *testing.T) {
	sk := lineSkim(t)
	veh, rd := enRoutePool(t, sk)

	opts := DefaultOptions() // PoolCapacityFreed on
	require.NoError(t, MoveVehicleRide(veh, rd, 100, sk, opts, nil))

	require.EqualValues(t, 3, veh.Path.CurrentPosition)
	require.Len(t, veh.Travellers, 1)
	require.True(t, veh.Available)
	require.True(t, rd.Active)
}

func TestMove_DropoffKeepsVehicleBusyWhenDisabled(t *testing.T) {
	sk := lineSkim(t)
	veh, rd := enRoutePool(t, sk)

	opts := DefaultOptions()
	opts.PoolCapacityFreed = false
	require.NoError(t, MoveVehicleRide(veh, rd, 100, sk, opts, nil))

	require.Len(t, veh.Travellers, 1)
	require.False(t, veh.Available)
	require.True(t, rd.Active)
}

func TestMove_BrokenInvariantAborts(t *testing.T) {
	sk := lineSkim(t)
	veh, rd, _ := enRouteTaxi(t, sk)
	veh.Path.ClosestCrossroad = nil // path without a crossroad

	err := MoveVehicleRide(veh, rd, 10, sk, DefaultOptions(), nil)
	require.ErrorIs(t, err, model.ErrInvariant)
}
