package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mobsim/ridepool/internal/model"
	"github.com/mobsim/ridepool/internal/ride"
)

func testDispatcher(opts Options) *Dispatcher {
	return NewDispatcher("op", testFares(), testCosts(), opts, nil)
}

func TestFindClosestVehicle_PicksNearest(t *testing.T) {
	sk := lineSkim(t)
	d := testDispatcher(DefaultOptions())

	near := testVehicle(1, 2, model.ServicePool, 10)
	far := testVehicle(2, 4, model.ServicePool, 10)
	d.RegisterVehicle(near)
	d.RegisterVehicle(far)

	got, found := d.FindClosestVehicle(1, []model.ServiceKind{model.ServicePool}, sk, false)
	require.True(t, found)
	require.Equal(t, near, got.Vehicle)
	require.InDelta(t, 100, got.TimeToArrival, 1e-9)
}

func TestFindClosestVehicle_SkipsUnavailable(t *testing.T) {
	sk := lineSkim(t)
	d := testDispatcher(DefaultOptions())

	near := testVehicle(1, 2, model.ServicePool, 10)
	near.Available = false
	far := testVehicle(2, 4, model.ServicePool, 10)
	d.RegisterVehicle(near)
	d.RegisterVehicle(far)

	got, found := d.FindClosestVehicle(1, []model.ServiceKind{model.ServicePool}, sk, false)
	require.True(t, found)
	require.Equal(t, far, got.Vehicle)
}

func TestFindClosestVehicle_EmptyPoolOnly(t *testing.T) {
	sk := lineSkim(t)
	d := testDispatcher(DefaultOptions())

	near := testVehicle(1, 2, model.ServicePool, 10)
	near.ScheduledTravellers = []*model.Traveller{testTraveller(9, 1, 4, model.ServicePool, 3000)}
	far := testVehicle(2, 4, model.ServicePool, 10)
	d.RegisterVehicle(near)
	d.RegisterVehicle(far)

	got, found := d.FindClosestVehicle(1, []model.ServiceKind{model.ServicePool}, sk, true)
	require.True(t, found)
	require.Equal(t, far, got.Vehicle)
}

func TestFindClosestVehicle_NoneFree(t *testing.T) {
	sk := lineSkim(t)
	d := testDispatcher(DefaultOptions())

	_, found := d.FindClosestVehicle(1, []model.ServiceKind{model.ServiceTaxi}, sk, false)
	require.False(t, found)
}

func TestTaxiUtility_NoVehicle(t *testing.T) {
	sk := lineSkim(t)
	d := testDispatcher(DefaultOptions())
	trav := testTraveller(1, 1, 3, model.ServiceTaxi, 2000)

	_, ok, err := d.TaxiUtility(trav, sk, true)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAssignTaxi_BindsRideVehicleAndTraveller(t *testing.T) {
	sk := lineSkim(t)
	d := testDispatcher(DefaultOptions())
	veh := testVehicle(1, 1, model.ServiceTaxi, 10)
	d.RegisterVehicle(veh)
	trav := testTraveller(1, 1, 3, model.ServiceTaxi, 2000)

	proposal, ok, err := d.TaxiUtility(trav, sk, true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, veh, proposal.Vehicle)

	require.NoError(t, d.AssignTaxi(proposal.Ride, proposal.Vehicle, proposal.Utility, trav, proposal.Profitability, sk))

	require.Equal(t, veh, proposal.Ride.ServingVehicle)
	require.False(t, veh.Available)
	require.Equal(t, []*model.Traveller{trav}, veh.ScheduledTravellers)
	require.Equal(t, []int64{1, 2, 3}, veh.Path.CurrentPath)
	require.Len(t, d.Rides[model.ServiceTaxi], 1)
	require.Contains(t, trav.Utilities, model.ServiceTaxi)

	// The assignment marker precedes all movement events.
	require.Len(t, proposal.Ride.Events, 1)
	require.Equal(t, model.StopAssignment, proposal.Ride.Events[0].Kind)
}

// ongoingPoolRide sets up operator "op" with one committed pool ride:
// vehicle at node 1 carrying T1 (1→4, scheduled, baseline utility
// recorded), current profit 4.5.
func ongoingPoolRide(t *testing.T, d *Dispatcher) (*ride.PoolRide, *model.Traveller) {
	t.Helper()
	veh := testVehicle(1, 1, model.ServicePool, 10)
	veh.Available = false
	d.RegisterVehicle(veh)

	t1 := testTraveller(1, 1, 4, model.ServicePool, 3000)
	t1.Utilities[model.ServiceTaxi] = -7.05

	stops := []model.Stop{
		{Node: 1, Kind: model.StopOrigin, TravellerID: 1},
		{Node: 4, Kind: model.StopDestination, TravellerID: 1},
	}
	r := ride.NewPoolRide(1, t1, stops)
	r.ServingVehicle = veh
	r.Events = []model.Event{{Time: testStart, Node: 1, Kind: model.StopAssignment, TravellerID: 1}}
	r.Profitability = ride.Profitability{Revenue: 6.0, Cost: 1.5, Profit: 4.5}
	veh.ScheduledTravellers = []*model.Traveller{t1}

	d.Rides[model.ServicePool] = []ride.Ride{r}
	return r, t1
}

func TestPoolUtility_InsertionSurvivesFilters(t *testing.T) {
	sk := lineSkim(t)
	d := testDispatcher(DefaultOptions())
	r, t1 := ongoingPoolRide(t, d)
	t2 := testTraveller(2, 2, 3, model.ServicePool, 1000)

	candidates, fallback, err := d.PoolUtility(t2, sk)
	require.NoError(t, err)
	require.Nil(t, fallback) // the only vehicle is committed

	require.Len(t, candidates, 1)
	best := candidates[len(candidates)-1]
	require.Equal(t, r, best.Ride)
	require.Equal(t, []model.Stop{
		{Node: 1, Kind: model.StopOrigin, TravellerID: 1},
		{Node: 2, Kind: model.StopOrigin, TravellerID: 2},
		{Node: 3, Kind: model.StopDestination, TravellerID: 2},
		{Node: 4, Kind: model.StopDestination, TravellerID: 1},
	}, best.Sequence)
	require.InDelta(t, 4.9, best.Profitability.Profit, 1e-9)
	require.Contains(t, best.Utilities, t1.ID)
	require.Contains(t, best.Utilities, t2.ID)
}

func TestPoolUtility_SkipsRideAtVehicleCapacity(t *testing.T) {
	sk := lineSkim(t)
	d := testDispatcher(DefaultOptions())
	r, _ := ongoingPoolRide(t, d)

	// Both seats of the serving vehicle are already spoken for.
	veh := r.ServingVehicle
	veh.Capacity = 2
	second := testTraveller(2, 1, 4, model.ServicePool, 3000)
	r.ScheduledTravellers = append(r.ScheduledTravellers, second)
	veh.ScheduledTravellers = append(veh.ScheduledTravellers, second)

	third := testTraveller(3, 2, 3, model.ServicePool, 1000)
	candidates, fallback, err := d.PoolUtility(third, sk)
	require.NoError(t, err)
	require.Nil(t, fallback)
	require.Empty(t, candidates)
}

func TestPoolUtility_UtilitiesPricedWithFilterOff(t *testing.T) {
	sk := lineSkim(t)
	opts := DefaultOptions()
	opts.AttractiveOnly = false
	d := testDispatcher(opts)
	_, t1 := ongoingPoolRide(t, d)
	t2 := testTraveller(2, 2, 3, model.ServicePool, 1000)

	candidates, _, err := d.PoolUtility(t2, sk)
	require.NoError(t, err)
	require.NotEmpty(t, candidates)
	for _, c := range candidates {
		require.Contains(t, c.Utilities, t1.ID)
		require.Contains(t, c.Utilities, t2.ID)
	}
}

func TestPoolUtility_DeepDiscountKillsProfit(t *testing.T) {
	sk := lineSkim(t)
	d := testDispatcher(DefaultOptions())
	d.Fares.PoolDiscount = 0.9
	ongoingPoolRide(t, d)
	t2 := testTraveller(2, 2, 3, model.ServicePool, 1000)

	candidates, fallback, err := d.PoolUtility(t2, sk)
	require.NoError(t, err)
	require.Nil(t, fallback)
	require.Empty(t, candidates)
}

func TestPoolUtility_FallbackWhenNoOngoingRides(t *testing.T) {
	sk := lineSkim(t)
	d := testDispatcher(DefaultOptions())
	veh := testVehicle(1, 1, model.ServicePool, 10)
	d.RegisterVehicle(veh)
	t2 := testTraveller(2, 1, 3, model.ServicePool, 2000)

	candidates, fallback, err := d.PoolUtility(t2, sk)
	require.NoError(t, err)
	require.Empty(t, candidates)
	require.NotNil(t, fallback)
	require.Equal(t, veh, fallback.Vehicle)
	require.Contains(t, t2.Utilities, model.ServiceTaxi)
}

func TestPoolUtility_FallbackRespectsPickupBound(t *testing.T) {
	sk := lineSkim(t)
	d := testDispatcher(DefaultOptions())
	veh := testVehicle(1, 4, model.ServicePool, 10)
	d.RegisterVehicle(veh)

	t2 := testTraveller(2, 1, 2, model.ServicePool, 1000)
	t2.Behaviour.MaxPickup = 100 // vehicle is 300 s away

	candidates, fallback, err := d.PoolUtility(t2, sk)
	require.NoError(t, err)
	require.Empty(t, candidates)
	require.Nil(t, fallback)
}

func TestAssignPool_CommitsBestCandidate(t *testing.T) {
	sk := lineSkim(t)
	d := testDispatcher(DefaultOptions())
	r, t1 := ongoingPoolRide(t, d)
	t2 := testTraveller(2, 2, 3, model.ServicePool, 1000)

	candidates, _, err := d.PoolUtility(t2, sk)
	require.NoError(t, err)
	require.NotEmpty(t, candidates)

	require.NoError(t, d.AssignPool(candidates, t2, sk))

	require.True(t, r.Shared)
	require.Len(t, r.AllTravellers(), 2)
	require.Contains(t, t1.Utilities, model.ServicePool)
	require.Contains(t, t2.Utilities, model.ServicePool)
	require.InDelta(t, 4.9, r.Profitability.Profit, 1e-9)
	require.Equal(t, []int64{1, 2, 3, 4}, r.ServingVehicle.Path.CurrentPath)
}

func TestAssignPool_FulfilledStopsLeaveCachedOrderings(t *testing.T) {
	sk := lineSkim(t)
	d := testDispatcher(DefaultOptions())
	r, _ := ongoingPoolRide(t, d)
	t2 := testTraveller(2, 2, 3, model.ServicePool, 1000)

	candidates, _, err := d.PoolUtility(t2, sk)
	require.NoError(t, err)
	require.NotEmpty(t, candidates)
	require.NoError(t, d.AssignPool(candidates, t2, sk))

	// 100 s at 10 m/s reaches node 2: both pickups fire.
	require.NoError(t, MoveVehicleRide(r.ServingVehicle, r, 100, sk, DefaultOptions(), nil))

	require.Equal(t, []model.Stop{
		{Node: 3, Kind: model.StopDestination, TravellerID: 2},
		{Node: 4, Kind: model.StopDestination, TravellerID: 1},
	}, r.DestinationPoints)

	// The cached orderings only hold the remaining dropoffs, each once.
	for _, combo := range r.AdmissibleCombinations {
		seen := make(map[model.Stop]bool)
		for _, st := range combo {
			require.Equal(t, model.StopDestination, st.Kind)
			require.False(t, seen[st], "stop repeated in cached ordering: %v", combo)
			seen[st] = true
		}
	}
}
