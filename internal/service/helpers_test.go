package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mobsim/ridepool/internal/model"
	"github.com/mobsim/ridepool/pkg/skim"
)

var testStart = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// lineSkim builds 1 —1000m— 2 —1000m— 3 —1000m— 4.
func lineSkim(t *testing.T) *skim.Skim {
	t.Helper()
	sk, err := skim.NewGraphSkim(
		[]int64{1, 2, 3, 4},
		[]skim.Edge{
			{From: 1, To: 2, Length: 1000},
			{From: 2, To: 3, Length: 1000},
			{From: 3, To: 4, Length: 1000},
		},
	)
	require.NoError(t, err)
	return sk
}

func testBehaviour() model.Behaviour {
	return model.Behaviour{
		VoT:                    0.0035,
		PickupDelaySensitivity: 1.5,
		MaxPickup:              600,
		MaxWaiting:             120,
		PfS:                    map[int]float64{1: 1.0, 2: 1.1, 3: 1.3, 4: 1.5},
		PfSConst:               0,
	}
}

func testVehicle(id, origin int64, kind model.ServiceKind, speed float64) *model.Vehicle {
	return model.NewVehicle(model.VehicleRow{
		ID:        id,
		Origin:    origin,
		StartTime: testStart,
		EndTime:   testStart.Add(24 * time.Hour),
		Type:      kind,
		Capacity:  4,
		Speed:     speed,
		Operator:  "op",
	})
}

func testTraveller(id, origin, destination int64, kind model.ServiceKind, tripLength float64) *model.Traveller {
	trav := model.NewTraveller(model.RequestRow{
		ID:          id,
		Origin:      origin,
		Destination: destination,
		RequestTime: testStart,
		Type:        kind,
		Operator:    "op",
	}, testBehaviour())
	trav.Request.TripLength = tripLength
	return trav
}

func testFares() FareTable {
	return FareTable{Taxi: 0.002, Pool: 0.002, PoolDiscount: 0.2}
}

func testCosts() CostTable {
	return CostTable{Taxi: 0.0005, Pool: 0.0005}
}
