package ride

import (
	"github.com/mobsim/ridepool/internal/model"
	"github.com/mobsim/ridepool/pkg/skim"
)

// ─── TaxiRide ───────────────────────────────────────────────

// TaxiRide is a private, non-shared on-demand ride: one traveller,
// origin and destination, one vehicle.
type TaxiRide struct {
	State
}

// NewTaxiRide builds a taxi ride over the given stop sequence with the
// traveller scheduled for pickup.
func NewTaxiRide(id int64, traveller *model.Traveller, stops []model.Stop) *TaxiRide {
	return &TaxiRide{State: State{
		ID:                  id,
		ScheduledTravellers: []*model.Traveller{traveller},
		DestinationPoints:   stops,
		Active:              true,
	}}
}

// Kind reports the ride variant tag.
func (r *TaxiRide) Kind() model.ServiceKind { return model.ServiceTaxi }

// Utility computes the traveller-side utility of the taxi ride. When
// pickupDelay is nil it is derived from the vehicle's deadhead distance.
func (r *TaxiRide) Utility(
	vehicle *model.Vehicle,
	traveller *model.Traveller,
	fare float64,
	sk *skim.Skim,
	pickupDelay *float64,
) (float64, error) {
	return taxiUtility(vehicle, traveller, fare, sk, pickupDelay)
}

// ComputeProfitability computes the operator-side outcome:
//
//	revenue = tripLength · fare
//	cost    = (deadheadDistance + tripLength) · operatingCost
//
// where deadhead is from the vehicle's current position to the request
// origin.
func (r *TaxiRide) ComputeProfitability(
	vehicle *model.Vehicle,
	traveller *model.Traveller,
	fare float64,
	operatingCost float64,
	sk *skim.Skim,
) (Profitability, error) {
	tripLength := traveller.Request.TripLength
	deadhead, err := sk.Distance(vehicle.Path.CurrentPosition, traveller.Request.Origin)
	if err != nil {
		return Profitability{}, err
	}
	revenue := tripLength * fare
	cost := (deadhead + tripLength) * operatingCost
	return Profitability{Revenue: revenue, Cost: cost, Profit: revenue - cost}, nil
}
