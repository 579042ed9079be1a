package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/mobsim/ridepool/internal/model"
	"github.com/mobsim/ridepool/internal/ride"
)

// ResultsWriter renders the run's outcome as text tables under one
// dated output directory.
type ResultsWriter struct {
	dir string
}

// NewResultsWriter creates the output directory if needed.
func NewResultsWriter(dir string) (*ResultsWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("results: %w", err)
	}
	return &ResultsWriter{dir: dir}, nil
}

// Dir returns the directory files are written to.
func (w *ResultsWriter) Dir() string { return w.dir }

func (w *ResultsWriter) table(name string, render func(*tabwriter.Writer)) error {
	f, err := os.Create(filepath.Join(w.dir, name))
	if err != nil {
		return fmt.Errorf("results: %w", err)
	}
	defer f.Close()

	tw := tabwriter.NewWriter(f, 0, 4, 2, ' ', 0)
	render(tw)
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("results: %s: %w", name, err)
	}
	return nil
}

// WriteVehicleLog writes vehicle_log.txt: every event of every vehicle,
// chronological per vehicle.
func (w *ResultsWriter) WriteVehicleLog(vehicles []*model.Vehicle) error {
	sort.Slice(vehicles, func(i, j int) bool { return vehicles[i].ID < vehicles[j].ID })

	return w.table("vehicle_log.txt", func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "VEHICLE_ID\tDATE\tNODE\tTYPE\tTRAVELLER_ID\tMILEAGE_M")
		for _, v := range vehicles {
			for _, ev := range v.Events {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%d\t%.1f\n",
					v.ID, ev.Time.Format(TimeLayout), ev.Node, ev.Kind, ev.TravellerID, v.Mileage)
			}
		}
	})
}

// WriteRideLog writes ride_log.txt: every event of every ride.
func (w *ResultsWriter) WriteRideLog(rides []ride.Ride) error {
	sort.Slice(rides, func(i, j int) bool { return rides[i].RideState().ID < rides[j].RideState().ID })

	return w.table("ride_log.txt", func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "RIDE_ID\tKIND\tDATE\tNODE\tTYPE\tTRAVELLER_ID\tVEHICLE_ID")
		for _, rd := range rides {
			st := rd.RideState()
			vehicleID := int64(-1)
			if st.ServingVehicle != nil {
				vehicleID = st.ServingVehicle.ID
			}
			for _, ev := range st.Events {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%d\t%d\n",
					st.ID, rd.Kind(), ev.Time.Format(TimeLayout), ev.Node, ev.Kind, ev.TravellerID, vehicleID)
			}
		}
	})
}

// WriteTravellerResults writes traveller_results.txt: one row per
// traveller with their service outcome.
func (w *ResultsWriter) WriteTravellerResults(travellers map[int64]*model.Traveller) error {
	ordered := sortedTravellers(travellers)

	return w.table("traveller_results.txt", func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "TRAVELLER_ID\tSERVICE\tTRIP_LENGTH_M\tDISTANCE_M\tPICKUP_DELAY_S\tWAITED_S\tPICKED_UP\tRESIGNED")
		for _, t := range ordered {
			var distance float64
			for _, d := range t.DistanceTravelled {
				distance += d
			}
			fmt.Fprintf(tw, "%d\t%s\t%.1f\t%.1f\t%.1f\t%.1f\t%t\t%t\n",
				t.ID, t.Request.ServiceKind, t.Request.TripLength, distance,
				t.Service.PickupDelay, t.Service.AccumulatedWaiting,
				t.Service.PickedUp, t.Service.Resigned)
		}
	})
}

// WriteUtilityResults writes utility_results.txt: the per-mode utilities
// recorded at dispatch time.
func (w *ResultsWriter) WriteUtilityResults(travellers map[int64]*model.Traveller) error {
	ordered := sortedTravellers(travellers)

	return w.table("utility_results.txt", func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "TRAVELLER_ID\tU_TAXI\tU_POOL")
		for _, t := range ordered {
			fmt.Fprintf(tw, "%d\t%s\t%s\n",
				t.ID, utilityCell(t, model.ServiceTaxi), utilityCell(t, model.ServicePool))
		}
	})
}

func utilityCell(t *model.Traveller, kind model.ServiceKind) string {
	if u, ok := t.Utilities[kind]; ok {
		return fmt.Sprintf("%.4f", u)
	}
	return "-"
}

// Summary aggregates a run for general_results.txt.
type Summary struct {
	Requests        int
	Served          int
	Resigned        int
	SharedRides     int
	VehicleMileage  float64 // meters actually driven
	RequestedLength float64 // sum of served travellers' direct trip lengths
	TotalRevenue    float64
	TotalCost       float64
}

// MileageReduction is the saving of driven meters against serving every
// request privately; negative when pooling detours outweigh the sharing.
func (s Summary) MileageReduction() float64 {
	return s.RequestedLength - s.VehicleMileage
}

// BuildSummary folds travellers, vehicles, and rides into a Summary.
func BuildSummary(travellers map[int64]*model.Traveller, vehicles []*model.Vehicle, rides []ride.Ride) Summary {
	var s Summary
	s.Requests = len(travellers)
	for _, t := range travellers {
		if t.Service.Resigned {
			s.Resigned++
			continue
		}
		if t.Service.PickedUp {
			s.Served++
			s.RequestedLength += t.Request.TripLength
		}
	}
	for _, v := range vehicles {
		s.VehicleMileage += v.Mileage
	}
	for _, rd := range rides {
		st := rd.RideState()
		s.TotalRevenue += st.Profitability.Revenue
		s.TotalCost += st.Profitability.Cost
		if pool, ok := rd.(*ride.PoolRide); ok && pool.Shared {
			s.SharedRides++
		}
	}
	return s
}

// WriteGeneralResults writes general_results.txt: run-level totals.
func (w *ResultsWriter) WriteGeneralResults(s Summary) error {
	return w.table("general_results.txt", func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "requests\t%d\n", s.Requests)
		fmt.Fprintf(tw, "served\t%d\n", s.Served)
		fmt.Fprintf(tw, "resigned\t%d\n", s.Resigned)
		fmt.Fprintf(tw, "shared_rides\t%d\n", s.SharedRides)
		fmt.Fprintf(tw, "vehicle_mileage_m\t%.1f\n", s.VehicleMileage)
		fmt.Fprintf(tw, "requested_length_m\t%.1f\n", s.RequestedLength)
		fmt.Fprintf(tw, "mileage_reduction_m\t%.1f\n", s.MileageReduction())
		fmt.Fprintf(tw, "total_revenue\t%.2f\n", s.TotalRevenue)
		fmt.Fprintf(tw, "total_cost\t%.2f\n", s.TotalCost)
		fmt.Fprintf(tw, "total_profit\t%.2f\n", s.TotalRevenue-s.TotalCost)
	})
}

func sortedTravellers(travellers map[int64]*model.Traveller) []*model.Traveller {
	out := make([]*model.Traveller, 0, len(travellers))
	for _, t := range travellers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
