package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvariant reports a broken vehicle-state invariant. It reflects a
// programming error and aborts the simulation.
var ErrInvariant = errors.New("vehicle state invariant violated")

// ─── Vehicle path state ─────────────────────────────────────

// VehiclePath is the movement sub-record of a vehicle.
//
// Invariants: ClosestCrossroad is non-nil iff CurrentPath is non-nil;
// if CurrentPath is nil the vehicle is stationary. While moving, the
// vehicle occupies the edge CurrentPosition → *ClosestCrossroad and has
// already spent TimeBetweenCrossroads seconds on it.
type VehiclePath struct {
	CurrentPosition       int64
	ClosestCrossroad      *int64
	CurrentPath           []int64
	TimeBetweenCrossroads float64  // seconds already spent on the current edge
	ToClosestCrossroads   *float64 // seconds remaining on the current edge
	CurrentTime           time.Time
	Stationary            bool
}

// ─── Vehicle ────────────────────────────────────────────────

// Vehicle is one fleet unit owned by a dispatcher.
type Vehicle struct {
	ID       int64
	Type     ServiceKind
	Operator string
	Speed    float64 // m/s, constant
	Capacity int

	StartTime time.Time
	EndTime   time.Time
	Available bool

	Travellers          []*Traveller // currently onboard
	ScheduledTravellers []*Traveller // assigned, not yet picked up

	Path    VehiclePath
	Mileage float64 // meters
	Events  []Event
}

// NewVehicle builds a vehicle from an input row, positioned at its start
// node with a start record in its event log.
func NewVehicle(row VehicleRow) *Vehicle {
	return &Vehicle{
		ID:        row.ID,
		Type:      row.Type,
		Operator:  row.Operator,
		Speed:     row.Speed,
		Capacity:  row.Capacity,
		StartTime: row.StartTime,
		EndTime:   row.EndTime,
		Available: true,
		Path: VehiclePath{
			CurrentPosition: row.Origin,
			CurrentTime:     row.StartTime,
			Stationary:      true,
		},
		Events: []Event{{Time: row.StartTime, Node: row.Origin, Kind: StopStart, TravellerID: row.ID}},
	}
}

// Occupancy returns onboard plus scheduled travellers.
func (v *Vehicle) Occupancy() int {
	return len(v.Travellers) + len(v.ScheduledTravellers)
}

// AtCapacity reports whether no further traveller can be assigned.
func (v *Vehicle) AtCapacity() bool {
	return v.Occupancy() >= v.Capacity
}

// CheckPathInvariants verifies the CurrentPath/ClosestCrossroad coupling.
func (v *Vehicle) CheckPathInvariants() error {
	if v.Path.CurrentPath == nil {
		if v.Path.ClosestCrossroad != nil {
			return fmt.Errorf("%w: vehicle %d has a closest crossroad but no path", ErrInvariant, v.ID)
		}
		return nil
	}
	if v.Path.ClosestCrossroad == nil {
		return fmt.Errorf("%w: vehicle %d has a path but no closest crossroad", ErrInvariant, v.ID)
	}
	if len(v.Path.CurrentPath) < 2 {
		return fmt.Errorf("%w: vehicle %d path has fewer than two nodes", ErrInvariant, v.ID)
	}
	return nil
}

// RemoveTraveller drops the traveller with the given id from the slice,
// returning the removed traveller and the shrunk slice.
func RemoveTraveller(list []*Traveller, id int64) (*Traveller, []*Traveller) {
	for i, t := range list {
		if t.ID == id {
			return t, append(list[:i], list[i+1:]...)
		}
	}
	return nil, list
}
