// Package model contains domain records for the ride-hailing simulation:
// stops, events, travellers, vehicles, and the raw input rows they are
// built from.
package model

import (
	"fmt"
	"time"
)

// ─── Enums ──────────────────────────────────────────────────

// ServiceKind tags the kind of service a request asks for and the kind
// of fleet a vehicle belongs to.
type ServiceKind string

const (
	ServiceTaxi ServiceKind = "taxi"
	ServicePool ServiceKind = "pool"
)

// ParseServiceKind converts an input-file tag to a ServiceKind.
func ParseServiceKind(s string) (ServiceKind, error) {
	switch ServiceKind(s) {
	case ServiceTaxi:
		return ServiceTaxi, nil
	case ServicePool:
		return ServicePool, nil
	}
	return "", fmt.Errorf("unknown service kind %q", s)
}

// StopKind labels a stop on a planned route.
type StopKind string

const (
	// StopOrigin is a pickup.
	StopOrigin StopKind = "o"
	// StopDestination is a dropoff.
	StopDestination StopKind = "d"
	// StopAssignment is an assignment marker: the traveller is bound to
	// the vehicle at this node without boarding yet.
	StopAssignment StopKind = "a"
	// StopStart records a vehicle entering service. It never appears in
	// a planned route, only in event logs.
	StopStart StopKind = "s"
)

// ─── Stops and events ───────────────────────────────────────

// Stop is one planned visit on a route: a node, what happens there, and
// which traveller it concerns.
type Stop struct {
	Node        int64
	Kind        StopKind
	TravellerID int64
}

// Event is one fulfilled occurrence, recorded in vehicle and ride logs.
type Event struct {
	Time        time.Time
	Node        int64
	Kind        StopKind
	TravellerID int64
}

// ─── Input rows ─────────────────────────────────────────────

// RequestRow is one parsed line of the requests table.
type RequestRow struct {
	ID          int64
	Origin      int64
	Destination int64
	RequestTime time.Time
	Type        ServiceKind
	Operator    string
}

// VehicleRow is one parsed line of the vehicles table.
type VehicleRow struct {
	ID        int64
	Origin    int64
	StartTime time.Time
	EndTime   time.Time
	Type      ServiceKind
	Capacity  int
	Speed     float64 // m/s
	Operator  string
}
