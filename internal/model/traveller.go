package model

import "time"

// ─── Traveller ──────────────────────────────────────────────

// Behaviour holds a traveller's behavioural preferences.
//
// PfS is the penalty-for-sharing multiplier applied to in-vehicle time
// when sharing with N co-riders; lookups are capped at 4 co-riders.
type Behaviour struct {
	VoT                    float64         // value of time, money per second
	PickupDelaySensitivity float64         // multiplier on pickup-delay disutility
	MaxPickup              float64         // seconds, maximal acceptable approach time
	MaxWaiting             float64         // seconds, maximal accumulated waiting before resigning
	PfS                    map[int]float64 // co-rider count → multiplier
	PfSConst               float64         // fixed disutility of sharing at all
}

// PfSFor returns the penalty-for-sharing multiplier for n travellers,
// capped at 4.
func (b Behaviour) PfSFor(n int) float64 {
	if n > 4 {
		n = 4
	}
	if m, ok := b.PfS[n]; ok {
		return m
	}
	return 1.0
}

// RequestDetails is the immutable part of a traveller's request.
// TripLength is computed once at arrival, origin→destination over the skim.
type RequestDetails struct {
	Origin      int64
	Destination int64
	RequestTime time.Time
	ServiceKind ServiceKind
	TripLength  float64 // meters
}

// ServiceDetails accumulates how the traveller was actually served.
type ServiceDetails struct {
	Resigned           bool
	AccumulatedWaiting float64 // seconds spent waiting through deferrals
	PickupDelay        float64 // seconds between request and actual pickup
	PickedUp           bool
}

// Traveller is the per-request agent. A traveller is referenced by at
// most one active ride; utility and distance counters are written only
// during events involving them.
type Traveller struct {
	ID        int64
	Request   RequestDetails
	Behaviour Behaviour
	Service   ServiceDetails

	// Utilities holds the per-mode utility values recorded at dispatch
	// time (less negative is better; solo taxi is the baseline).
	Utilities map[ServiceKind]float64

	// DistanceTravelled accumulates meters actually ridden per mode.
	DistanceTravelled map[ServiceKind]float64
}

// NewTraveller builds a traveller from a request row and behavioural
// preferences. TripLength is filled in by the caller once the skim has
// resolved it.
func NewTraveller(row RequestRow, behaviour Behaviour) *Traveller {
	return &Traveller{
		ID: row.ID,
		Request: RequestDetails{
			Origin:      row.Origin,
			Destination: row.Destination,
			RequestTime: row.RequestTime,
			ServiceKind: row.Type,
		},
		Behaviour:         behaviour,
		Utilities:         make(map[ServiceKind]float64),
		DistanceTravelled: make(map[ServiceKind]float64),
	}
}
