// Package service contains the dispatch, movement, and event-loop logic
// of the ride-hailing simulation.
package service

import (
	"log"
	"time"
)

// ─── Options ────────────────────────────────────────────────

// Options collects the operator-level switches that tune dispatch and
// movement behaviour.
type Options struct {
	// OnlyTaxi restricts taxi dispatch to the taxi fleet; when false an
	// empty pool vehicle may serve a taxi request.
	OnlyTaxi bool

	// AttractiveOnly drops pool insertions that would leave any
	// participant worse off than their solo taxi baseline.
	AttractiveOnly bool

	// ProfitableOnly drops pool insertions that do not increase the
	// ride's profit.
	ProfitableOnly bool

	// PoolCapacityFreed makes a pool vehicle available again after any
	// dropoff rather than only after the last one.
	PoolCapacityFreed bool
}

// DefaultOptions returns the defaults: pool insertions must be both
// attractive and profitable, and a dropoff frees pool capacity.
func DefaultOptions() Options {
	return Options{
		AttractiveOnly:    true,
		ProfitableOnly:    true,
		PoolCapacityFreed: true,
	}
}

// logf writes through the optional sink; a nil logger keeps the core
// silent but fully functional.
func logf(l *log.Logger, format string, args ...interface{}) {
	if l != nil {
		l.Printf(format, args...)
	}
}

// seconds converts a float second count to a time.Duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
