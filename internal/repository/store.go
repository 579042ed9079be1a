package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mobsim/ridepool/internal/model"
	"github.com/mobsim/ridepool/internal/ride"
)

// ResultsStore persists run results into the embedded SQLite database so
// that runs can be compared and served by the results viewer.
type ResultsStore struct {
	db *sql.DB
}

// NewResultsStore wraps an open database and ensures the schema exists.
func NewResultsStore(ctx context.Context, db *sql.DB) (*ResultsStore, error) {
	s := &ResultsStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	requests    INTEGER NOT NULL,
	served      INTEGER NOT NULL,
	resigned    INTEGER NOT NULL,
	shared      INTEGER NOT NULL,
	mileage_m   REAL NOT NULL,
	reduction_m REAL NOT NULL,
	revenue     REAL NOT NULL,
	cost        REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS traveller_results (
	run_id         TEXT NOT NULL REFERENCES runs(id),
	traveller_id   INTEGER NOT NULL,
	service        TEXT NOT NULL,
	trip_length_m  REAL NOT NULL,
	distance_m     REAL NOT NULL,
	pickup_delay_s REAL NOT NULL,
	waited_s       REAL NOT NULL,
	picked_up      INTEGER NOT NULL,
	resigned       INTEGER NOT NULL,
	utility_taxi   REAL,
	utility_pool   REAL,
	PRIMARY KEY (run_id, traveller_id)
);

CREATE TABLE IF NOT EXISTS ride_events (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	ride_id      INTEGER NOT NULL,
	kind         TEXT NOT NULL,
	at           TEXT NOT NULL,
	node         INTEGER NOT NULL,
	event        TEXT NOT NULL,
	traveller_id INTEGER NOT NULL,
	vehicle_id   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ride_events_run ON ride_events(run_id, ride_id);
`

func (s *ResultsStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// SaveRun writes one run's results in a single transaction and returns
// the generated run id.
func (s *ResultsStore) SaveRun(
	ctx context.Context,
	startedAt time.Time,
	summary Summary,
	travellers map[int64]*model.Traveller,
	rides []ride.Ride,
) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, requests, served, resigned, shared,
			mileage_m, reduction_m, revenue, cost)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, startedAt.Format(TimeLayout),
		summary.Requests, summary.Served, summary.Resigned, summary.SharedRides,
		summary.VehicleMileage, summary.MileageReduction(),
		summary.TotalRevenue, summary.TotalCost)
	if err != nil {
		return "", fmt.Errorf("store: insert run: %w", err)
	}

	for _, t := range sortedTravellers(travellers) {
		var distance float64
		for _, d := range t.DistanceTravelled {
			distance += d
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO traveller_results (run_id, traveller_id, service,
				trip_length_m, distance_m, pickup_delay_s, waited_s,
				picked_up, resigned, utility_taxi, utility_pool)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, t.ID, string(t.Request.ServiceKind),
			t.Request.TripLength, distance,
			t.Service.PickupDelay, t.Service.AccumulatedWaiting,
			t.Service.PickedUp, t.Service.Resigned,
			nullableUtility(t, model.ServiceTaxi), nullableUtility(t, model.ServicePool))
		if err != nil {
			return "", fmt.Errorf("store: insert traveller %d: %w", t.ID, err)
		}
	}

	for _, rd := range rides {
		st := rd.RideState()
		vehicleID := int64(-1)
		if st.ServingVehicle != nil {
			vehicleID = st.ServingVehicle.ID
		}
		for _, ev := range st.Events {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO ride_events (run_id, ride_id, kind, at, node, event, traveller_id, vehicle_id)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, st.ID, string(rd.Kind()), ev.Time.Format(TimeLayout),
				ev.Node, string(ev.Kind), ev.TravellerID, vehicleID)
			if err != nil {
				return "", fmt.Errorf("store: insert event for ride %d: %w", st.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("store: commit: %w", err)
	}
	return runID, nil
}

func nullableUtility(t *model.Traveller, kind model.ServiceKind) interface{} {
	if u, ok := t.Utilities[kind]; ok {
		return u
	}
	return nil
}

// ─── Read side, used by the results viewer ──────────────────

// RunRecord is one persisted run summary.
type RunRecord struct {
	ID         string  `json:"id"`
	StartedAt  string  `json:"started_at"`
	Requests   int     `json:"requests"`
	Served     int     `json:"served"`
	Resigned   int     `json:"resigned"`
	Shared     int     `json:"shared"`
	Mileage    float64 `json:"mileage_m"`
	Reduction  float64 `json:"reduction_m"`
	Revenue    float64 `json:"revenue"`
	Cost       float64 `json:"cost"`
}

// ListRuns returns all persisted runs, newest first.
func (s *ResultsStore) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, requests, served, resigned, shared,
			mileage_m, reduction_m, revenue, cost
		FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.Requests, &r.Served, &r.Resigned,
			&r.Shared, &r.Mileage, &r.Reduction, &r.Revenue, &r.Cost); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TravellerRecord is one persisted traveller outcome.
type TravellerRecord struct {
	TravellerID int64    `json:"traveller_id"`
	Service     string   `json:"service"`
	TripLength  float64  `json:"trip_length_m"`
	Distance    float64  `json:"distance_m"`
	PickupDelay float64  `json:"pickup_delay_s"`
	Waited      float64  `json:"waited_s"`
	PickedUp    bool     `json:"picked_up"`
	Resigned    bool     `json:"resigned"`
	UtilityTaxi *float64 `json:"utility_taxi"`
	UtilityPool *float64 `json:"utility_pool"`
}

// RunTravellers returns the traveller outcomes of one run.
func (s *ResultsStore) RunTravellers(ctx context.Context, runID string) ([]TravellerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT traveller_id, service, trip_length_m, distance_m,
			pickup_delay_s, waited_s, picked_up, resigned,
			utility_taxi, utility_pool
		FROM traveller_results WHERE run_id = ? ORDER BY traveller_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: run travellers: %w", err)
	}
	defer rows.Close()

	var out []TravellerRecord
	for rows.Next() {
		var t TravellerRecord
		if err := rows.Scan(&t.TravellerID, &t.Service, &t.TripLength, &t.Distance,
			&t.PickupDelay, &t.Waited, &t.PickedUp, &t.Resigned,
			&t.UtilityTaxi, &t.UtilityPool); err != nil {
			return nil, fmt.Errorf("store: scan traveller: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RideEventRecord is one persisted ride event.
type RideEventRecord struct {
	RideID      int64  `json:"ride_id"`
	Kind        string `json:"kind"`
	At          string `json:"at"`
	Node        int64  `json:"node"`
	Event       string `json:"event"`
	TravellerID int64  `json:"traveller_id"`
	VehicleID   int64  `json:"vehicle_id"`
}

// RunRideEvents returns the ride events of one run in insertion order.
func (s *ResultsStore) RunRideEvents(ctx context.Context, runID string) ([]RideEventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ride_id, kind, at, node, event, traveller_id, vehicle_id
		FROM ride_events WHERE run_id = ? ORDER BY ride_id, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: run ride events: %w", err)
	}
	defer rows.Close()

	var out []RideEventRecord
	for rows.Next() {
		var e RideEventRecord
		if err := rows.Scan(&e.RideID, &e.Kind, &e.At, &e.Node, &e.Event,
			&e.TravellerID, &e.VehicleID); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
