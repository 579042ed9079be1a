package main

import (
	"context"
	"flag"
	"log"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mobsim/ridepool/config"
	"github.com/mobsim/ridepool/internal/model"
	"github.com/mobsim/ridepool/internal/repository"
	"github.com/mobsim/ridepool/internal/ride"
	"github.com/mobsim/ridepool/internal/service"
	"github.com/mobsim/ridepool/pkg/db"
	"github.com/mobsim/ridepool/pkg/skim"
)

func main() {
	configPath := flag.String("config", "config", "directory containing the *_config.json files")
	flag.Parse()

	started := time.Now()

	// ── Load configuration ──────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// ── Build the skim ──────────────────────────────────
	var sk *skim.Skim
	if cfg.City.UseSkimMatrix {
		sk, err = skim.LoadMatrix(cfg.City.SkimMatrixFile)
	} else {
		sk, err = skim.LoadGraph(cfg.City.GraphFile)
	}
	if err != nil {
		log.Fatalf("failed to load network: %v", err)
	}
	log.Println("✓ network loaded")

	// ── Load inputs ─────────────────────────────────────
	requests, err := repository.LoadRequests(cfg.Simulation.RequestsFile)
	if err != nil {
		log.Fatalf("failed to load requests: %v", err)
	}
	vehicles, err := repository.LoadVehicles(cfg.Simulation.VehiclesFile)
	if err != nil {
		log.Fatalf("failed to load vehicles: %v", err)
	}
	log.Printf("✓ inputs loaded: %d requests, %d vehicles", len(requests), len(vehicles))

	// ── Build operators ─────────────────────────────────
	opts := service.Options{
		OnlyTaxi:          cfg.Simulation.OnlyTaxi,
		AttractiveOnly:    cfg.Simulation.AttractiveOnly,
		ProfitableOnly:    cfg.Simulation.ProfitableOnly,
		PoolCapacityFreed: cfg.Simulation.CapacityFreed,
	}

	logger := log.Default()
	var dispatchers []*service.Dispatcher
	for name, fares := range cfg.Fares.Operators {
		dispatchers = append(dispatchers, service.NewDispatcher(
			name,
			service.FareTable{Taxi: fares.TaxiFare, Pool: fares.PoolFare, PoolDiscount: fares.PoolDiscount},
			service.CostTable{Taxi: fares.TaxiOperatingCost, Pool: fares.PoolOperatingCost},
			opts,
			logger,
		))
	}

	behaviour := buildBehaviour(cfg.Behavioural)

	// ── Run ─────────────────────────────────────────────
	sim := service.NewSimulation(service.SimulationParams{
		Requests:       requests,
		Vehicles:       vehicles,
		Dispatchers:    dispatchers,
		Skim:           sk,
		Behaviour:      func(int64) model.Behaviour { return behaviour },
		RefreshDensity: cfg.Simulation.RefreshDensity,
		Logger:         logger,
	})
	if err := sim.Run(); err != nil {
		log.Fatalf("simulation failed: %v", err)
	}

	// ── Write results ───────────────────────────────────
	writer, err := repository.NewResultsWriter(cfg.OutputDir(started))
	if err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	var allVehicles []*model.Vehicle
	var allRides []ride.Ride
	for _, d := range dispatchers {
		allVehicles = append(allVehicles, d.AllVehicles()...)
		allRides = append(allRides, d.AllRides()...)
	}
	travellers := sim.Travellers()

	if err := writer.WriteVehicleLog(allVehicles); err != nil {
		log.Fatalf("failed to write vehicle log: %v", err)
	}
	if err := writer.WriteRideLog(allRides); err != nil {
		log.Fatalf("failed to write ride log: %v", err)
	}
	if err := writer.WriteTravellerResults(travellers); err != nil {
		log.Fatalf("failed to write traveller results: %v", err)
	}
	if err := writer.WriteUtilityResults(travellers); err != nil {
		log.Fatalf("failed to write utility results: %v", err)
	}

	summary := repository.BuildSummary(travellers, allVehicles, allRides)
	if err := writer.WriteGeneralResults(summary); err != nil {
		log.Fatalf("failed to write general results: %v", err)
	}

	// ── Persist to the embedded store ───────────────────
	if cfg.Simulation.SaveResults {
		conn, err := db.NewSQLite(filepath.Join(writer.Dir(), "results.db"))
		if err != nil {
			log.Fatalf("failed to open results store: %v", err)
		}
		defer conn.Close()

		ctx := context.Background()
		store, err := repository.NewResultsStore(ctx, conn)
		if err != nil {
			log.Fatalf("failed to prepare results store: %v", err)
		}
		runID, err := store.SaveRun(ctx, started, summary, travellers, allRides)
		if err != nil {
			log.Fatalf("failed to persist run: %v", err)
		}
		log.Printf("✓ run %s persisted", runID)
	}

	log.Printf("✓ done: %d/%d served, mileage reduction %.1f m, results in %s",
		summary.Served, summary.Requests, summary.MileageReduction(), writer.Dir())
}

// buildBehaviour converts the behavioural config into the preference
// record every traveller of the run shares.
func buildBehaviour(cfg config.BehaviouralConfig) model.Behaviour {
	pfs := make(map[int]float64, len(cfg.PoolRides.PfS))
	for key, mult := range cfg.PoolRides.PfS {
		n, err := strconv.Atoi(key)
		if err != nil {
			log.Fatalf("behavioural_config: PfS key %q is not a number", key)
		}
		pfs[n] = mult
	}
	return model.Behaviour{
		VoT:                    cfg.VoT,
		PickupDelaySensitivity: cfg.PickupDelaySensitivity,
		MaxPickup:              cfg.MaximalPickup,
		MaxWaiting:             cfg.MaximalWaiting,
		PfS:                    pfs,
		PfSConst:               cfg.PoolRides.PfSConst,
	}
}
