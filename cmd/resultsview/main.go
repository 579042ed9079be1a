// Command resultsview serves a finished run's database over a small
// read-only HTTP API, for dashboards and ad-hoc inspection.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/mobsim/ridepool/internal/handler"
	"github.com/mobsim/ridepool/internal/middleware"
	"github.com/mobsim/ridepool/internal/repository"
	"github.com/mobsim/ridepool/pkg/db"
)

func main() {
	dbPath := flag.String("db", "results.db", "path to a results database")
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	// ── Open the store ──────────────────────────────────
	conn, err := db.NewSQLite(*dbPath)
	if err != nil {
		log.Fatalf("failed to open %s: %v", *dbPath, err)
	}
	defer conn.Close()

	store, err := repository.NewResultsStore(context.Background(), conn)
	if err != nil {
		log.Fatalf("failed to prepare store: %v", err)
	}
	log.Println("✓ results database opened")

	resultsHandler := handler.NewResultsHandler(store)

	// ── Setup router ────────────────────────────────────
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := conn.Ping(); err != nil {
			http.Error(w, `{"status":"down"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/runs", resultsHandler.ListRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{run_id}/travellers", resultsHandler.RunTravellers).Methods(http.MethodGet)
	api.HandleFunc("/runs/{run_id}/rides", resultsHandler.RunRideEvents).Methods(http.MethodGet)

	var root http.Handler = router
	root = middleware.CORS(root)
	root = middleware.RequestLogger(root)
	root = middleware.Recoverer(root)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      root,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// ── Serve until interrupted ─────────────────────────
	go func() {
		log.Printf("✓ listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("✓ stopped")
}
