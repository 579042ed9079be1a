package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mobsim/ridepool/pkg/db"
)

func TestResultsStore_RoundTrip(t *testing.T) {
	conn, err := db.NewSQLite(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer conn.Close()

	ctx := context.Background()
	store, err := NewResultsStore(ctx, conn)
	require.NoError(t, err)

	travellers, vehicles, rides := sampleRun(t)
	summary := BuildSummary(travellers, vehicles, rides)
	started := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	runID, err := store.SaveRun(ctx, started, summary, travellers, rides)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, runID, runs[0].ID)
	require.Equal(t, 2, runs[0].Requests)
	require.Equal(t, 1, runs[0].Served)
	require.InDelta(t, 2000, runs[0].Mileage, 1e-9)

	rows, err := store.RunTravellers(ctx, runID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.EqualValues(t, 1, rows[0].TravellerID)
	require.True(t, rows[0].PickedUp)
	require.NotNil(t, rows[0].UtilityTaxi)
	require.InDelta(t, -7.05, *rows[0].UtilityTaxi, 1e-9)
	require.Nil(t, rows[0].UtilityPool)
	require.True(t, rows[1].Resigned)

	events, err := store.RunRideEvents(ctx, runID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, "a", events[0].Event)
	require.Equal(t, "d", events[2].Event)
}

func TestResultsStore_SecondRunKeepsFirst(t *testing.T) {
	conn, err := db.NewSQLite(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer conn.Close()

	ctx := context.Background()
	store, err := NewResultsStore(ctx, conn)
	require.NoError(t, err)

	travellers, vehicles, rides := sampleRun(t)
	summary := BuildSummary(travellers, vehicles, rides)

	_, err = store.SaveRun(ctx, time.Now(), summary, travellers, rides)
	require.NoError(t, err)
	_, err = store.SaveRun(ctx, time.Now(), summary, travellers, rides)
	require.NoError(t, err)

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
}
