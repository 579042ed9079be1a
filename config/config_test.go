package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfigs(t *testing.T, overrides map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"simulation_config.json": `{
			"requests_file": "requests.csv",
			"vehicles_file": "vehicles.csv",
			"output_path": "out",
			"refresh_density": 30
		}`,
		"city_config.json": `{
			"city_graph_file": "city_graph.json"
		}`,
		"behavioural_config.json": `{
			"VoT": 0.0035,
			"pickup_delay_sensitivity": 1.5,
			"maximal_pickup": 600,
			"maximal_waiting": 300,
			"pool_rides": {
				"PfS": {"1": 1.0, "2": 1.1, "3": 1.3, "4": 1.5},
				"PfS_const": 0.2
			}
		}`,
		"fares_config.json": `{
			"operators": {
				"op": {
					"taxi_fare": 0.002,
					"pool_fare": 0.002,
					"pool_discount": 0.25,
					"taxi_operating_cost": 0.0005,
					"pool_operating_cost": 0.0005
				}
			}
		}`,
	}
	for name, content := range files {
		if o, ok := overrides[name]; ok {
			content = o
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeConfigs(t, nil)

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, "requests.csv", cfg.Simulation.RequestsFile)
	require.Equal(t, "vehicles.csv", cfg.Simulation.VehiclesFile)
	require.InDelta(t, 30, cfg.Simulation.RefreshDensity, 1e-9)
	require.True(t, cfg.Simulation.AttractiveOnly) // default
	require.True(t, cfg.Simulation.SaveResults)    // default

	require.Equal(t, "city_graph.json", cfg.City.GraphFile)
	require.False(t, cfg.City.UseSkimMatrix)

	require.InDelta(t, 0.0035, cfg.Behavioural.VoT, 1e-9)
	require.InDelta(t, 300, cfg.Behavioural.MaximalWaiting, 1e-9)
	require.InDelta(t, 1.1, cfg.Behavioural.PoolRides.PfS["2"], 1e-9)
	require.InDelta(t, 0.2, cfg.Behavioural.PoolRides.PfSConst, 1e-9)

	op, ok := cfg.Fares.Operators["op"]
	require.True(t, ok)
	require.InDelta(t, 0.25, op.PoolDiscount, 1e-9)
}

func TestLoad_MissingRequestsFile(t *testing.T) {
	dir := writeConfigs(t, map[string]string{
		"simulation_config.json": `{"vehicles_file": "vehicles.csv"}`,
	})
	_, err := Load(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "requests_file")
}

func TestLoad_BadDiscount(t *testing.T) {
	dir := writeConfigs(t, map[string]string{
		"fares_config.json": `{
			"operators": {"op": {"pool_discount": 1.5}}
		}`,
	})
	_, err := Load(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "pool_discount")
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestLoad_SkimMatrixMode(t *testing.T) {
	dir := writeConfigs(t, map[string]string{
		"city_config.json": `{"use_skim_matrix": true, "skim_matrix_file": "skim.json"}`,
	})
	cfg, err := Load(dir)
	require.NoError(t, err)
	require.True(t, cfg.City.UseSkimMatrix)
	require.Equal(t, "skim.json", cfg.City.SkimMatrixFile)
}
