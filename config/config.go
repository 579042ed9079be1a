// Package config loads the simulation's configuration files with viper.
// Each concern lives in its own JSON file under the config path so that
// scenario variants can swap a single file.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for a simulation run.
type Config struct {
	Simulation  SimulationConfig
	City        CityConfig
	Behavioural BehaviouralConfig
	Fares       FaresConfig
}

// SimulationConfig holds run-level settings.
type SimulationConfig struct {
	RequestsFile   string  `mapstructure:"requests_file"`
	VehiclesFile   string  `mapstructure:"vehicles_file"`
	OutputPath     string  `mapstructure:"output_path"`
	RefreshDensity float64 `mapstructure:"refresh_density"` // seconds
	OnlyTaxi       bool    `mapstructure:"only_taxi"`
	AttractiveOnly bool    `mapstructure:"attractive_only"`
	ProfitableOnly bool    `mapstructure:"profitable_only"`
	CapacityFreed  bool    `mapstructure:"pool_capacity_freed"`
	SaveResults    bool    `mapstructure:"save_results"`
}

// CityConfig points at the road-network inputs.
type CityConfig struct {
	GraphFile      string `mapstructure:"city_graph_file"`
	SkimMatrixFile string `mapstructure:"skim_matrix_file"`
	UseSkimMatrix  bool   `mapstructure:"use_skim_matrix"`
}

// BehaviouralConfig holds the traveller preference parameters shared by
// every traveller of a run.
type BehaviouralConfig struct {
	VoT                    float64            `mapstructure:"VoT"`
	PickupDelaySensitivity float64            `mapstructure:"pickup_delay_sensitivity"`
	MaximalPickup          float64            `mapstructure:"maximal_pickup"`  // seconds
	MaximalWaiting         float64            `mapstructure:"maximal_waiting"` // seconds
	PoolRides              PoolRidesBehaviour `mapstructure:"pool_rides"`
}

// PoolRidesBehaviour holds the shared-ride discomfort parameters.
type PoolRidesBehaviour struct {
	PfS      map[string]float64 `mapstructure:"PfS"`
	PfSConst float64            `mapstructure:"PfS_const"`
}

// FaresConfig maps each operator to its pricing and cost structure.
type FaresConfig struct {
	Operators map[string]OperatorFares `mapstructure:"operators"`
}

// OperatorFares holds one operator's per-meter fares and costs.
type OperatorFares struct {
	TaxiFare          float64 `mapstructure:"taxi_fare"`
	PoolFare          float64 `mapstructure:"pool_fare"`
	PoolDiscount      float64 `mapstructure:"pool_discount"`
	TaxiOperatingCost float64 `mapstructure:"taxi_operating_cost"`
	PoolOperatingCost float64 `mapstructure:"pool_operating_cost"`
}

// Load reads the four configuration files from path and validates the
// values the simulation cannot run without.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if err := loadSection(path, "simulation_config", simulationDefaults, &cfg.Simulation); err != nil {
		return nil, err
	}
	if err := loadSection(path, "city_config", nil, &cfg.City); err != nil {
		return nil, err
	}
	if err := loadSection(path, "behavioural_config", behaviouralDefaults, &cfg.Behavioural); err != nil {
		return nil, err
	}
	if err := loadSection(path, "fares_config", nil, &cfg.Fares); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSection reads one JSON config file into out with its defaults
// applied first.
func loadSection(path, name string, defaults func(*viper.Viper), out interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("json")
	v.AddConfigPath(path)

	if defaults != nil {
		defaults(v)
	}

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

func simulationDefaults(v *viper.Viper) {
	v.SetDefault("output_path", "results")
	v.SetDefault("refresh_density", 60)
	v.SetDefault("only_taxi", false)
	v.SetDefault("attractive_only", true)
	v.SetDefault("profitable_only", true)
	v.SetDefault("pool_capacity_freed", true)
	v.SetDefault("save_results", true)
}

func behaviouralDefaults(v *viper.Viper) {
	v.SetDefault("VoT", 0.0035)
	v.SetDefault("pickup_delay_sensitivity", 1.5)
	v.SetDefault("maximal_pickup", 600)
	v.SetDefault("maximal_waiting", 600)
	v.SetDefault("pool_rides.PfS_const", 0)
}

func (c *Config) validate() error {
	if c.Simulation.RequestsFile == "" {
		return fmt.Errorf("simulation_config: requests_file is required")
	}
	if c.Simulation.VehiclesFile == "" {
		return fmt.Errorf("simulation_config: vehicles_file is required")
	}
	if c.Simulation.RefreshDensity <= 0 {
		return fmt.Errorf("simulation_config: refresh_density must be positive, got %v", c.Simulation.RefreshDensity)
	}
	if c.City.UseSkimMatrix {
		if c.City.SkimMatrixFile == "" {
			return fmt.Errorf("city_config: skim_matrix_file is required when use_skim_matrix is set")
		}
	} else if c.City.GraphFile == "" {
		return fmt.Errorf("city_config: city_graph_file is required")
	}
	if len(c.Fares.Operators) == 0 {
		return fmt.Errorf("fares_config: at least one operator is required")
	}
	for name, op := range c.Fares.Operators {
		if op.PoolDiscount < 0 || op.PoolDiscount >= 1 {
			return fmt.Errorf("fares_config: operator %s: pool_discount must be in [0,1), got %v", name, op.PoolDiscount)
		}
	}
	return nil
}

// OutputDir returns the dated directory results of a run are written to.
func (c *Config) OutputDir(now time.Time) string {
	return fmt.Sprintf("%s/%s", c.Simulation.OutputPath, now.Format("2006-01-02"))
}
