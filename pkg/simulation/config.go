package simulation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lao-tseu-is-alive/go-boids-engine/pkg/flock"
)

//go:embed config.schema.json
var configSchema string

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("config.schema.json", configSchema)
})

type Config struct {
	// Population and world
	Population int     `json:"population" toml:"population"`
	WorldSize  float64 `json:"worldSize" toml:"world_size"`

	// Steering rules
	SeparationWeight float64 `json:"separationWeight" toml:"separation_weight"`
	AlignmentWeight  float64 `json:"alignmentWeight" toml:"alignment_weight"`
	CohesionWeight   float64 `json:"cohesionWeight" toml:"cohesion_weight"`
	SeparationRadius float64 `json:"separationRadius" toml:"separation_radius"`
	AlignmentRadius  float64 `json:"alignmentRadius" toml:"alignment_radius"`
	CohesionRadius   float64 `json:"cohesionRadius" toml:"cohesion_radius"`

	// Physics
	MaxSpeed    float64 `json:"maxSpeed" toml:"max_speed"`
	MaxForce    float64 `json:"maxForce" toml:"max_force"`
	PhysicsRate float64 `json:"physicsRate" toml:"physics_rate"` // ticks per second

	// Engine toggles
	CellSizeFactor      float64 `json:"cellSizeFactor" toml:"cell_size_factor"`
	Parallel            bool    `json:"parallel" toml:"parallel"`
	SpatialGrid         bool    `json:"spatialGrid" toml:"spatial_grid"`
	AdaptiveCellSizing  bool    `json:"adaptiveCellSizing" toml:"adaptive_cell_sizing"`
	Interpolation       bool    `json:"interpolation" toml:"interpolation"`
	AdaptiveIntervalSec float64 `json:"adaptiveIntervalSec" toml:"adaptive_interval_sec"`

	Workers int    `json:"workers" toml:"workers"` // 0 uses GOMAXPROCS
	Seed    uint64 `json:"seed" toml:"seed"`       // 0 picks a random seed

	// Viewer window
	ScreenWidth  int `json:"screenWidth" toml:"screen_width"`
	ScreenHeight int `json:"screenHeight" toml:"screen_height"`
}

func DefaultConfig() *Config {
	p := flock.DefaultParams()
	return &Config{
		Population:          p.Population,
		WorldSize:           p.WorldSize,
		SeparationWeight:    p.SeparationWeight,
		AlignmentWeight:     p.AlignmentWeight,
		CohesionWeight:      p.CohesionWeight,
		SeparationRadius:    p.SeparationRadius,
		AlignmentRadius:     p.AlignmentRadius,
		CohesionRadius:      p.CohesionRadius,
		MaxSpeed:            p.MaxSpeed,
		MaxForce:            p.MaxForce,
		PhysicsRate:         p.PhysicsRate,
		CellSizeFactor:      p.CellSizeFactor,
		Parallel:            p.Parallel,
		SpatialGrid:         p.SpatialGrid,
		AdaptiveCellSizing:  p.AdaptiveCellSizing,
		Interpolation:       p.Interpolation,
		AdaptiveIntervalSec: p.AdaptiveInterval.Seconds(),
		ScreenWidth:         1000,
		ScreenHeight:        800,
	}
}

// Params converts the configuration into engine parameters.
func (c *Config) Params() flock.Params {
	return flock.Params{
		Population:         c.Population,
		SeparationWeight:   c.SeparationWeight,
		AlignmentWeight:    c.AlignmentWeight,
		CohesionWeight:     c.CohesionWeight,
		SeparationRadius:   c.SeparationRadius,
		AlignmentRadius:    c.AlignmentRadius,
		CohesionRadius:     c.CohesionRadius,
		MaxSpeed:           c.MaxSpeed,
		MaxForce:           c.MaxForce,
		CellSizeFactor:     c.CellSizeFactor,
		WorldSize:          c.WorldSize,
		PhysicsRate:        c.PhysicsRate,
		Parallel:           c.Parallel,
		SpatialGrid:        c.SpatialGrid,
		AdaptiveCellSizing: c.AdaptiveCellSizing,
		Interpolation:      c.Interpolation,
		AdaptiveInterval:   time.Duration(c.AdaptiveIntervalSec * float64(time.Second)),
	}
}

// LoadConfig reads a .json or .toml file over the defaults and validates
// the result against the embedded schema.
func LoadConfig(path string) (*Config, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return loadJSON(path)
	case ".toml":
		return loadTOML(path)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
}

func loadJSON(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("failed to decode config json: %w", err)
	}
	if err := validate(v); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

func loadTOML(path string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config toml: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys: %v", undecoded)
	}

	// validated in its JSON form so both formats share one schema
	b, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("failed to decode config json: %w", err)
	}
	if err := validate(v); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(v interface{}) error {
	sch, err := compileSchema()
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
