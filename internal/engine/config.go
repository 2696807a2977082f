package engine

import (
	"time"

	"github.com/mohamedbenhasan1/VRUGuard/internal/zone"
	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
)

// PopulationEntry asks for Count randomly placed agents of Type.
type PopulationEntry struct {
	Type  core.AgentType `json:"type" mapstructure:"type" yaml:"type"`
	Count int            `json:"count" mapstructure:"count" yaml:"count"`
}

// Config holds simulation parameters.
type Config struct {
	Origin            core.Coordinate
	TickInterval      time.Duration
	ContainmentRadius float64 // meters from Origin
	CellSize          float64 // zone grid cell side in meters
	SpawnSpread       float64 // side of the square agents spawn in, meters
	Population        []PopulationEntry
}

// DefaultOrigin is downtown San Francisco.
var DefaultOrigin = core.Coordinate{Lat: 37.7749, Lng: -122.4194}

// DefaultConfig returns the stock simulation parameters.
func DefaultConfig() Config {
	return Config{
		Origin:            DefaultOrigin,
		TickInterval:      100 * time.Millisecond,
		ContainmentRadius: 500,
		CellSize:          zone.DefaultCellSize,
		SpawnSpread:       400,
		Population: []PopulationEntry{
			{Type: core.Pedestrian, Count: 5},
			{Type: core.Cyclist, Count: 3},
			{Type: core.Scooter, Count: 2},
		},
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Origin == (core.Coordinate{}) {
		c.Origin = d.Origin
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.ContainmentRadius <= 0 {
		c.ContainmentRadius = d.ContainmentRadius
	}
	if c.CellSize <= 0 {
		c.CellSize = d.CellSize
	}
	if c.SpawnSpread <= 0 {
		c.SpawnSpread = d.SpawnSpread
	}
	if c.Population == nil {
		c.Population = d.Population
	}
	return c
}
