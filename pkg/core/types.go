// pkg/core/types.go
package core

import (
	"fmt"
	"strings"
)

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Velocity is a planar velocity in meters per second (X east, Y north).
type Velocity struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AgentType is the category of a simulated road user.
type AgentType string

const (
	Pedestrian AgentType = "PEDESTRIAN"
	Cyclist    AgentType = "CYCLIST"
	Scooter    AgentType = "SCOOTER"
	Vehicle    AgentType = "VEHICLE"
	Motorcycle AgentType = "MOTORCYCLE"
	Wheelchair AgentType = "WHEELCHAIR"
)

// AgentTypes lists every valid AgentType.
var AgentTypes = []AgentType{Pedestrian, Cyclist, Scooter, Vehicle, Motorcycle, Wheelchair}

// ParseAgentType accepts the canonical name in any case.
func ParseAgentType(s string) (AgentType, error) {
	t := AgentType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AgentTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown agent type %q", s)
}

// SensorCategory is the kind of a sensor source.
type SensorCategory string

const (
	GNSS                SensorCategory = "GNSS"
	LIDAR               SensorCategory = "LIDAR"
	Camera              SensorCategory = "CAMERA"
	Radar               SensorCategory = "RADAR"
	UltraWideband       SensorCategory = "ULTRA_WIDEBAND"
	VehicleToEverything SensorCategory = "VEHICLE_TO_EVERYTHING"
)

// RiskLevel is the proximity risk tier of an agent or zone.
type RiskLevel string

const (
	Safe     RiskLevel = "SAFE"
	Warning  RiskLevel = "WARNING"
	Critical RiskLevel = "CRITICAL"
)

// Severity orders risk levels; unknown values rank as SAFE.
func (r RiskLevel) Severity() int {
	switch r {
	case Critical:
		return 2
	case Warning:
		return 1
	default:
		return 0
	}
}

// MaxRisk returns the more severe of a and b.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}
