// Package risk grades collision danger from distances to nearby agents.
package risk

import (
	"github.com/mohamedbenhasan1/VRUGuard/internal/geo"
	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
)

// Distances in meters.
const (
	SearchRadius     = 20.0
	CriticalDistance = 5.0
	WarningDistance  = 15.0
)

// Classify returns the risk tier for an agent about to move to candidate,
// given the unchanged positions of its nearby agents.
func Classify(candidate core.Coordinate, neighbors []core.Coordinate) core.RiskLevel {
	level := core.Safe
	for _, n := range neighbors {
		d := geo.Distance(candidate, n)
		if d < CriticalDistance {
			return core.Critical
		}
		if d < WarningDistance {
			level = core.Warning
		}
	}
	return level
}

// Neighbors returns the indices of agents other than roster[self] whose
// current position lies strictly within radius meters of roster[self].
func Neighbors(self int, roster []core.Agent, radius float64) []int {
	var out []int
	origin := roster[self].Position
	for i := range roster {
		if i == self {
			continue
		}
		if geo.Distance(origin, roster[i].Position) < radius {
			out = append(out, i)
		}
	}
	return out
}
