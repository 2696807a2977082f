// Package zone buckets agents into a fixed grid of density cells around the origin.
package zone

import (
	"fmt"

	"github.com/mohamedbenhasan1/VRUGuard/internal/geo"
	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
)

// DefaultCellSize is the side length of a grid cell in meters.
const DefaultCellSize = 150.0

// GridRadius is the number of cells on each side of the center cell.
const GridRadius = 1

// Aggregator partitions the area around Origin into a fixed square grid.
type Aggregator struct {
	Origin   core.Coordinate
	CellSize float64
}

// NewAggregator returns an Aggregator; a non-positive cellSize uses DefaultCellSize.
func NewAggregator(origin core.Coordinate, cellSize float64) *Aggregator {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Aggregator{Origin: origin, CellSize: cellSize}
}

// TierForDensity maps an agent count to a zone risk tier.
func TierForDensity(count int) core.RiskLevel {
	switch {
	case count > 4:
		return core.Critical
	case count > 2:
		return core.Warning
	default:
		return core.Safe
	}
}

// Compute builds a fresh zone set from agents. Cells are ordered by x then y.
func (a *Aggregator) Compute(agents []core.Agent) []core.Zone {
	half := a.CellSize / 2
	zones := make([]core.Zone, 0, (2*GridRadius+1)*(2*GridRadius+1))

	for x := -GridRadius; x <= GridRadius; x++ {
		for y := -GridRadius; y <= GridRadius; y++ {
			center := geo.Displace(a.Origin, float64(x)*a.CellSize, float64(y)*a.CellSize)

			count := 0
			for i := range agents {
				if geo.Distance(agents[i].Position, center) < half {
					count++
				}
			}

			zones = append(zones, core.Zone{
				ID:     fmt.Sprintf("zone-%d-%d", x, y),
				Center: center,
				Bounds: [4]core.Coordinate{
					geo.Displace(center, -half, -half),
					geo.Displace(center, half, -half),
					geo.Displace(center, half, half),
					geo.Displace(center, -half, half),
				},
				Density:   count,
				RiskLevel: TierForDensity(count),
			})
		}
	}
	return zones
}
