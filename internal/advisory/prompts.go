package advisory

import (
	"fmt"

	"github.com/mohamedbenhasan1/VRUGuard/pkg/core"
)

// Summary is the slice of simulation state shared with the model.
type Summary struct {
	AgentCount     int
	Warnings       int
	UserError      float64
	ActiveSensors  int
	AdvancedFusion bool
}

// SummaryFromState extracts a Summary from a snapshot.
func SummaryFromState(s *core.SimulationState) Summary {
	sum := Summary{
		AgentCount:     s.Metrics.TotalAgents,
		Warnings:       s.Metrics.CollisionWarnings,
		UserError:      s.Metrics.AvgError,
		AdvancedFusion: s.Metrics.AdvancedFusionActive,
	}
	if user, ok := s.UserAgent(); ok {
		sum.ActiveSensors = len(user.ActiveSensors())
	}
	return sum
}

// TacticalPrompt asks for a one-sentence safety recommendation.
func TacticalPrompt(s Summary) string {
	return fmt.Sprintf(`Context: Real-time VRU safety dashboard.
Metrics:
- VRU Count: %d
- Collision Warnings: %d

Provide a 1-sentence tactical safety recommendation.`, s.AgentCount, s.Warnings)
}

// ErrorAnalysisPrompt asks what the current localization error means for
// VRU safety.
func ErrorAnalysisPrompt(s Summary) string {
	fusion := "INACTIVE"
	if s.AdvancedFusion {
		fusion = "ACTIVE"
	}
	return fmt.Sprintf(`You are a Sensor Fusion Expert.
Current RMSE: %.4f meters.
Active Sensors: %d
Advanced Fusion: %s

Explain strictly the significance of this specific RMSE value for Vulnerable Road User (VRU) safety.
Is it safe for autonomous braking decisions?
Answer in 2 short paragraphs.`, s.UserError, s.ActiveSensors, fusion)
}
