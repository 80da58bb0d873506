package analytics

import "iot-traffic-sim/internal/models"

// Health status labels
const (
	StatusOptimal      = "Optimal"
	StatusModerateRisk = "Moderate Risk"
	StatusCriticalRisk = "Critical Risk"
)

const (
	alertPenalty      = 30
	powerPenalty      = 10
	highLoadPenalty   = 5
	powerLimitWatts   = 2000
	highLoadWatts     = 200
	highLoadTolerance = 2
)

// Health network health score and the penalties behind it
type Health struct {
	Score           int     `json:"score"`
	Status          string  `json:"status"`
	Penalty         int     `json:"penalty"`
	Variance        int     `json:"variance"`
	ActiveAlerts    int     `json:"activeAlerts"`
	HighLoadDevices int     `json:"highLoadDevices"`
	TotalPowerWatts float64 `json:"totalPowerWatts"`
}

// ScoreHealth computes the health score from recent alerts, total power and
// the online devices. variance is subtracted as is.
func ScoreHealth(activeAlerts int, totalPower float64, online []models.Device, variance int) Health {
	highLoad := 0
	for _, d := range online {
		if d.PowerWatts > highLoadWatts {
			highLoad++
		}
	}

	penalty := 0
	if activeAlerts > 0 {
		penalty += alertPenalty
	}
	if totalPower > powerLimitWatts {
		penalty += powerPenalty
	}
	if highLoad > highLoadTolerance {
		penalty += highLoad * highLoadPenalty
	}

	score := 100 - penalty - variance
	score = max(0, min(100, score))

	return Health{
		Score:           score,
		Status:          HealthStatus(score),
		Penalty:         penalty,
		Variance:        variance,
		ActiveAlerts:    activeAlerts,
		HighLoadDevices: highLoad,
		TotalPowerWatts: totalPower,
	}
}

// HealthStatus maps a score to its label.
func HealthStatus(score int) string {
	switch {
	case score > 80:
		return StatusOptimal
	case score > 50:
		return StatusModerateRisk
	default:
		return StatusCriticalRisk
	}
}
