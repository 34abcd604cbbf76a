package snapshot

import "MarketPulse/internal/domain/models"

var thresholds = []models.ActionThreshold{
	{Range: ">= 75", Action: "Add exposure in tranches", Note: "Strong tape with broad participation. Still scale in and keep stops."},
	{Range: "65 - 74", Action: "Build positions conservatively", Note: "Constructive tape. Favor high-score names with good liquidity."},
	{Range: "55 - 64", Action: "Neutral, watch", Note: "Probe with small size or wait for a clearer signal."},
	{Range: "45 - 54", Action: "Reduce exposure", Note: "Weak tape. Avoid chasing and limit new positions."},
	{Range: "< 45", Action: "Defensive, cut exposure", Note: "Cash first. Honor stops and do not average down."},
}

// Thresholds returns a copy of the static action table attached to every snapshot.
func Thresholds() []models.ActionThreshold {
	out := make([]models.ActionThreshold, len(thresholds))
	copy(out, thresholds)
	return out
}
