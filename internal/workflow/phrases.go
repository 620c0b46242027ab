package workflow

import (
	"strings"

	"previz/internal/domain"
)

var azimuthPhrases = map[domain.Azimuth]string{
	domain.AzimuthFront:      "front view",
	domain.AzimuthFrontRight: "front three-quarter view from the right",
	domain.AzimuthRight:      "right side profile view",
	domain.AzimuthBackRight:  "rear three-quarter view from the right",
	domain.AzimuthBack:       "view from behind",
	domain.AzimuthBackLeft:   "rear three-quarter view from the left",
	domain.AzimuthLeft:       "left side profile view",
	domain.AzimuthFrontLeft:  "front three-quarter view from the left",
}

var elevationPhrases = map[domain.Elevation]string{
	domain.ElevationLow:      "low angle looking up",
	domain.ElevationEye:      "camera at eye level",
	domain.ElevationHigh:     "high angle looking down",
	domain.ElevationOverhead: "overhead top-down angle",
}

var distancePhrases = map[domain.Distance]string{
	domain.DistanceClose:  "close-up framing",
	domain.DistanceMedium: "medium shot framing",
	domain.DistanceFar:    "wide full-body framing",
}

// ConditioningPhrase maps a pose to the textual conditioning sent to the
// backend. Each axis contributes independently; the phrases join in fixed
// azimuth, elevation, distance order so the mapping is deterministic.
func ConditioningPhrase(pose domain.CameraPose) string {
	return strings.Join([]string{
		azimuthPhrases[pose.Azimuth],
		elevationPhrases[pose.Elevation],
		distancePhrases[pose.Distance],
	}, ", ")
}
