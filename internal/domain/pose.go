package domain

import "fmt"

// Azimuth enumerates the horizontal camera positions around the subject.
type Azimuth string

const (
	AzimuthFront      Azimuth = "front"
	AzimuthFrontRight Azimuth = "front-right"
	AzimuthRight      Azimuth = "right"
	AzimuthBackRight  Azimuth = "back-right"
	AzimuthBack       Azimuth = "back"
	AzimuthBackLeft   Azimuth = "back-left"
	AzimuthLeft       Azimuth = "left"
	AzimuthFrontLeft  Azimuth = "front-left"
)

// Elevation enumerates the vertical camera positions.
type Elevation string

const (
	ElevationLow      Elevation = "low"
	ElevationEye      Elevation = "eye"
	ElevationHigh     Elevation = "high"
	ElevationOverhead Elevation = "overhead"
)

// Distance enumerates camera-to-subject framing distances.
type Distance string

const (
	DistanceClose  Distance = "close"
	DistanceMedium Distance = "medium"
	DistanceFar    Distance = "far"
)

// Azimuths lists every valid azimuth in presentation order.
var Azimuths = []Azimuth{
	AzimuthFront, AzimuthFrontRight, AzimuthRight, AzimuthBackRight,
	AzimuthBack, AzimuthBackLeft, AzimuthLeft, AzimuthFrontLeft,
}

// Elevations lists every valid elevation in presentation order.
var Elevations = []Elevation{ElevationLow, ElevationEye, ElevationHigh, ElevationOverhead}

// Distances lists every valid distance in presentation order.
var Distances = []Distance{DistanceClose, DistanceMedium, DistanceFar}

// CameraPose selects one of the 96 fixed viewpoints relative to a subject.
// Equality is structural; a pose doubles as a task's identity within a job.
type CameraPose struct {
	Azimuth   Azimuth   `json:"azimuth"`
	Elevation Elevation `json:"elevation"`
	Distance  Distance  `json:"distance"`
}

// Key returns the canonical identity string for the pose.
func (p CameraPose) Key() string {
	return fmt.Sprintf("%s-%s-%s", p.Azimuth, p.Elevation, p.Distance)
}

// Validate checks each axis against its enumeration.
func (p CameraPose) Validate() error {
	if !containsAxis(Azimuths, p.Azimuth) {
		return fmt.Errorf("%w: azimuth %q", ErrInvalidPose, p.Azimuth)
	}
	if !containsAxis(Elevations, p.Elevation) {
		return fmt.Errorf("%w: elevation %q", ErrInvalidPose, p.Elevation)
	}
	if !containsAxis(Distances, p.Distance) {
		return fmt.Errorf("%w: distance %q", ErrInvalidPose, p.Distance)
	}
	return nil
}

func containsAxis[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// AnglePreset names a fixed, ordered list of camera poses for a common
// preproduction use case. Presets are built at process start and never
// mutated afterwards.
type AnglePreset struct {
	ID    string       `json:"id"`
	Label string       `json:"label"`
	Poses []CameraPose `json:"poses"`
}
