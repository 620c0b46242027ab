// Package catalog holds the fixed camera-pose presets offered to callers.
// The catalog is built once at process start and is read-only afterwards;
// adding a preset is a code change, not a runtime operation.
package catalog

import (
	"fmt"

	"previz/internal/domain"
)

type Catalog struct {
	presets []domain.AnglePreset
	byID    map[string]domain.AnglePreset
}

// New builds the default preset catalog.
func New() *Catalog {
	presets := []domain.AnglePreset{
		{
			ID:    "character-ortho",
			Label: "Character orthographic three-view",
			Poses: []domain.CameraPose{
				{Azimuth: domain.AzimuthFront, Elevation: domain.ElevationEye, Distance: domain.DistanceMedium},
				{Azimuth: domain.AzimuthRight, Elevation: domain.ElevationEye, Distance: domain.DistanceMedium},
				{Azimuth: domain.AzimuthBack, Elevation: domain.ElevationEye, Distance: domain.DistanceMedium},
			},
		},
		{
			ID:    "character-turnaround",
			Label: "Character full turnaround",
			Poses: eyeLevelOrbit(domain.DistanceMedium),
		},
		{
			ID:    "portrait-coverage",
			Label: "Portrait close-up coverage",
			Poses: []domain.CameraPose{
				{Azimuth: domain.AzimuthFront, Elevation: domain.ElevationEye, Distance: domain.DistanceClose},
				{Azimuth: domain.AzimuthFrontLeft, Elevation: domain.ElevationEye, Distance: domain.DistanceClose},
				{Azimuth: domain.AzimuthFrontRight, Elevation: domain.ElevationEye, Distance: domain.DistanceClose},
				{Azimuth: domain.AzimuthFront, Elevation: domain.ElevationLow, Distance: domain.DistanceClose},
				{Azimuth: domain.AzimuthFront, Elevation: domain.ElevationHigh, Distance: domain.DistanceClose},
			},
		},
		{
			ID:    "set-establishing",
			Label: "Set establishing angles",
			Poses: []domain.CameraPose{
				{Azimuth: domain.AzimuthFront, Elevation: domain.ElevationEye, Distance: domain.DistanceFar},
				{Azimuth: domain.AzimuthFrontRight, Elevation: domain.ElevationHigh, Distance: domain.DistanceFar},
				{Azimuth: domain.AzimuthFrontLeft, Elevation: domain.ElevationHigh, Distance: domain.DistanceFar},
				{Azimuth: domain.AzimuthFront, Elevation: domain.ElevationOverhead, Distance: domain.DistanceFar},
			},
		},
		{
			ID:    "hero-dramatic",
			Label: "Hero dramatic angles",
			Poses: []domain.CameraPose{
				{Azimuth: domain.AzimuthFront, Elevation: domain.ElevationLow, Distance: domain.DistanceMedium},
				{Azimuth: domain.AzimuthFrontLeft, Elevation: domain.ElevationLow, Distance: domain.DistanceClose},
				{Azimuth: domain.AzimuthFrontRight, Elevation: domain.ElevationLow, Distance: domain.DistanceClose},
			},
		},
	}

	byID := make(map[string]domain.AnglePreset, len(presets))
	for _, p := range presets {
		byID[p.ID] = p
	}
	return &Catalog{presets: presets, byID: byID}
}

func eyeLevelOrbit(d domain.Distance) []domain.CameraPose {
	poses := make([]domain.CameraPose, 0, len(domain.Azimuths))
	for _, az := range domain.Azimuths {
		poses = append(poses, domain.CameraPose{Azimuth: az, Elevation: domain.ElevationEye, Distance: d})
	}
	return poses
}

// Presets returns every registered preset in registration order.
func (c *Catalog) Presets() []domain.AnglePreset {
	out := make([]domain.AnglePreset, len(c.presets))
	copy(out, c.presets)
	return out
}

// Resolve turns a generation request into a concrete pose list. Exactly one
// of presetID or explicit poses is consulted; when a preset id is given the
// explicit list is ignored. The returned slice is always a copy, so preset
// data can never be mutated through a job and later catalog changes never
// reach existing jobs.
func (c *Catalog) Resolve(presetID string, explicit []domain.CameraPose) ([]domain.CameraPose, error) {
	if presetID != "" {
		preset, ok := c.byID[presetID]
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownPreset, presetID)
		}
		poses := make([]domain.CameraPose, len(preset.Poses))
		copy(poses, preset.Poses)
		return poses, nil
	}

	if len(explicit) == 0 {
		return nil, fmt.Errorf("%w: no poses requested", domain.ErrInvalidPose)
	}
	seen := make(map[string]bool, len(explicit))
	poses := make([]domain.CameraPose, 0, len(explicit))
	for _, pose := range explicit {
		if err := pose.Validate(); err != nil {
			return nil, err
		}
		if seen[pose.Key()] {
			return nil, fmt.Errorf("%w: duplicate pose %s", domain.ErrInvalidPose, pose.Key())
		}
		seen[pose.Key()] = true
		poses = append(poses, pose)
	}
	return poses, nil
}
