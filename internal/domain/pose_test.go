package domain

import "testing"

func TestCameraPoseValidateAllCombinations(t *testing.T) {
	seen := make(map[string]bool)
	for _, az := range Azimuths {
		for _, el := range Elevations {
			for _, d := range Distances {
				pose := CameraPose{Azimuth: az, Elevation: el, Distance: d}
				if err := pose.Validate(); err != nil {
					t.Fatalf("valid pose %s rejected: %v", pose.Key(), err)
				}
				if seen[pose.Key()] {
					t.Fatalf("duplicate pose key %s", pose.Key())
				}
				seen[pose.Key()] = true
			}
		}
	}
	if len(seen) != 96 {
		t.Fatalf("expected 96 distinct poses, got %d", len(seen))
	}
}

func TestCameraPoseValidateRejectsUnknownValues(t *testing.T) {
	tests := []struct {
		name string
		pose CameraPose
	}{
		{"bad azimuth", CameraPose{Azimuth: "diagonal", Elevation: ElevationEye, Distance: DistanceMedium}},
		{"bad elevation", CameraPose{Azimuth: AzimuthFront, Elevation: "knee", Distance: DistanceMedium}},
		{"bad distance", CameraPose{Azimuth: AzimuthFront, Elevation: ElevationEye, Distance: "extreme"}},
		{"empty pose", CameraPose{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.pose.Validate()
			if err == nil {
				t.Fatalf("expected validation error for %+v", tc.pose)
			}
		})
	}
}
