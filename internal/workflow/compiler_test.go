package workflow

import (
	"encoding/json"
	"strings"
	"testing"

	"previz/internal/domain"
)

func testOptions(seed int64) domain.GenerationOptions {
	return domain.GenerationOptions{Strength: 0.9, Steps: 20, CFG: 7.0, Seed: &seed}
}

func TestCompileDeterministicForFixedSeed(t *testing.T) {
	pose := domain.CameraPose{Azimuth: domain.AzimuthFront, Elevation: domain.ElevationEye, Distance: domain.DistanceMedium}
	a, err := json.Marshal(Compile("source.png", pose, testOptions(7)))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(Compile("source.png", pose, testOptions(7)))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("compile is not deterministic:\n%s\n%s", a, b)
	}
}

func TestCompileWiresOptionsIntoSampler(t *testing.T) {
	pose := domain.CameraPose{Azimuth: domain.AzimuthLeft, Elevation: domain.ElevationHigh, Distance: domain.DistanceFar}
	graph := Compile("upload-123.png", pose, testOptions(99))

	sampler, ok := graph["6"]
	if !ok || sampler.ClassType != "KSampler" {
		t.Fatalf("expected KSampler at node 6, got %+v", graph["6"])
	}
	if got := sampler.Inputs["seed"]; got != int64(99) {
		t.Fatalf("seed = %v, want 99", got)
	}
	if got := sampler.Inputs["steps"]; got != 20 {
		t.Fatalf("steps = %v, want 20", got)
	}
	if got := sampler.Inputs["cfg"]; got != 7.0 {
		t.Fatalf("cfg = %v, want 7.0", got)
	}
	if got := sampler.Inputs["denoise"]; got != 0.9 {
		t.Fatalf("denoise = %v, want 0.9", got)
	}
	if got := graph["1"].Inputs["image"]; got != "upload-123.png" {
		t.Fatalf("source image = %v, want upload-123.png", got)
	}
}

func TestCompileNeverFailsForAnyValidPose(t *testing.T) {
	opts := testOptions(1)
	prompts := make(map[string]string)
	for _, az := range domain.Azimuths {
		for _, el := range domain.Elevations {
			for _, d := range domain.Distances {
				pose := domain.CameraPose{Azimuth: az, Elevation: el, Distance: d}
				graph := Compile("src.png", pose, opts)
				if len(graph) == 0 {
					t.Fatalf("empty graph for pose %s", pose.Key())
				}
				prompt, _ := graph["3"].Inputs["text"].(string)
				if strings.TrimSpace(prompt) == "" {
					t.Fatalf("empty conditioning for pose %s", pose.Key())
				}
				prompts[pose.Key()] = prompt
			}
		}
	}
	distinct := make(map[string]bool)
	for _, p := range prompts {
		distinct[p] = true
	}
	if len(distinct) != 96 {
		t.Fatalf("expected 96 distinct conditioning phrases, got %d", len(distinct))
	}
}

func TestConditioningPhraseAxisOrder(t *testing.T) {
	pose := domain.CameraPose{Azimuth: domain.AzimuthBack, Elevation: domain.ElevationLow, Distance: domain.DistanceClose}
	got := ConditioningPhrase(pose)
	want := "view from behind, low angle looking up, close-up framing"
	if got != want {
		t.Fatalf("ConditioningPhrase = %q, want %q", got, want)
	}
}
