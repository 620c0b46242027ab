// Package workflow compiles a camera pose and generation options into the
// node graph the compute backend executes. Compilation is pure: no I/O, and
// the same inputs always produce the same graph.
package workflow

import (
	"previz/internal/domain"
)

// Node is one backend graph node.
type Node struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`
}

// Graph maps node ids to nodes, in the backend's wire shape.
type Graph map[string]Node

const (
	checkpointName = "sd_xl_base_1.0.safetensors"
	negativePrompt = "blurry, deformed, low quality, watermark, text"
	samplerName    = "euler"
	schedulerName  = "normal"
	outputPrefix   = "previz_angle"
)

// Compile builds the img2img graph for one pose. sourceAssetRef is the
// backend-side name returned by the asset upload. A nil seed compiles to 0;
// the orchestrator assigns a concrete seed at job creation, so graphs built
// from persisted jobs are always fully reproducible.
func Compile(sourceAssetRef string, pose domain.CameraPose, opts domain.GenerationOptions) Graph {
	var seed int64
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	return Graph{
		"1": {ClassType: "LoadImage", Inputs: map[string]any{
			"image": sourceAssetRef,
		}},
		"2": {ClassType: "CheckpointLoaderSimple", Inputs: map[string]any{
			"ckpt_name": checkpointName,
		}},
		"3": {ClassType: "CLIPTextEncode", Inputs: map[string]any{
			"text": ConditioningPhrase(pose),
			"clip": []any{"2", 1},
		}},
		"4": {ClassType: "CLIPTextEncode", Inputs: map[string]any{
			"text": negativePrompt,
			"clip": []any{"2", 1},
		}},
		"5": {ClassType: "VAEEncode", Inputs: map[string]any{
			"pixels": []any{"1", 0},
			"vae":    []any{"2", 2},
		}},
		"6": {ClassType: "KSampler", Inputs: map[string]any{
			"seed":         seed,
			"steps":        opts.Steps,
			"cfg":          opts.CFG,
			"sampler_name": samplerName,
			"scheduler":    schedulerName,
			"denoise":      opts.Strength,
			"model":        []any{"2", 0},
			"positive":     []any{"3", 0},
			"negative":     []any{"4", 0},
			"latent_image": []any{"5", 0},
		}},
		"7": {ClassType: "VAEDecode", Inputs: map[string]any{
			"samples": []any{"6", 0},
			"vae":     []any{"2", 2},
		}},
		"8": {ClassType: "SaveImage", Inputs: map[string]any{
			"filename_prefix": outputPrefix,
			"images":          []any{"7", 0},
		}},
	}
}
