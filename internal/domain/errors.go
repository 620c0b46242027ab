package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrUnknownPreset     = errors.New("unknown preset")
	ErrInvalidPose       = errors.New("invalid pose")
	ErrInvalidOptions    = errors.New("invalid options")
	ErrSourceUnavailable = errors.New("source image unavailable")
)
