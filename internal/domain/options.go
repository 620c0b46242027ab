package domain

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// DefaultOptions returns the request-time defaults applied when the caller
// leaves the whole options object out of a generation request.
func DefaultOptions() GenerationOptions {
	return GenerationOptions{Strength: 0.85, Steps: 20, CFG: 7.0}
}

// GenerationOptions configures a single generation job. All tasks in a job
// share one options value; once a missing seed has been assigned at job
// creation, the stored options reproduce every task exactly.
type GenerationOptions struct {
	Strength float64 `json:"strength" validate:"gte=0.5,lte=1.0"`
	Steps    int     `json:"steps" validate:"gte=10,lte=50"`
	CFG      float64 `json:"cfg" validate:"gte=1,lte=15"`
	Seed     *int64  `json:"seed,omitempty"`
}

var optionsValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate rejects out-of-range values outright. Values are never clamped;
// a job is only ever created from options that passed here unchanged.
func (o GenerationOptions) Validate() error {
	if err := optionsValidator.Struct(o); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			field := invalid[0]
			return fmt.Errorf("%w: %s out of range (%v)", ErrInvalidOptions, field.Field(), field.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}
