package synth

import (
	"fmt"
	"time"

	"github.com/ivxni/VOiD/pkg/types"
)

// Profile bundles the knobs of one cloaking strength level: how much the
// pixels may move (L∞ epsilon on the [0,1] scale), how many optimization
// iterations to spend, the embedding distance that counts as "cloaked" and
// the wall-clock budget for a whole image at this strength.
type Profile struct {
	Strength       types.Strength `json:"strength"`
	Epsilon        float64        `json:"epsilon"`
	Steps          int            `json:"steps"`
	StepFactor     float64        `json:"step_factor"`
	TargetDistance float64        `json:"target_distance"`
	TimeBudget     time.Duration  `json:"time_budget"`
}

// DefaultProfiles returns the built-in strength presets.
// Higher strength means a looser perturbation budget and more iterations,
// trading visible artifacting and compute for disruption.
func DefaultProfiles() map[types.Strength]Profile {
	return map[types.Strength]Profile{
		types.StrengthSubtle: {
			Strength:       types.StrengthSubtle,
			Epsilon:        4.0 / 255.0,
			Steps:          5,
			StepFactor:     1.5,
			TargetDistance: 0.05,
			TimeBudget:     10 * time.Second,
		},
		types.StrengthStandard: {
			Strength:       types.StrengthStandard,
			Epsilon:        8.0 / 255.0,
			Steps:          10,
			StepFactor:     1.0,
			TargetDistance: 0.10,
			TimeBudget:     20 * time.Second,
		},
		types.StrengthMaximum: {
			Strength:       types.StrengthMaximum,
			Epsilon:        16.0 / 255.0,
			Steps:          20,
			StepFactor:     0.8,
			TargetDistance: 0.20,
			TimeBudget:     45 * time.Second,
		},
	}
}

// ProfileFor looks up the built-in profile for a strength level
func ProfileFor(s types.Strength) (Profile, error) {
	p, ok := DefaultProfiles()[s]
	if !ok {
		return Profile{}, fmt.Errorf("no profile for strength %q", s)
	}
	return p, nil
}

// Validate checks profile parameters
func (p Profile) Validate() error {
	if p.Epsilon <= 0 || p.Epsilon > 0.5 {
		return fmt.Errorf("profile %s: epsilon must be in (0, 0.5]", p.Strength)
	}
	if p.Steps < 1 {
		return fmt.Errorf("profile %s: steps must be positive", p.Strength)
	}
	if p.StepFactor <= 0 {
		return fmt.Errorf("profile %s: step factor must be positive", p.Strength)
	}
	if p.TargetDistance < 0 || p.TargetDistance > 1 {
		return fmt.Errorf("profile %s: target distance must be in [0, 1]", p.Strength)
	}
	if p.TimeBudget <= 0 {
		return fmt.Errorf("profile %s: time budget must be positive", p.Strength)
	}
	return nil
}
