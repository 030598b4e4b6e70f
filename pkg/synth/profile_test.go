package synth

import (
	"testing"
	"time"

	"github.com/ivxni/VOiD/pkg/types"
)

func TestDefaultProfilesOrdering(t *testing.T) {
	profiles := DefaultProfiles()

	subtle := profiles[types.StrengthSubtle]
	standard := profiles[types.StrengthStandard]
	maximum := profiles[types.StrengthMaximum]

	// Stronger levels must allow strictly more perturbation and effort.
	if !(subtle.Epsilon < standard.Epsilon && standard.Epsilon < maximum.Epsilon) {
		t.Errorf("epsilon not increasing: %v %v %v", subtle.Epsilon, standard.Epsilon, maximum.Epsilon)
	}
	if !(subtle.Steps < standard.Steps && standard.Steps < maximum.Steps) {
		t.Errorf("steps not increasing: %d %d %d", subtle.Steps, standard.Steps, maximum.Steps)
	}
	if !(subtle.TargetDistance < standard.TargetDistance && standard.TargetDistance < maximum.TargetDistance) {
		t.Errorf("target distance not increasing")
	}
	if !(subtle.TimeBudget < standard.TimeBudget && standard.TimeBudget < maximum.TimeBudget) {
		t.Errorf("time budget not increasing")
	}

	for strength, p := range profiles {
		if err := p.Validate(); err != nil {
			t.Errorf("built-in profile %s invalid: %v", strength, err)
		}
		if p.Strength != strength {
			t.Errorf("profile keyed %s carries strength %s", strength, p.Strength)
		}
	}
}

func TestProfileFor(t *testing.T) {
	if _, err := ProfileFor(types.StrengthStandard); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ProfileFor(types.Strength("extreme")); err == nil {
		t.Fatal("expected error for unknown strength")
	}
}

func TestProfileValidate(t *testing.T) {
	valid := Profile{
		Strength:       types.StrengthStandard,
		Epsilon:        8.0 / 255.0,
		Steps:          10,
		StepFactor:     1.0,
		TargetDistance: 0.1,
		TimeBudget:     time.Second,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid profile rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"zero epsilon", func(p *Profile) { p.Epsilon = 0 }},
		{"epsilon above half", func(p *Profile) { p.Epsilon = 0.6 }},
		{"zero steps", func(p *Profile) { p.Steps = 0 }},
		{"negative step factor", func(p *Profile) { p.StepFactor = -1 }},
		{"target above one", func(p *Profile) { p.TargetDistance = 1.5 }},
		{"zero budget", func(p *Profile) { p.TimeBudget = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
