package performance

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

type GradeBand struct {
	Grade string  `yaml:"grade" json:"grade"`
	Min   float64 `yaml:"min" json:"min"`
}

// Policy holds the tunable scoring constants.
type Policy struct {
	TaskRatingMax   float64 `yaml:"taskRatingMax"`
	CompletionMax   float64 `yaml:"completionMax"`
	ConsistencyMax  float64 `yaml:"consistencyMax"`
	DisciplinaryMax float64 `yaml:"disciplinaryMax"`
	// ConsistencyExponent shapes on-time rate into the consistency score;
	// values above 1 reward near-perfect punctuality more steeply.
	ConsistencyExponent float64 `yaml:"consistencyExponent"`
	// WarningPenalty is subtracted from DisciplinaryMax per warning.
	WarningPenalty float64     `yaml:"warningPenalty"`
	Grades         []GradeBand `yaml:"grades"`
}

func DefaultPolicy() Policy {
	return Policy{
		TaskRatingMax:       40,
		CompletionMax:       25,
		ConsistencyMax:      20,
		DisciplinaryMax:     15,
		ConsistencyExponent: 1,
		WarningPenalty:      5,
		Grades: []GradeBand{
			{Grade: GradeA, Min: 90},
			{Grade: GradeB, Min: 80},
			{Grade: GradeC, Min: 70},
			{Grade: GradeD, Min: 60},
		},
	}
}

// LoadPolicy reads a YAML policy file over the defaults. An empty path
// returns the defaults.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read score policy: %w", err)
	}
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return Policy{}, fmt.Errorf("parse score policy: %w", err)
	}
	if err := policy.Validate(); err != nil {
		return Policy{}, fmt.Errorf("score policy %s: %w", path, err)
	}
	return policy, nil
}

func (p Policy) Validate() error {
	for name, value := range map[string]float64{
		"taskRatingMax":   p.TaskRatingMax,
		"completionMax":   p.CompletionMax,
		"consistencyMax":  p.ConsistencyMax,
		"disciplinaryMax": p.DisciplinaryMax,
	} {
		if value < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if sum := p.TaskRatingMax + p.CompletionMax + p.ConsistencyMax + p.DisciplinaryMax; math.Abs(sum-100) > 1e-9 {
		return fmt.Errorf("component maxima must sum to 100, got %.2f", sum)
	}
	if p.ConsistencyExponent <= 0 {
		return fmt.Errorf("consistencyExponent must be positive")
	}
	if p.WarningPenalty < 0 {
		return fmt.Errorf("warningPenalty must not be negative")
	}
	if len(p.Grades) == 0 {
		return fmt.Errorf("at least one grade band is required")
	}
	seen := map[string]bool{}
	for i, band := range p.Grades {
		switch band.Grade {
		case GradeA, GradeB, GradeC, GradeD:
		default:
			return fmt.Errorf("grade %q must be one of A, B, C, D (F is the fallback)", band.Grade)
		}
		if seen[band.Grade] {
			return fmt.Errorf("grade %s listed twice", band.Grade)
		}
		seen[band.Grade] = true
		if band.Min <= 0 || band.Min > 100 {
			return fmt.Errorf("grade %s minimum must be in (0, 100]", band.Grade)
		}
		if i > 0 && band.Min >= p.Grades[i-1].Min {
			return fmt.Errorf("grade minimums must be strictly descending")
		}
	}
	return nil
}

// Grade bands a total; anything below the last band is F.
func (p Policy) Grade(total float64) string {
	for _, band := range p.Grades {
		if total >= band.Min {
			return band.Grade
		}
	}
	return GradeF
}
