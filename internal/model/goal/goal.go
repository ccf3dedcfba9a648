package goal

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Goal mirrors the backend goal record used as consultation context.
type Goal struct {
	ID           string  `json:"id,omitempty" yaml:"-"`
	GoalType     string  `json:"goal_type" yaml:"goal_type"`
	Title        string  `json:"title" yaml:"title"`
	Description  string  `json:"description,omitempty" yaml:"description"`
	TargetValue  float64 `json:"target_value" yaml:"target_value"`
	TargetUnit   string  `json:"target_unit" yaml:"target_unit"`
	CurrentValue float64 `json:"current_value" yaml:"current_value"`
	StartDate    string  `json:"start_date,omitempty" yaml:"start_date"`
	TargetDate   string  `json:"target_date,omitempty" yaml:"target_date"`
}

// Remaining returns how far the current value is from the target.
func (g Goal) Remaining() float64 {
	return g.CurrentValue - g.TargetValue
}

// FormatValue renders a numeric goal value the way it appears in prose ("165", "72.5").
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Fixture returns the concrete weight-loss goal the probe creates by default.
func Fixture() Goal {
	return Goal{
		GoalType:     "weight",
		Title:        "Lose 15 pounds for summer vacation",
		Description:  "I want to lose weight before my beach trip in July. I've been struggling with portion control and need to get back to regular exercise.",
		TargetValue:  165.0,
		TargetUnit:   "lbs",
		CurrentValue: 180.0,
		StartDate:    "2025-01-20",
		TargetDate:   "2025-07-01",
	}
}

// LoadFixture reads a goal payload from a YAML file.
// Fields missing from the file keep the values of the default fixture.
func LoadFixture(path string) (Goal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Goal{}, fmt.Errorf("read goal fixture: %w", err)
	}

	g := Fixture()
	if err := yaml.Unmarshal(data, &g); err != nil {
		return Goal{}, fmt.Errorf("parse goal fixture %s: %w", path, err)
	}
	if g.Title == "" {
		return Goal{}, fmt.Errorf("goal fixture %s: title is required", path)
	}
	return g, nil
}
