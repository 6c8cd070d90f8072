package repair

import (
	"errors"
	"fmt"
)

// ErrUnknownDangerLevel means the model ignored the schema enum.
var ErrUnknownDangerLevel = errors.New("repair: unknown danger level")

// Anomaly is a semantic rule the model broke. Anomalies are tolerated.
type Anomaly string

const (
	AnomalyHighDangerSteps     Anomaly = "high_danger_with_steps"
	AnomalyHighDangerNoReferal Anomaly = "high_danger_without_referral"
	AnomalyHighDangerNoWarning Anomaly = "high_danger_without_warning"
	AnomalyConfidenceClamped   Anomaly = "confidence_out_of_range"
)

// Normalize runs after every model response. Structural violations return an
// error; semantic ones are reported and left in place for the consumer.
func Normalize(a *Analysis) ([]Anomaly, error) {
	if a == nil {
		return nil, errors.New("repair: nil analysis")
	}
	switch a.DangerLevel {
	case DangerLow, DangerHigh:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDangerLevel, a.DangerLevel)
	}

	var out []Anomaly
	if a.ConfidenceScore < 0 || a.ConfidenceScore > 100 {
		out = append(out, AnomalyConfidenceClamped)
		a.ConfidenceScore = min(max(a.ConfidenceScore, 0), 100)
	}
	if a.Steps == nil {
		a.Steps = []string{}
	}
	if a.ToolsRequired == nil {
		a.ToolsRequired = []string{}
	}
	if a.IsHighDanger() {
		if len(a.Steps) > 0 {
			out = append(out, AnomalyHighDangerSteps)
		}
		if a.ProfessionalReferral == "" {
			out = append(out, AnomalyHighDangerNoReferal)
		}
		if a.SafetyWarning == "" {
			out = append(out, AnomalyHighDangerNoWarning)
		}
	}
	return out, nil
}
