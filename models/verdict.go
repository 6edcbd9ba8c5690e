package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"
)

// Decision is the outcome category of a verdict
type Decision string

const (
	DecisionFavorSideA           Decision = "favor_side_a"
	DecisionFavorSideB           Decision = "favor_side_b"
	DecisionSplit                Decision = "split_decision"
	DecisionInsufficientEvidence Decision = "insufficient_evidence"
)

// ParseDecision maps the engine's spelling onto a Decision. Hyphens,
// spaces and case are tolerated ("favor-side-a", "Split Decision").
func ParseDecision(raw string) (Decision, bool) {
	switch Decision(canonicalEnum(raw)) {
	case DecisionFavorSideA:
		return DecisionFavorSideA, true
	case DecisionFavorSideB:
		return DecisionFavorSideB, true
	case DecisionSplit, "split":
		return DecisionSplit, true
	case DecisionInsufficientEvidence:
		return DecisionInsufficientEvidence, true
	}
	return "", false
}

// VerdictChange classifies how an argument response affects the verdict
type VerdictChange string

const (
	VerdictChangeNone        VerdictChange = "none"
	VerdictChangeMinor       VerdictChange = "minor_modification"
	VerdictChangeSignificant VerdictChange = "significant_change"
	VerdictChangeReversal    VerdictChange = "reversal"
)

// ParseVerdictChange maps the engine's spelling onto a VerdictChange.
// Short forms ("minor", "significant") are accepted.
func ParseVerdictChange(raw string) (VerdictChange, bool) {
	switch VerdictChange(canonicalEnum(raw)) {
	case VerdictChangeNone, "":
		return VerdictChangeNone, true
	case VerdictChangeMinor, "minor":
		return VerdictChangeMinor, true
	case VerdictChangeSignificant, "significant":
		return VerdictChangeSignificant, true
	case VerdictChangeReversal:
		return VerdictChangeReversal, true
	}
	return "", false
}

func canonicalEnum(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}

// Verdict is the structured outcome of an adjudication pass
type Verdict struct {
	Decision              Decision  `json:"decision"`
	Reasoning             string    `json:"reasoning"`
	KeyFindings           []string  `json:"keyFindings"`
	LegalPrinciples       []string  `json:"legalPrinciples"`
	Damages               string    `json:"damages"`
	Notes                 string    `json:"notes"`
	Confidence            float64   `json:"confidence"`
	OpenToReconsideration bool      `json:"openToReconsideration"`
	Timestamp             time.Time `json:"timestamp"`
	CaseID                string    `json:"caseId"`
	Country               string    `json:"country"`
	CaseType              CaseType  `json:"caseType"`
	// ArgumentsConsidered is the number of arguments on file when the verdict was rendered
	ArgumentsConsidered int  `json:"argumentsConsidered"`
	Degraded            bool `json:"degraded,omitempty"`
}

// Value implements driver.Valuer for JSONB
func (v Verdict) Value() (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONB
func (v *Verdict) Scan(value interface{}) error {
	bytes, ok := jsonBytes(value)
	if !ok {
		*v = Verdict{}
		return nil
	}
	return json.Unmarshal(bytes, v)
}

func (v Verdict) clone() Verdict {
	out := v
	out.KeyFindings = append([]string{}, v.KeyFindings...)
	out.LegalPrinciples = append([]string{}, v.LegalPrinciples...)
	return out
}

// ClampConfidence bounds a confidence score to [0,1]
func ClampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
