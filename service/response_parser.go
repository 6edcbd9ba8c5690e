package service

import (
	"bytes"
	"encoding/json"
	"strings"

	"aijudge-backend/models"
)

// ParseOutcome records whether engine output was understood
type ParseOutcome string

const (
	OutcomeStructured ParseOutcome = "structured"
	OutcomeFallback   ParseOutcome = "fallback"
)

// FallbackNotes is attached to verdicts built from unparseable output
const FallbackNotes = "Response could not be parsed into structured format"

const defaultConfidence = 0.5

type rawVerdict struct {
	Decision              string          `json:"decision"`
	Reasoning             string          `json:"reasoning"`
	KeyFindings           []string        `json:"keyFindings"`
	LegalPrinciples       []string        `json:"legalPrinciples"`
	Damages               json.RawMessage `json:"damages"`
	Notes                 json.RawMessage `json:"notes"`
	Confidence            *float64        `json:"confidence"`
	OpenToReconsideration *bool           `json:"openToReconsideration"`
}

type rawArgumentResponse struct {
	Response              string          `json:"response"`
	VerdictChange         string          `json:"verdictChange"`
	NewReasoning          json.RawMessage `json:"newReasoning"`
	AddressedPoints       []string        `json:"addressedPoints"`
	RemainingConcerns     []string        `json:"remainingConcerns"`
	LegalCitations        []string        `json:"legalCitations"`
	Confidence            *float64        `json:"confidence"`
	RequestsClarification json.RawMessage `json:"requestsClarification"`
}

// ParseVerdict extracts a verdict from raw engine output. It never fails:
// output without a usable JSON object yields a degraded verdict carrying
// the raw text as reasoning.
func ParseVerdict(raw string) (models.Verdict, ParseOutcome) {
	obj, ok := extractJSONObject(raw)
	if !ok {
		return fallbackVerdict(raw), OutcomeFallback
	}
	var rv rawVerdict
	if err := json.Unmarshal([]byte(obj), &rv); err != nil {
		return fallbackVerdict(raw), OutcomeFallback
	}
	decision, ok := models.ParseDecision(rv.Decision)
	if !ok {
		return fallbackVerdict(raw), OutcomeFallback
	}

	v := models.Verdict{
		Decision:              decision,
		Reasoning:             strings.TrimSpace(rv.Reasoning),
		KeyFindings:           nonNil(rv.KeyFindings),
		LegalPrinciples:       nonNil(rv.LegalPrinciples),
		Damages:               looseString(rv.Damages),
		Notes:                 looseString(rv.Notes),
		Confidence:            confidence(rv.Confidence),
		OpenToReconsideration: true,
	}
	if rv.OpenToReconsideration != nil {
		v.OpenToReconsideration = *rv.OpenToReconsideration
	}
	return v, OutcomeStructured
}

// ParseArgumentResponse extracts an argument response from raw engine
// output, degrading to the raw text as the response when it cannot.
func ParseArgumentResponse(raw string) (models.ArgumentResponse, ParseOutcome) {
	obj, ok := extractJSONObject(raw)
	if !ok {
		return fallbackArgumentResponse(raw), OutcomeFallback
	}
	var rr rawArgumentResponse
	if err := json.Unmarshal([]byte(obj), &rr); err != nil {
		return fallbackArgumentResponse(raw), OutcomeFallback
	}
	if strings.TrimSpace(rr.Response) == "" {
		return fallbackArgumentResponse(raw), OutcomeFallback
	}

	change, ok := models.ParseVerdictChange(rr.VerdictChange)
	if !ok {
		change = models.VerdictChangeNone
	}
	return models.ArgumentResponse{
		Response:              strings.TrimSpace(rr.Response),
		VerdictChange:         change,
		NewReasoning:          optionalString(rr.NewReasoning),
		AddressedPoints:       nonNil(rr.AddressedPoints),
		RemainingConcerns:     nonNil(rr.RemainingConcerns),
		LegalCitations:        nonNil(rr.LegalCitations),
		Confidence:            confidence(rr.Confidence),
		RequestsClarification: optionalString(rr.RequestsClarification),
	}, OutcomeStructured
}

func fallbackVerdict(raw string) models.Verdict {
	return models.Verdict{
		Decision:              models.DecisionInsufficientEvidence,
		Reasoning:             strings.TrimSpace(raw),
		KeyFindings:           []string{},
		LegalPrinciples:       []string{},
		Notes:                 FallbackNotes,
		Confidence:            defaultConfidence,
		OpenToReconsideration: true,
		Degraded:              true,
	}
}

func fallbackArgumentResponse(raw string) models.ArgumentResponse {
	return models.ArgumentResponse{
		Response:          strings.TrimSpace(raw),
		VerdictChange:     models.VerdictChangeNone,
		AddressedPoints:   []string{},
		RemainingConcerns: []string{},
		LegalCitations:    []string{},
		Confidence:        defaultConfidence,
		Degraded:          true,
	}
}

// extractJSONObject returns the first balanced {...} region of text,
// ignoring braces inside JSON strings.
func extractJSONObject(text string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escape := false
	for i, r := range text {
		if start == -1 {
			if r == '{' {
				start = i
				depth = 1
			}
			continue
		}
		if inString {
			if escape {
				escape = false
				continue
			}
			if r == '\\' {
				escape = true
				continue
			}
			if r == '"' {
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(text[start : i+1]), true
			}
		}
	}
	return "", false
}

func confidence(c *float64) float64 {
	if c == nil {
		return defaultConfidence
	}
	return models.ClampConfidence(*c)
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// looseString renders a JSON value as text: strings as-is, null as empty,
// anything else as compact JSON.
func looseString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// optionalString maps null, false and empty strings to nil
func optionalString(raw json.RawMessage) *string {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("false")) {
		return nil
	}
	s := looseString(raw)
	if s == "" {
		return nil
	}
	return &s
}
