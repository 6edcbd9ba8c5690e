package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ArgumentResponse is the reasoning engine's reply to a follow-up argument
type ArgumentResponse struct {
	Response              string        `json:"response"`
	VerdictChange         VerdictChange `json:"verdictChange"`
	NewReasoning          *string       `json:"newReasoning"`
	AddressedPoints       []string      `json:"addressedPoints"`
	RemainingConcerns     []string      `json:"remainingConcerns"`
	LegalCitations        []string      `json:"legalCitations"`
	Confidence            float64       `json:"confidence"`
	RequestsClarification *string       `json:"requestsClarification"`
	Timestamp             time.Time     `json:"timestamp"`
	Side                  Side          `json:"side"`
	OriginalArgument      string        `json:"originalArgument"`
	Degraded              bool          `json:"degraded,omitempty"`
}

// Argument is a follow-up submission from one side after the verdict
type Argument struct {
	ID             string           `json:"id"`
	Side           Side             `json:"side"`
	Argument       string           `json:"argument"`
	AIResponse     ArgumentResponse `json:"aiResponse"`
	Timestamp      time.Time        `json:"timestamp"`
	ArgumentNumber int              `json:"argumentNumber"`
}

func (a Argument) clone() Argument {
	out := a
	r := &out.AIResponse
	if a.AIResponse.NewReasoning != nil {
		s := *a.AIResponse.NewReasoning
		r.NewReasoning = &s
	}
	if a.AIResponse.RequestsClarification != nil {
		s := *a.AIResponse.RequestsClarification
		r.RequestsClarification = &s
	}
	r.AddressedPoints = append([]string{}, a.AIResponse.AddressedPoints...)
	r.RemainingConcerns = append([]string{}, a.AIResponse.RemainingConcerns...)
	r.LegalCitations = append([]string{}, a.AIResponse.LegalCitations...)
	return out
}

// ArgumentList is the chronological argument history stored as JSONB
type ArgumentList []Argument

// Value implements driver.Valuer for JSONB
func (l ArgumentList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONB
func (l *ArgumentList) Scan(value interface{}) error {
	bytes, ok := jsonBytes(value)
	if !ok {
		*l = ArgumentList{}
		return nil
	}
	var out ArgumentList
	if err := json.Unmarshal(bytes, &out); err != nil {
		return err
	}
	if out == nil {
		out = ArgumentList{}
	}
	*l = out
	return nil
}
