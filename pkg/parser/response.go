package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/helmcode/diag-analyzer/pkg/model"
)

// OutcomeKind tells which stage an initial analysis leads to.
type OutcomeKind int

const (
	OutcomeClassSelection OutcomeKind = iota + 1
	OutcomeResults
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeClassSelection:
		return "class_selection"
	case OutcomeResults:
		return "results"
	default:
		return "unknown"
	}
}

// InitialOutcome is the tagged result of the initial analysis. Exactly one of
// Data or Result is set, matching Kind.
type InitialOutcome struct {
	Kind   OutcomeKind
	Data   *model.AnalysisData
	Result *model.AnalysisResult
}

// ErrNoPayload is returned when a response carries neither analysis_data nor results.
var ErrNoPayload = errors.New("no results in server response")

type envelope struct {
	Success      *bool           `json:"success,omitempty"`
	Error        string          `json:"error,omitempty"`
	AnalysisData json.RawMessage `json:"analysis_data,omitempty"`
	Results      json.RawMessage `json:"results,omitempty"`
}

// ParseInitialResponse decides once, at the API boundary, which payload the
// backend returned. results takes precedence over analysis_data.
func ParseInitialResponse(body []byte) (InitialOutcome, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return InitialOutcome{}, err
	}

	if present(env.Results) {
		result, err := decodeResult(env.Results)
		if err != nil {
			return InitialOutcome{}, err
		}
		return InitialOutcome{Kind: OutcomeResults, Result: result}, nil
	}

	if present(env.AnalysisData) {
		var data model.AnalysisData
		if err := json.Unmarshal(env.AnalysisData, &data); err != nil {
			return InitialOutcome{}, fmt.Errorf("decode analysis_data: %w", err)
		}
		return InitialOutcome{Kind: OutcomeClassSelection, Data: &data}, nil
	}

	return InitialOutcome{}, ErrNoPayload
}

// ParseClassResponse extracts the results of a class analysis.
func ParseClassResponse(body []byte) (*model.AnalysisResult, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	if !present(env.Results) {
		return nil, ErrNoPayload
	}
	return decodeResult(env.Results)
}

// ErrorMessage returns the backend's {"error": "..."} text, or "" if body has none.
func ErrorMessage(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Error
}

func decodeEnvelope(body []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, fmt.Errorf("decode response: %w", err)
	}
	if env.Error != "" {
		return envelope{}, fmt.Errorf("backend error: %s", env.Error)
	}
	return env, nil
}

func decodeResult(raw json.RawMessage) (*model.AnalysisResult, error) {
	var result model.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return &result, nil
}

// present treats a missing key and an explicit null the same way.
func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
