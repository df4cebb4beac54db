package session

import (
	"errors"

	"github.com/google/uuid"

	"github.com/helmcode/diag-analyzer/pkg/model"
)

// ErrMissingState is returned when a stage finds no payload meant for it.
var ErrMissingState = errors.New("session: no payload for this stage")

// Session carries the single in-flight payload from one stage to the next.
// A payload is moved out by Take*; a taken session is empty.
type Session struct {
	id     uuid.UUID
	data   *model.AnalysisData
	result *model.AnalysisResult
}

// WithAnalysisData starts a session handing data to the class-selection stage.
func WithAnalysisData(data *model.AnalysisData) *Session {
	return &Session{id: uuid.New(), data: data}
}

// WithResult starts a session handing result to the results stage.
func WithResult(result *model.AnalysisResult) *Session {
	return &Session{id: uuid.New(), result: result}
}

// ID identifies the workflow run in logs.
func (s *Session) ID() uuid.UUID {
	if s == nil {
		return uuid.Nil
	}
	return s.id
}

// Empty reports whether the payload has been taken or was never set.
func (s *Session) Empty() bool {
	return s == nil || (s.data == nil && s.result == nil)
}

// HasAnalysisData reports whether the session holds analysis data.
func (s *Session) HasAnalysisData() bool {
	return s != nil && s.data != nil
}

// HasResult reports whether the session holds an analysis result.
func (s *Session) HasResult() bool {
	return s != nil && s.result != nil
}

// TakeAnalysisData moves the analysis data out of the session.
func (s *Session) TakeAnalysisData() (*model.AnalysisData, error) {
	if !s.HasAnalysisData() {
		return nil, ErrMissingState
	}
	d := s.data
	s.data = nil
	return d, nil
}

// TakeResult moves the analysis result out of the session.
func (s *Session) TakeResult() (*model.AnalysisResult, error) {
	if !s.HasResult() {
		return nil, ErrMissingState
	}
	r := s.result
	s.result = nil
	return r, nil
}
