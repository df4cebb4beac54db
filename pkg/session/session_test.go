package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmcode/diag-analyzer/pkg/model"
)

func TestTakeAnalysisDataMovesPayload(t *testing.T) {
	data := &model.AnalysisData{CustomerProblem: "NPE on login"}
	s := WithAnalysisData(data)
	require.True(t, s.HasAnalysisData())
	require.False(t, s.HasResult())

	got, err := s.TakeAnalysisData()
	require.NoError(t, err)
	assert.Same(t, data, got)
	assert.True(t, s.Empty())

	_, err = s.TakeAnalysisData()
	assert.ErrorIs(t, err, ErrMissingState)
}

func TestTakeResultMovesPayload(t *testing.T) {
	result := &model.AnalysisResult{LogAnalysis: "timeouts"}
	s := WithResult(result)

	_, err := s.TakeAnalysisData()
	require.ErrorIs(t, err, ErrMissingState, "a results session carries no analysis data")

	got, err := s.TakeResult()
	require.NoError(t, err)
	assert.Same(t, result, got)

	_, err = s.TakeResult()
	assert.ErrorIs(t, err, ErrMissingState)
}

func TestNilPayloadIsMissing(t *testing.T) {
	s := WithResult(nil)
	assert.True(t, s.Empty())

	_, err := s.TakeResult()
	assert.ErrorIs(t, err, ErrMissingState)
}

func TestNilSession(t *testing.T) {
	var s *Session
	assert.True(t, s.Empty())
	assert.Equal(t, uuid.Nil, s.ID())

	_, err := s.TakeAnalysisData()
	assert.ErrorIs(t, err, ErrMissingState)
	_, err = s.TakeResult()
	assert.ErrorIs(t, err, ErrMissingState)
}

func TestSessionsHaveDistinctIDs(t *testing.T) {
	a := WithResult(&model.AnalysisResult{})
	b := WithResult(&model.AnalysisResult{})
	assert.NotEqual(t, uuid.Nil, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}
