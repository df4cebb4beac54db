package model

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	dump := filepath.Join(dir, "threaddump1.txt")
	log := filepath.Join(dir, "log.txt")
	require.NoError(t, os.WriteFile(dump, []byte("dump"), 0o600))
	require.NoError(t, os.WriteFile(log, []byte("log"), 0o600))

	files, err := LoadFiles(dump, log)
	require.NoError(t, err)
	assert.Equal(t, []string{"threaddump1.txt", "log.txt"}, FileNames(files))
	assert.Equal(t, "dump", string(files[0].Content))

	_, err = LoadFiles(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewClassAnalysisRequestDoesNotAlias(t *testing.T) {
	data := &AnalysisData{
		ProblemThreads:   []string{"exec-1"},
		SuspectedClasses: []SuspectedClass{{Class: "com.foo.Bar"}},
		ErrorMessage:     "boom",
	}
	selected := []string{"com.foo.Bar"}

	req := NewClassAnalysisRequest(selected, data)
	req.ProblemThreads[0] = "changed"
	req.SelectedClasses[0] = "changed"

	assert.Equal(t, "exec-1", data.ProblemThreads[0])
	assert.Equal(t, "com.foo.Bar", selected[0])
	assert.Equal(t, "boom", req.ErrorMessage)
}

func TestReportRequestEncodesNullClassAnalysis(t *testing.T) {
	r := &AnalysisResult{CustomerProblem: "x", ProblemThreads: []string{"exec-1"}}
	raw, err := json.Marshal(r.ReportRequest())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"log_analysis": "",
		"comprehensive_thread_analysis": "",
		"customer_problem": "x",
		"class_analysis": null
	}`, string(raw))
}

func TestIsZero(t *testing.T) {
	assert.True(t, (&AnalysisResult{}).IsZero())
	assert.False(t, (&AnalysisResult{CustomerProblem: "x"}).IsZero())
	empty := ""
	assert.False(t, (&AnalysisResult{ClassAnalysis: &empty}).IsZero())
}

func TestClassNames(t *testing.T) {
	d := &AnalysisData{SuspectedClasses: []SuspectedClass{{Class: "b"}, {Class: "a"}}}
	assert.Equal(t, []string{"b", "a"}, d.ClassNames())
}
