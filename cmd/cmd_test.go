package cmd

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/helmcode/diag-analyzer/pkg/config"
	"github.com/helmcode/diag-analyzer/pkg/export"
)

type fakeBackend struct {
	paths  []string
	report map[string]any
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.paths = append(b.paths, r.URL.Path)
	switch r.URL.Path {
	case "/analyze":
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"analysis_data": map[string]any{
				"logAnalysis":      "Repeated NPE",
				"customerProblem":  "NPE on login",
				"problemThreads":   []string{"exec-1"},
				"suspectedClasses": []map[string]any{{"class": "com.foo.Bar", "package": "com.foo"}},
			},
		})
	case "/download_report":
		_ = json.NewDecoder(r.Body).Decode(&b.report)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, "%PDF-1.4")
	default:
		http.NotFound(w, r)
	}
}

func withBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	prevCfg, prevLogger := cfg, logger
	cfg = config.Default()
	cfg.BackendURL = srv.URL
	logger = zaptest.NewLogger(t)
	t.Cleanup(func() { cfg, logger = prevCfg, prevLogger })
	return b
}

func testCommand() *cobra.Command {
	c := &cobra.Command{}
	c.SetContext(context.Background())
	return c
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestReadResults(t *testing.T) {
	dir := t.TempDir()

	got, err := readResults(writeFile(t, dir, "r.json", `{"customer_problem": "x", "class_analysis": null}`))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "x", got.CustomerProblem)
	assert.Nil(t, got.ClassAnalysis)

	got, err = readResults(writeFile(t, dir, "r.yaml", "customer_problem: y\nclass_analysis: deep dive\n"))
	require.NoError(t, err)
	assert.Equal(t, "deep dive", *got.ClassAnalysis)

	got, err = readResults(writeFile(t, dir, "empty.json", `{}`))
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = readResults(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "read results")
}

func TestRunReport(t *testing.T) {
	b := withBackend(t)
	dir := t.TempDir()
	reportInput = writeFile(t, dir, "results.json", `{"customer_problem": "NPE on login", "log_analysis": "Repeated NPE", "class_analysis": null}`)
	reportOut = dir
	t.Cleanup(func() { reportInput, reportOut = "", "" })

	require.NoError(t, runReport(testCommand(), nil))

	content, err := os.ReadFile(filepath.Join(dir, export.DefaultFileName))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(content))
	assert.Equal(t, "NPE on login", b.report["customer_problem"])
	assert.Contains(t, b.report, "class_analysis")
}

func TestRunReportWithoutResults(t *testing.T) {
	b := withBackend(t)
	reportInput = writeFile(t, t.TempDir(), "results.json", `{}`)
	t.Cleanup(func() { reportInput = "" })

	require.NoError(t, runReport(testCommand(), nil))
	assert.Empty(t, b.paths, "no request without results")
}

func TestRunAnalyzeSkipClassesWithReport(t *testing.T) {
	b := withBackend(t)
	dir := t.TempDir()
	analyzeFiles = []string{
		writeFile(t, dir, "threaddump1.txt", "\"main\" RUNNABLE"),
		writeFile(t, dir, "log.txt", "ERROR NPE"),
	}
	analyzeSkipClasses = true
	analyzeOutput = "json"
	analyzeReport = dir
	t.Cleanup(func() {
		analyzeFiles, analyzeSkipClasses, analyzeOutput, analyzeReport = nil, false, "human", ""
	})

	require.NoError(t, runAnalyze(testCommand(), []string{"NPE on login"}))

	assert.Equal(t, []string{"/analyze", "/download_report"}, b.paths)
	assert.Nil(t, b.report["class_analysis"])
	assert.Equal(t, "Repeated NPE", b.report["log_analysis"])
	assert.FileExists(t, filepath.Join(dir, export.DefaultFileName))
}

func TestRunAnalyzeBlockedBeforeUpload(t *testing.T) {
	b := withBackend(t)
	analyzeFiles = []string{writeFile(t, t.TempDir(), "log.txt", "ERROR NPE")}
	t.Cleanup(func() { analyzeFiles = nil })

	err := runAnalyze(testCommand(), []string{"NPE on login"})
	assert.ErrorIs(t, err, errSubmissionBlocked)
	assert.Empty(t, b.paths)
}

func TestRunValidate(t *testing.T) {
	dir := t.TempDir()
	dump := writeFile(t, dir, "ThreadDump-1.txt", "dump")
	log := writeFile(t, dir, "log.txt", "log")
	assert.NoError(t, runValidate(NewValidateCmd(), []string{dump, log}))
	assert.ErrorIs(t, runValidate(NewValidateCmd(), []string{log}), errSubmissionBlocked)
}
