package export

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmcode/diag-analyzer/pkg/model"
)

type fakeSource struct {
	body   string
	err    error
	readFn func([]byte) (int, error)

	got    model.ReportRequest
	closed bool
}

func (f *fakeSource) RequestReport(_ context.Context, req model.ReportRequest) (io.ReadCloser, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	var r io.Reader = strings.NewReader(f.body)
	if f.readFn != nil {
		r = readerFunc(f.readFn)
	}
	return &trackedBody{Reader: r, closed: &f.closed}, nil
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

type trackedBody struct {
	io.Reader
	closed *bool
}

func (b *trackedBody) Close() error {
	*b.closed = true
	return nil
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestExportToDirectory(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{body: "%PDF-1.4 data"}
	analysis := "null session"

	path, err := New(src).Export(context.Background(), model.ReportRequest{
		CustomerProblem: "NPE on login",
		ClassAnalysis:   &analysis,
	}, dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, DefaultFileName), path)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 data", string(content))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), fi.Mode().Perm())

	assert.True(t, src.closed, "response body must be released")
	assert.Equal(t, "NPE on login", src.got.CustomerProblem)
	assert.Equal(t, []string{DefaultFileName}, listDir(t, dir))
}

func TestExportToFileReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "case-1234.pdf")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0o600))

	path, err := New(&fakeSource{body: "new"}).Export(context.Background(), model.ReportRequest{}, dest)
	require.NoError(t, err)
	assert.Equal(t, dest, path)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))
}

func TestExportCustomFileName(t *testing.T) {
	dir := t.TempDir()
	path, err := New(&fakeSource{body: "pdf"}, WithFileName("custom.pdf")).Export(context.Background(), model.ReportRequest{}, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "custom.pdf"), path)
}

func TestExportFailuresLeaveNothingBehind(t *testing.T) {
	readErr := errors.New("connection reset")
	cases := []struct {
		name    string
		src     *fakeSource
		wantErr string
	}{
		{"source error", &fakeSource{err: errors.New("report export failed (status 500)")}, "status 500"},
		{"empty body", &fakeSource{}, "empty response"},
		{"read error", &fakeSource{readFn: func([]byte) (int, error) { return 0, readErr }}, "connection reset"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			dest := filepath.Join(dir, "report.pdf")
			require.NoError(t, os.WriteFile(dest, []byte("previous"), 0o644))

			_, err := New(tc.src).Export(context.Background(), model.ReportRequest{}, dest)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)

			assert.Equal(t, []string{"report.pdf"}, listDir(t, dir), "no partial file may remain")
			content, err := os.ReadFile(dest)
			require.NoError(t, err)
			assert.Equal(t, "previous", string(content))

			if tc.src.err == nil {
				assert.True(t, tc.src.closed)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	e := New(&fakeSource{})

	assert.Equal(t, DefaultFileName, e.Resolve(""))
	assert.Equal(t, filepath.Join(dir, DefaultFileName), e.Resolve(dir))
	assert.Equal(t, filepath.Join(dir, "x.pdf"), e.Resolve(filepath.Join(dir, "x.pdf")))
}
