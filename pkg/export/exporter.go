package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/helmcode/diag-analyzer/pkg/model"
)

// DefaultFileName is the name the backend suggests for the report attachment.
const DefaultFileName = "final_diagnostic_report.pdf"

// ReportSource produces the binary report for a results payload.
type ReportSource interface {
	RequestReport(ctx context.Context, req model.ReportRequest) (io.ReadCloser, error)
}

// Exporter saves reports to disk.
type Exporter struct {
	source   ReportSource
	fileName string
	logger   *zap.Logger
}

type Option func(*Exporter)

// WithFileName overrides the file name used when the destination is a directory.
func WithFileName(name string) Option {
	return func(e *Exporter) {
		if name != "" {
			e.fileName = name
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

func New(source ReportSource, opts ...Option) *Exporter {
	e := &Exporter{source: source, fileName: DefaultFileName, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve returns the file path a report for dest would be written to.
// An empty dest means the working directory.
func (e *Exporter) Resolve(dest string) string {
	if dest == "" {
		return e.fileName
	}
	if fi, err := os.Stat(dest); err == nil && fi.IsDir() {
		return filepath.Join(dest, e.fileName)
	}
	return dest
}

// Export requests the report for req and saves it at dest, returning the
// path written. The report is staged in a temporary file beside the target
// that is always released before Export returns; the target is replaced
// only once the download is complete.
func (e *Exporter) Export(ctx context.Context, req model.ReportRequest, dest string) (path string, err error) {
	path = e.Resolve(dest)

	body, err := e.source.RequestReport(ctx, req)
	if err != nil {
		return "", err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		if err != nil {
			if rmErr := os.Remove(tmp.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				e.logger.Warn("failed to remove partial report", zap.String("file", tmp.Name()), zap.Error(rmErr))
			}
		}
	}()

	n, err := io.Copy(tmp, body)
	if err != nil {
		return "", fmt.Errorf("download report: %w", err)
	}
	if n == 0 {
		err = errors.New("download report: empty response")
		return "", err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}

	e.logger.Info("report saved", zap.String("path", path), zap.Int64("bytes", n))
	return path, nil
}
