package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/helmcode/diag-analyzer/pkg/model"
	"github.com/helmcode/diag-analyzer/pkg/parser"
	"github.com/helmcode/diag-analyzer/pkg/selection"
)

// Backend endpoints.
const (
	AnalyzePath        = "/analyze"
	AnalyzeClassesPath = "/analyze_classes"
	ReportPath         = "/download_report"
)

// DefaultBaseURL is where the analysis backend listens by default.
const DefaultBaseURL = "http://127.0.0.1:8000"

// Operation names used in errors and logs.
const (
	OpInitialAnalysis = "initial analysis"
	OpClassAnalysis   = "class analysis"
	OpReport          = "report export"
)

const maxErrorBody = 64 << 10

// ErrBusy is returned when a call is made while another is still in flight.
var ErrBusy = errors.New("a request is already in progress")

// NetworkError is a non-success status or transport failure. It is terminal
// for the attempt; the client never retries.
type NetworkError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s failed (status %d): %s", e.Op, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s failed (status %d)", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Client issues the three backend operations. At most one request is in
// flight per Client.
type Client struct {
	baseURL  string
	http     *http.Client
	logger   *zap.Logger
	inflight *semaphore.Weighted
}

type Option func(*Client)

// WithHTTPClient replaces the transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets a whole-request timeout. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.http
			hc.Timeout = d
			c.http = &hc
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		http:     &http.Client{},
		logger:   zap.NewNop(),
		inflight: semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string { return c.baseURL }

// SubmitInitialAnalysis uploads the problem and files as multipart form data.
func (c *Client) SubmitInitialAnalysis(ctx context.Context, sub model.DiagnosticSubmission) (parser.InitialOutcome, error) {
	body, contentType, err := encodeSubmission(sub)
	if err != nil {
		return parser.InitialOutcome{}, err
	}

	raw, err := c.roundTrip(ctx, OpInitialAnalysis, AnalyzePath, contentType, body)
	if err != nil {
		return parser.InitialOutcome{}, err
	}

	outcome, err := parser.ParseInitialResponse(raw)
	if err != nil {
		return parser.InitialOutcome{}, &NetworkError{Op: OpInitialAnalysis, Err: err}
	}
	c.logger.Debug("initial analysis decoded", zap.Stringer("outcome", outcome.Kind))
	return outcome, nil
}

// SubmitClassAnalysis asks the backend to analyze the selected classes,
// sending the full prior context along with the selection.
func (c *Client) SubmitClassAnalysis(ctx context.Context, state selection.State, data *model.AnalysisData) (*model.AnalysisResult, error) {
	payload, err := json.Marshal(model.NewClassAnalysisRequest(state.Selected(), data))
	if err != nil {
		return nil, fmt.Errorf("encode class analysis request: %w", err)
	}

	raw, err := c.roundTrip(ctx, OpClassAnalysis, AnalyzeClassesPath, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	result, err := parser.ParseClassResponse(raw)
	if err != nil {
		return nil, &NetworkError{Op: OpClassAnalysis, Err: err}
	}
	return result, nil
}

// RequestReport fetches the PDF report. The caller must close the returned
// body; the in-flight slot is held until it does.
func (c *Client) RequestReport(ctx context.Context, req model.ReportRequest) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode report request: %w", err)
	}
	resp, err := c.send(ctx, OpReport, ReportPath, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) roundTrip(ctx context.Context, op, path, contentType string, body io.Reader) ([]byte, error) {
	resp, err := c.send(ctx, op, path, contentType, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	return raw, nil
}

// send performs one POST. On success the response body releases the
// in-flight slot when closed.
func (c *Client) send(ctx context.Context, op, path, contentType string, body io.Reader) (*http.Response, error) {
	if !c.inflight.TryAcquire(1) {
		return nil, ErrBusy
	}
	release := sync.OnceFunc(func() { c.inflight.Release(1) })

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		release()
		return nil, &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		release()
		c.logger.Warn("request failed", zap.String("op", op), zap.String("path", path), zap.Error(err))
		return nil, &NetworkError{Op: op, Err: err}
	}
	c.logger.Debug("request completed",
		zap.String("op", op),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode/100 != 2 {
		defer release()
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := parser.ErrorMessage(raw)
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return nil, &NetworkError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	resp.Body = &releasingBody{ReadCloser: resp.Body, release: release}
	return resp, nil
}

type releasingBody struct {
	io.ReadCloser
	release func()
}

func (b *releasingBody) Close() error {
	defer b.release()
	return b.ReadCloser.Close()
}

func encodeSubmission(sub model.DiagnosticSubmission) (io.Reader, string, error) {
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)

	if err := w.WriteField("customer_problem", sub.CustomerProblem); err != nil {
		return nil, "", fmt.Errorf("encode customer_problem: %w", err)
	}
	for _, f := range sub.Files {
		part, err := w.CreateFormFile("diagnostic_files", f.Name)
		if err != nil {
			return nil, "", fmt.Errorf("encode %s: %w", f.Name, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", fmt.Errorf("encode %s: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("encode multipart body: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}
