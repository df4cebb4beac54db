package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/helmcode/diag-analyzer/pkg/model"
	"github.com/helmcode/diag-analyzer/pkg/parser"
	"github.com/helmcode/diag-analyzer/pkg/selection"
	"github.com/helmcode/diag-analyzer/pkg/session"
	"github.com/helmcode/diag-analyzer/pkg/validation"
)

// Stage is a phase of the workflow.
type Stage int

const (
	Entry Stage = iota
	ClassSelection
	Results
)

func (s Stage) String() string {
	switch s {
	case Entry:
		return "entry"
	case ClassSelection:
		return "class_selection"
	case Results:
		return "results"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

var (
	// ErrMissingState means a stage was entered without its payload. The
	// controller has already redirected to Entry; callers should not report it.
	ErrMissingState = session.ErrMissingState

	// ErrBusy means the triggering action is disabled while a request is in flight.
	ErrBusy = errors.New("workflow: request in progress")

	// ErrWrongStage means the action is not available in the current stage.
	ErrWrongStage = errors.New("workflow: action not available in this stage")

	// ErrAbandoned means the run was restarted while its request was in
	// flight. The response has been dropped.
	ErrAbandoned = errors.New("workflow: run restarted while the request was in flight")
)

// Dispatcher issues the analysis requests.
type Dispatcher interface {
	SubmitInitialAnalysis(ctx context.Context, sub model.DiagnosticSubmission) (parser.InitialOutcome, error)
	SubmitClassAnalysis(ctx context.Context, state selection.State, data *model.AnalysisData) (*model.AnalysisResult, error)
}

// ReportExporter saves the report for a results payload.
type ReportExporter interface {
	Export(ctx context.Context, req model.ReportRequest, dest string) (string, error)
}

// Controller drives one workflow run through Entry, ClassSelection and Results.
type Controller struct {
	dispatcher   Dispatcher
	logger       *zap.Logger
	onTransition func(from, to Stage)

	busy atomic.Bool

	mu      sync.Mutex
	stage   Stage
	gen     uint64
	runID   string
	data    *model.AnalysisData
	reducer *selection.Reducer
	result  *model.AnalysisResult
}

// runToken identifies the run and stage a request was issued from.
type runToken struct {
	gen   uint64
	stage Stage
}

type Option func(*Controller)

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// OnTransition registers fn to be called after every stage change.
func OnTransition(fn func(from, to Stage)) Option {
	return func(c *Controller) { c.onTransition = fn }
}

func New(d Dispatcher, opts ...Option) *Controller {
	c := &Controller{dispatcher: d, logger: zap.NewNop(), stage: Entry}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stage returns the current stage.
func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// Busy reports whether a request is in flight.
func (c *Controller) Busy() bool { return c.busy.Load() }

// Submit validates the entry input and dispatches the initial analysis. A
// validation failure issues no request and leaves the controller in Entry.
func (c *Controller) Submit(ctx context.Context, problem string, files []model.UploadedFile) (Stage, error) {
	if err := c.require(Entry); err != nil {
		return c.Stage(), err
	}
	if err := validation.CheckSubmission(problem, files); err != nil {
		return Entry, err
	}
	if !c.busy.CompareAndSwap(false, true) {
		return Entry, ErrBusy
	}
	defer c.busy.Store(false)
	tok := c.token()
	if tok.stage != Entry {
		return tok.stage, ErrWrongStage
	}

	sub := model.DiagnosticSubmission{CustomerProblem: problem, Files: slices.Clone(files)}
	c.logger.Info("submitting initial analysis",
		zap.Int("files", len(sub.Files)),
		zap.Strings("names", model.FileNames(sub.Files)))

	outcome, err := c.dispatcher.SubmitInitialAnalysis(ctx, sub)
	if err != nil {
		c.logger.Warn("initial analysis failed", zap.Error(err))
		return c.Stage(), err
	}

	switch outcome.Kind {
	case parser.OutcomeClassSelection:
		return c.enterClassSelection(session.WithAnalysisData(outcome.Data), &tok)
	case parser.OutcomeResults:
		return c.enterResults(session.WithResult(outcome.Result), &tok)
	default:
		return c.Stage(), fmt.Errorf("initial analysis: unexpected outcome %s", outcome.Kind)
	}
}

// EnterClassSelection takes the analysis data out of s and opens the
// class-selection stage. Without data it redirects to Entry.
func (c *Controller) EnterClassSelection(s *session.Session) (Stage, error) {
	return c.enterClassSelection(s, nil)
}

func (c *Controller) enterClassSelection(s *session.Session, tok *runToken) (Stage, error) {
	c.mu.Lock()
	if stage, ok := c.currentLocked(tok); !ok {
		c.mu.Unlock()
		c.logger.Debug("dropping response for abandoned run", zap.Stringer("stage", stage))
		return stage, ErrAbandoned
	}
	data, err := s.TakeAnalysisData()
	if err != nil {
		c.mu.Unlock()
		c.redirect("class selection entered without analysis data")
		return Entry, ErrMissingState
	}

	c.data = data
	c.reducer = selection.New(data.SuspectedClasses)
	c.result = nil
	c.runID = s.ID().String()
	from := c.transitionLocked(ClassSelection)
	c.mu.Unlock()

	c.notify(from, ClassSelection)
	return ClassSelection, nil
}

// EnterResults takes the result out of s and opens the results stage.
// Without a result it redirects to Entry.
func (c *Controller) EnterResults(s *session.Session) (Stage, error) {
	return c.enterResults(s, nil)
}

func (c *Controller) enterResults(s *session.Session, tok *runToken) (Stage, error) {
	c.mu.Lock()
	if stage, ok := c.currentLocked(tok); !ok {
		c.mu.Unlock()
		c.logger.Debug("dropping response for abandoned run", zap.Stringer("stage", stage))
		return stage, ErrAbandoned
	}
	result, err := s.TakeResult()
	if err != nil {
		c.mu.Unlock()
		c.redirect("results entered without analysis result")
		return Entry, ErrMissingState
	}

	c.data = nil
	c.reducer = nil
	c.result = result
	c.runID = s.ID().String()
	from := c.transitionLocked(Results)
	c.mu.Unlock()

	c.notify(from, Results)
	return Results, nil
}

// AnalysisData returns the payload of the class-selection stage. It must be
// treated as read-only.
func (c *Controller) AnalysisData() (*model.AnalysisData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stage != ClassSelection {
		return nil, ErrWrongStage
	}
	return c.data, nil
}

// Selection returns the reducer of the class-selection stage.
func (c *Controller) Selection() (*selection.Reducer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stage != ClassSelection {
		return nil, ErrWrongStage
	}
	return c.reducer, nil
}

// AnalyzeSelected dispatches the class analysis for the current selection.
// At least one class must be selected.
func (c *Controller) AnalyzeSelected(ctx context.Context) (Stage, error) {
	c.mu.Lock()
	if c.stage != ClassSelection {
		c.mu.Unlock()
		return c.Stage(), ErrWrongStage
	}
	state := c.reducer.State()
	data := c.data
	tok := c.tokenLocked()
	c.mu.Unlock()

	if err := validation.CheckSelection(state); err != nil {
		return ClassSelection, err
	}
	if !c.busy.CompareAndSwap(false, true) {
		return ClassSelection, ErrBusy
	}
	defer c.busy.Store(false)

	c.logger.Info("submitting class analysis",
		zap.Strings("classes", state.Selected()),
		zap.Bool("select_all", state.SelectAll()))

	result, err := c.dispatcher.SubmitClassAnalysis(ctx, state, data)
	if err != nil {
		c.logger.Warn("class analysis failed", zap.Error(err))
		return c.Stage(), err
	}
	return c.enterResults(session.WithResult(result), &tok)
}

// Skip moves to Results without class analysis.
func (c *Controller) Skip() (Stage, error) {
	if c.busy.Load() {
		return ClassSelection, ErrBusy
	}
	c.mu.Lock()
	if c.stage != ClassSelection {
		c.mu.Unlock()
		return c.Stage(), ErrWrongStage
	}
	data := c.data
	tok := c.tokenLocked()
	c.mu.Unlock()

	c.logger.Info("skipping class analysis")
	return c.enterResults(session.WithResult(Skip(data)), &tok)
}

// Results returns the payload of the results stage. If there is none the
// controller redirects to Entry and returns ErrMissingState.
func (c *Controller) Results() (*model.AnalysisResult, error) {
	c.mu.Lock()
	result := c.result
	stage := c.stage
	c.mu.Unlock()

	if stage != Results || result == nil {
		c.redirect("results requested without analysis result")
		return nil, ErrMissingState
	}
	return result, nil
}

// ExportReport saves the report for the current results. The stage is
// unchanged whether or not the export succeeds.
func (c *Controller) ExportReport(ctx context.Context, exp ReportExporter, dest string) (string, error) {
	result, err := c.Results()
	if err != nil {
		return "", err
	}
	if !c.busy.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	defer c.busy.Store(false)

	path, err := exp.Export(ctx, result.ReportRequest(), dest)
	if err != nil {
		c.logger.Warn("report export failed", zap.Error(err))
		return "", err
	}
	return path, nil
}

// Restart discards the current run and returns to Entry. A response still
// in flight for the discarded run is dropped when it arrives.
func (c *Controller) Restart() {
	c.mu.Lock()
	from := c.resetLocked()
	c.mu.Unlock()
	c.notify(from, Entry)
}

func (c *Controller) token() runToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokenLocked()
}

func (c *Controller) tokenLocked() runToken {
	return runToken{gen: c.gen, stage: c.stage}
}

// currentLocked reports whether tok still names the current run and stage.
// A nil tok always matches.
func (c *Controller) currentLocked(tok *runToken) (Stage, bool) {
	if tok == nil {
		return c.stage, true
	}
	return c.stage, *tok == c.tokenLocked()
}

func (c *Controller) require(s Stage) error {
	if c.Stage() != s {
		return ErrWrongStage
	}
	return nil
}

func (c *Controller) redirect(reason string) {
	c.logger.Debug("redirecting to entry", zap.String("reason", reason))
	c.Restart()
}

func (c *Controller) resetLocked() Stage {
	c.data = nil
	c.reducer = nil
	c.result = nil
	c.runID = ""
	c.gen++
	return c.transitionLocked(Entry)
}

func (c *Controller) transitionLocked(to Stage) Stage {
	from := c.stage
	c.stage = to
	c.logger.Debug("stage transition",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.String("run", c.runID))
	return from
}

func (c *Controller) notify(from, to Stage) {
	if c.onTransition != nil {
		c.onTransition(from, to)
	}
}
