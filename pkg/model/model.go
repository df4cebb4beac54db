package model

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// Sentinels the backend returns in place of an empty analysis.
const (
	NoProblemThreads = "Not applicable - no problematic threads identified."
	NoLogContent     = "No log content available for analysis."
)

// UploadedFile is a diagnostic file selected by the user.
type UploadedFile struct {
	Name    string `json:"name"`
	Content []byte `json:"-"`
}

// DiagnosticSubmission is the payload of the entry stage.
type DiagnosticSubmission struct {
	CustomerProblem string
	Files           []UploadedFile
}

// SuspectedClass is a source class the backend flagged as relevant to the problem.
type SuspectedClass struct {
	Class     string `json:"class" yaml:"class"`
	Package   string `json:"package" yaml:"package"`
	IssueLine int    `json:"issue_line,omitempty" yaml:"issue_line,omitempty"`
}

// AnalysisData is returned by the initial analysis when class-level analysis is possible.
// The backend emits these keys in camelCase.
type AnalysisData struct {
	ComprehensiveThreadAnalysis string           `json:"comprehensiveThreadAnalysis" yaml:"comprehensive_thread_analysis"`
	LogAnalysis                 string           `json:"logAnalysis" yaml:"log_analysis"`
	CustomerProblem             string           `json:"customerProblem" yaml:"customer_problem"`
	ErrorMessage                string           `json:"errorMessage" yaml:"error_message"`
	ProblemThreads              []string         `json:"problemThreads" yaml:"problem_threads"`
	ThreadAnalysis              string           `json:"threadAnalysis" yaml:"thread_analysis"`
	SuspectedClasses            []SuspectedClass `json:"suspectedClasses" yaml:"suspected_classes"`
}

// ClassNames returns the suspected class names in backend order.
func (d *AnalysisData) ClassNames() []string {
	names := make([]string, 0, len(d.SuspectedClasses))
	for _, c := range d.SuspectedClasses {
		names = append(names, c.Class)
	}
	return names
}

// AnalysisResult is the terminal payload rendered by the results stage.
type AnalysisResult struct {
	ClassAnalysis               *string          `json:"class_analysis" yaml:"class_analysis"`
	LogAnalysis                 string           `json:"log_analysis" yaml:"log_analysis"`
	ComprehensiveThreadAnalysis string           `json:"comprehensive_thread_analysis" yaml:"comprehensive_thread_analysis"`
	CustomerProblem             string           `json:"customer_problem" yaml:"customer_problem"`
	ProblemThreads              []string         `json:"problem_threads" yaml:"problem_threads"`
	ThreadAnalysis              string           `json:"thread_analysis" yaml:"thread_analysis"`
	SuspectedClasses            []SuspectedClass `json:"suspected_classes,omitempty" yaml:"suspected_classes,omitempty"`
}

// IsZero reports whether r carries no analysis at all.
func (r *AnalysisResult) IsZero() bool {
	return r.ClassAnalysis == nil &&
		r.LogAnalysis == "" &&
		r.ComprehensiveThreadAnalysis == "" &&
		r.CustomerProblem == "" &&
		len(r.ProblemThreads) == 0 &&
		r.ThreadAnalysis == "" &&
		len(r.SuspectedClasses) == 0
}

// ReportRequest returns the subset of r the report endpoint consumes.
func (r *AnalysisResult) ReportRequest() ReportRequest {
	return ReportRequest{
		LogAnalysis:                 r.LogAnalysis,
		ComprehensiveThreadAnalysis: r.ComprehensiveThreadAnalysis,
		CustomerProblem:             r.CustomerProblem,
		ClassAnalysis:               r.ClassAnalysis,
	}
}

// ReportRequest is the body of the report export call.
type ReportRequest struct {
	LogAnalysis                 string  `json:"log_analysis"`
	ComprehensiveThreadAnalysis string  `json:"comprehensive_thread_analysis"`
	CustomerProblem             string  `json:"customer_problem"`
	ClassAnalysis               *string `json:"class_analysis"`
}

// ClassAnalysisRequest is the body of the class analysis call. It carries the
// whole prior context so the backend needs no session storage.
type ClassAnalysisRequest struct {
	SelectedClasses             []string         `json:"selected_classes"`
	SuspectedClasses            []SuspectedClass `json:"suspected_classes"`
	LogAnalysis                 string           `json:"log_analysis"`
	ComprehensiveThreadAnalysis string           `json:"comprehensive_thread_analysis"`
	CustomerProblem             string           `json:"customer_problem"`
	ErrorMessage                string           `json:"error_message"`
	ProblemThreads              []string         `json:"problem_threads"`
	ThreadAnalysis              string           `json:"thread_analysis"`
}

// NewClassAnalysisRequest builds the request for the given selection over data.
func NewClassAnalysisRequest(selected []string, data *AnalysisData) ClassAnalysisRequest {
	return ClassAnalysisRequest{
		SelectedClasses:             slices.Clone(selected),
		SuspectedClasses:            slices.Clone(data.SuspectedClasses),
		LogAnalysis:                 data.LogAnalysis,
		ComprehensiveThreadAnalysis: data.ComprehensiveThreadAnalysis,
		CustomerProblem:             data.CustomerProblem,
		ErrorMessage:                data.ErrorMessage,
		ProblemThreads:              slices.Clone(data.ProblemThreads),
		ThreadAnalysis:              data.ThreadAnalysis,
	}
}

// LoadFiles reads each path into an UploadedFile named after its base name.
func LoadFiles(paths ...string) ([]UploadedFile, error) {
	files := make([]UploadedFile, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read diagnostic file %s: %w", p, err)
		}
		files = append(files, UploadedFile{Name: filepath.Base(p), Content: content})
	}
	return files, nil
}

// FileNames returns the names of files in order.
func FileNames(files []UploadedFile) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names
}
