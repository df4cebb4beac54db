package workflow

import (
	"slices"

	"github.com/helmcode/diag-analyzer/pkg/model"
)

// Skip builds the results for a run that bypasses class analysis. It makes no
// network call: ClassAnalysis is nil and every other field is copied from data.
func Skip(data *model.AnalysisData) *model.AnalysisResult {
	return &model.AnalysisResult{
		ClassAnalysis:               nil,
		LogAnalysis:                 data.LogAnalysis,
		ComprehensiveThreadAnalysis: data.ComprehensiveThreadAnalysis,
		CustomerProblem:             data.CustomerProblem,
		ProblemThreads:              slices.Clone(data.ProblemThreads),
		ThreadAnalysis:              data.ThreadAnalysis,
		SuspectedClasses:            slices.Clone(data.SuspectedClasses),
	}
}
