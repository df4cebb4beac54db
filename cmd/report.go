package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/helmcode/diag-analyzer/pkg/model"
	"github.com/helmcode/diag-analyzer/pkg/session"
	"github.com/helmcode/diag-analyzer/pkg/workflow"
)

var (
	reportInput string
	reportOut   string
)

func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Download the PDF report for analysis results",
		Long: `Download the PDF report for results printed by "analyze -o json" or "analyze -o yaml".

Examples:
  # Export a report from saved results
  diag-analyzer analyze "NPE on login" -f threaddump1.txt -f log.txt --skip-classes -o json > results.json
  diag-analyzer report -i results.json --out ./reports`,
		Args: cobra.NoArgs,
		RunE: runReport,
	}

	cmd.Flags().StringVarP(&reportInput, "input", "i", "", "Results document (JSON or YAML)")
	cmd.Flags().StringVar(&reportOut, "out", "", "File or directory to save the report to (default: working directory)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	result, err := readResults(reportInput)
	if err != nil {
		return err
	}

	cl := newClient()
	ctrl := workflow.New(cl, workflow.WithLogger(logger.Named("workflow")))

	if _, err := ctrl.EnterResults(session.WithResult(result)); errors.Is(err, workflow.ErrMissingState) {
		printInfo("No analysis results to export. Start a new run with \"diag-analyzer analyze\".")
		return nil
	}

	return exportReport(cmd.Context(), ctrl, newExporter(cl), reportOut)
}

// readResults decodes a results document. YAML is a superset of JSON, so
// one decoder reads both. An empty document yields nil.
func readResults(path string) (*model.AnalysisResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}

	var result *model.AnalysisResult
	if err := yaml.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parse results %s: %w", path, err)
	}
	if result != nil && result.IsZero() {
		return nil, nil
	}
	return result, nil
}
