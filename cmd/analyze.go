package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/helmcode/diag-analyzer/pkg/formatter"
	"github.com/helmcode/diag-analyzer/pkg/logging"
	"github.com/helmcode/diag-analyzer/pkg/model"
	"github.com/helmcode/diag-analyzer/pkg/picker"
	"github.com/helmcode/diag-analyzer/pkg/workflow"
)

var (
	analyzeFiles       []string
	analyzeClasses     []string
	analyzeAllClasses  bool
	analyzeSkipClasses bool
	analyzeInteractive bool
	analyzeReport      string
	analyzeOutput      string
	analyzeVerbose     bool
)

var errSubmissionBlocked = errors.New("submission blocked: fix the problems above and try again")

func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze PROBLEM",
		Short: "Analyze diagnostic files for a customer problem",
		Long: `Upload a problem description and diagnostic files to the analysis backend,
optionally pick suspected classes for deeper analysis, and show the consolidated report.

The file set must contain at least one thread dump (a name starting with "threaddump")
and a log file named exactly "log.txt".

Examples:
  # Analyze and pick suspected classes interactively
  diag-analyzer analyze "NPE on login" -f threaddump1.txt -f log.txt

  # Analyze specific classes without prompting
  diag-analyzer analyze "NPE on login" -f threaddump1.txt -f log.txt --classes com.foo.Bar

  # Skip class analysis and save the PDF report
  diag-analyzer analyze "slow responses" -f threaddump1.txt -f log.txt --skip-classes --report ./reports

  # Machine-readable output
  diag-analyzer analyze "high CPU" -f threaddump1.txt -f log.txt --all-classes -o json`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().StringSliceVarP(&analyzeFiles, "file", "f", []string{}, "Diagnostic file to upload (repeatable)")
	cmd.Flags().StringSliceVar(&analyzeClasses, "classes", []string{}, "Suspected classes to analyze (comma separated)")
	cmd.Flags().BoolVar(&analyzeAllClasses, "all-classes", false, "Analyze every suspected class")
	cmd.Flags().BoolVar(&analyzeSkipClasses, "skip-classes", false, "Skip class analysis")
	cmd.Flags().BoolVarP(&analyzeInteractive, "interactive", "i", false, "Pick classes interactively (default when attached to a terminal)")
	cmd.Flags().StringVar(&analyzeReport, "report", "", "Download the PDF report to this file or directory")
	cmd.Flags().StringVarP(&analyzeOutput, "output", "o", "human", "Output format (human, json, yaml)")
	cmd.Flags().BoolVarP(&analyzeVerbose, "verbose", "v", false, "Verbose output")
	cmd.MarkFlagsMutuallyExclusive("classes", "all-classes", "skip-classes")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	problem := args[0]
	ctx := cmd.Context()

	if analyzeVerbose {
		l, err := logging.New("debug", cfg.LogFormat)
		if err != nil {
			return err
		}
		logger = l
	}

	files, err := model.LoadFiles(analyzeFiles...)
	if err != nil {
		return err
	}

	printHeader(problem, files)

	cl := newClient()
	ctrl := workflow.New(cl, workflow.WithLogger(logger.Named("workflow")))

	s := newSpinner(" Running initial analysis...")
	s.Start()
	stage, err := ctrl.Submit(ctx, problem, files)
	s.Stop()
	if err != nil {
		if reportValidation(err) {
			return errSubmissionBlocked
		}
		return err
	}
	printSuccess("Initial analysis complete")

	if stage == workflow.ClassSelection {
		if err := runClassSelection(ctx, ctrl); err != nil {
			return err
		}
	}

	result, err := ctrl.Results()
	if errors.Is(err, workflow.ErrMissingState) {
		logger.Debug("no results to show, back at entry")
		return nil
	}

	if err := newPrinter(analyzeOutput).Results(result, analyzeOutput); err != nil {
		return err
	}

	if analyzeReport != "" {
		return exportReport(ctx, ctrl, newExporter(cl), analyzeReport)
	}
	return nil
}

func runClassSelection(ctx context.Context, ctrl *workflow.Controller) error {
	data, err := ctrl.AnalysisData()
	if err != nil {
		return err
	}
	reducer, err := ctrl.Selection()
	if err != nil {
		return err
	}

	if analyzeOutput == "human" {
		newPrinter(analyzeOutput).AnalysisData(data)
	}
	printSuccess(fmt.Sprintf("Found %d suspected classes", len(data.SuspectedClasses)))

	switch {
	case analyzeSkipClasses:
		return skipClasses(ctrl)

	case len(data.SuspectedClasses) == 0:
		printWarning("No suspected classes to analyze, skipping class analysis")
		return skipClasses(ctrl)

	case analyzeAllClasses:
		reducer.ToggleAll(true)
		return analyzeSelected(ctx, ctrl)

	case len(analyzeClasses) > 0:
		known := make(map[string]bool, len(data.SuspectedClasses))
		for _, name := range data.ClassNames() {
			known[name] = true
		}
		for _, name := range analyzeClasses {
			name = strings.TrimSpace(name)
			if !known[name] {
				printWarning(fmt.Sprintf("%s is not a suspected class, ignoring", name))
				continue
			}
			reducer.ToggleOne(name, true)
		}
		return analyzeSelected(ctx, ctrl)

	case analyzeInteractive || (isTerminal(os.Stdin) && isTerminal(os.Stdout)):
		for {
			action, err := picker.Run(data.SuspectedClasses, reducer)
			if err != nil {
				return err
			}
			switch action {
			case picker.ActionSkip:
				return skipClasses(ctrl)
			case picker.ActionAnalyze:
				err := analyzeSelected(ctx, ctrl)
				if err == nil || ctx.Err() != nil {
					return err
				}
				printError(err.Error())
				printInfo("Adjust the selection and press enter to retry, or s to skip")
			default:
				return errors.New("class selection aborted")
			}
		}

	default:
		newPrinter("human").SuspectedClasses(data.SuspectedClasses, reducer.State())
		return errors.New("class selection required: use --classes, --all-classes, --skip-classes or --interactive")
	}
}

func analyzeSelected(ctx context.Context, ctrl *workflow.Controller) error {
	s := newSpinner(" Analyzing selected classes...")
	s.Start()
	_, err := ctrl.AnalyzeSelected(ctx)
	s.Stop()
	if err != nil {
		if reportValidation(err) {
			return errSubmissionBlocked
		}
		return err
	}
	printSuccess("Class analysis complete")
	return nil
}

func skipClasses(ctrl *workflow.Controller) error {
	if _, err := ctrl.Skip(); err != nil {
		return err
	}
	printSuccess("Skipped class analysis")
	return nil
}

func exportReport(ctx context.Context, ctrl *workflow.Controller, exp workflow.ReportExporter, dest string) error {
	s := newSpinner(" Downloading report...")
	s.Start()
	path, err := ctrl.ExportReport(ctx, exp, dest)
	s.Stop()
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Report saved to %s", path))
	return nil
}

func newPrinter(format string) *formatter.Printer {
	if format == "human" && isTerminal(os.Stdout) {
		return formatter.NewPrinter(os.Stdout, formatter.WithMarkdown())
	}
	return formatter.NewPrinter(os.Stdout)
}

func printHeader(problem string, files []model.UploadedFile) {
	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Fprintln(os.Stderr)
	cyan.Fprintln(os.Stderr, "🔍 Diagnostic Analyzer")
	fmt.Fprintf(os.Stderr, "📝 Problem: %s\n", problem)
	fmt.Fprintf(os.Stderr, "📁 Files: %s\n", strings.Join(model.FileNames(files), ", "))
	fmt.Fprintf(os.Stderr, "🌐 Backend: %s\n", cfg.BackendURL)
	fmt.Fprintln(os.Stderr)
}
