package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/helmcode/diag-analyzer/pkg/model"
	"github.com/helmcode/diag-analyzer/pkg/validation"
)

var (
	validateProblem string
	validateOutput  string
)

type validateReport struct {
	Files    []string            `json:"files" yaml:"files"`
	Warnings validation.Warnings `json:"warnings" yaml:"warnings"`
	Allowed  bool                `json:"submission_allowed" yaml:"submission_allowed"`
	Problems []string            `json:"problems,omitempty" yaml:"problems,omitempty"`
}

func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check a diagnostic file set before uploading it",
		Long: `Check diagnostic files against the upload policy without contacting the backend.

A file set is accepted when at least one file name starts with "threaddump"
(case-insensitive) and one file is named exactly "log.txt".

Examples:
  # Check a file set
  diag-analyzer validate threaddump1.txt log.txt

  # Check the full submission, including the problem description
  diag-analyzer validate threaddump1.txt log.txt --problem "NPE on login"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runValidate,
	}

	cmd.Flags().StringVarP(&validateProblem, "problem", "p", "", "Customer problem description to check as well")
	cmd.Flags().StringVarP(&validateOutput, "output", "o", "human", "Output format (human, json, yaml)")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	files, err := model.LoadFiles(args...)
	if err != nil {
		return err
	}

	report := validateReport{
		Files:    model.FileNames(files),
		Warnings: validation.Validate(files),
	}
	report.Allowed = report.Warnings.OK()

	if cmd.Flags().Changed("problem") {
		if err := validation.CheckSubmission(validateProblem, files); err != nil {
			var ve *validation.ValidationError
			if errors.As(err, &ve) {
				report.Problems = ve.Details()
			}
			report.Allowed = false
		}
	}

	switch validateOutput {
	case "json":
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	case "yaml":
		out, err := yaml.Marshal(report)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
	default:
		printValidateHuman(report)
	}

	if !report.Allowed {
		return errSubmissionBlocked
	}
	return nil
}

func printValidateHuman(r validateReport) {
	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Println()
	cyan.Println("📁 Diagnostic file check")
	for _, name := range r.Files {
		fmt.Printf("   • %s\n", name)
	}
	fmt.Println()

	if r.Warnings.NoThreadDump {
		printWarning("No thread dump file found")
	} else {
		printSuccess("Thread dump present")
	}
	if r.Warnings.NoLogFile {
		printWarning("No log.txt file found")
	} else {
		printSuccess("log.txt present")
	}
	for _, p := range r.Problems {
		printError(p)
	}

	if r.Allowed {
		printSuccess("Submission allowed")
	}
}
