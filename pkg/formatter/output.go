package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/helmcode/diag-analyzer/pkg/model"
	"github.com/helmcode/diag-analyzer/pkg/selection"
)

const lineWidth = 80

// Printer renders workflow payloads for the terminal.
type Printer struct {
	w        io.Writer
	markdown *glamour.TermRenderer
}

type Option func(*Printer)

// WithMarkdown renders analysis bodies as terminal markdown instead of
// plain wrapped text.
func WithMarkdown() Option {
	return func(p *Printer) {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(lineWidth),
		)
		if err == nil {
			p.markdown = r
		}
	}
}

func NewPrinter(w io.Writer, opts ...Option) *Printer {
	p := &Printer{w: w}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Results writes result in the given format (human, json or yaml).
func (p *Printer) Results(result *model.AnalysisResult, format string) error {
	switch format {
	case "json":
		return p.json(result)
	case "yaml":
		return p.yaml(result)
	case "human", "":
		p.humanResults(result)
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (supported: human, json, yaml)", format)
	}
}

// ShowThreadDetail reports whether the thread analysis block is rendered. It
// is omitted only when the backend found no problematic threads and sent no
// thread list at all.
func ShowThreadDetail(result *model.AnalysisResult) bool {
	return !(result.ComprehensiveThreadAnalysis == model.NoProblemThreads && result.ProblemThreads == nil)
}

// ShowComprehensiveThreads reports whether the comprehensive thread analysis is rendered.
func ShowComprehensiveThreads(text string) bool {
	return text != "" && text != model.NoProblemThreads
}

// ShowLogAnalysis reports whether the log analysis is rendered.
func ShowLogAnalysis(text string) bool {
	return text != "" && text != model.NoLogContent
}

func (p *Printer) json(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.w, string(output))
	return err
}

func (p *Printer) yaml(v any) error {
	output, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(p.w, string(output))
	return err
}

func (p *Printer) humanResults(r *model.AnalysisResult) {
	cyan := color.New(color.FgCyan, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	white := color.New(color.FgWhite, color.Bold)

	fmt.Fprintln(p.w)
	cyan.Fprintln(p.w, "📋 ANALYSIS RESULTS")
	fmt.Fprintln(p.w)

	white.Fprintln(p.w, "📝 CUSTOMER PROBLEM:")
	fmt.Fprintf(p.w, "%s\n\n", wrapText(r.CustomerProblem, lineWidth, "   "))

	if ShowThreadDetail(r) {
		yellow.Fprintln(p.w, "🧵 THREAD ANALYSIS:")
		p.body(r.ThreadAnalysis)
	}

	if len(r.ProblemThreads) > 0 {
		yellow.Fprintln(p.w, "⚠️  PROBLEM THREADS:")
		fmt.Fprintf(p.w, "%s\n\n", wrapText(strings.Join(r.ProblemThreads, ", "), lineWidth, "   "))
	}

	if ShowComprehensiveThreads(r.ComprehensiveThreadAnalysis) {
		yellow.Fprintln(p.w, "🔍 COMPREHENSIVE THREAD ANALYSIS:")
		p.body(r.ComprehensiveThreadAnalysis)
	}

	if ShowLogAnalysis(r.LogAnalysis) {
		yellow.Fprintln(p.w, "📄 LOG ANALYSIS:")
		p.body(r.LogAnalysis)
	}

	if r.ClassAnalysis != nil && *r.ClassAnalysis != "" {
		green.Fprintln(p.w, "🧩 CLASS ANALYSIS:")
		p.body(*r.ClassAnalysis)
	}

	fmt.Fprintln(p.w, strings.Repeat("─", lineWidth))
	fmt.Fprintf(p.w, "💡 %s\n", color.HiBlackString("Run with --report to download the full PDF report, or -o json / -o yaml for machine-readable output"))
}

// AnalysisData writes the reports shown before class selection.
func (p *Printer) AnalysisData(d *model.AnalysisData) {
	cyan := color.New(color.FgCyan, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)

	fmt.Fprintln(p.w)
	cyan.Fprintln(p.w, "📋 DIAGNOSTIC ANALYSIS REPORTS")
	fmt.Fprintln(p.w)

	if ShowComprehensiveThreads(d.ComprehensiveThreadAnalysis) {
		yellow.Fprintln(p.w, "🧵 THREAD ANALYSIS:")
		p.body(d.ComprehensiveThreadAnalysis)
	}
	if ShowLogAnalysis(d.LogAnalysis) {
		yellow.Fprintln(p.w, "📄 LOG ANALYSIS:")
		p.body(d.LogAnalysis)
	}
}

// SuspectedClasses writes the selectable classes as a table, marking those in state.
func (p *Printer) SuspectedClasses(classes []model.SuspectedClass, state selection.State) {
	white := color.New(color.FgWhite, color.Bold)
	white.Fprintln(p.w, "🧩 SUSPECTED CLASSES:")

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Selected", "Class", "Package"})
	for i, c := range classes {
		mark := "[ ]"
		if state.Has(c.Class) {
			mark = "[x]"
		}
		t.AppendRow(table.Row{i + 1, mark, c.Class, c.Package})
	}
	fmt.Fprintln(p.w, t.Render())
	fmt.Fprintln(p.w)
}

func (p *Printer) body(text string) {
	if strings.TrimSpace(text) == "" {
		fmt.Fprintf(p.w, "   %s\n\n", color.HiBlackString("(empty)"))
		return
	}
	if p.markdown != nil {
		if out, err := p.markdown.Render(text); err == nil {
			fmt.Fprint(p.w, out)
			return
		}
	}
	fmt.Fprintf(p.w, "%s\n\n", wrapText(text, lineWidth, "   "))
}

func wrapText(text string, width int, indent string) string {
	var result strings.Builder
	lines := strings.Split(text, "\n")

	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 {
			result.WriteString("\n")
			continue
		}

		currentLine := indent
		for _, word := range words {
			if len(currentLine)+len(word)+1 > width {
				result.WriteString(currentLine + "\n")
				currentLine = indent + word
			} else if currentLine == indent {
				currentLine += word
			} else {
				currentLine += " " + word
			}
		}

		if currentLine != indent {
			result.WriteString(currentLine + "\n")
		}
	}

	return strings.TrimSuffix(result.String(), "\n")
}
