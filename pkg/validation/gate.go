package validation

import (
	"errors"
	"regexp"

	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/helmcode/diag-analyzer/pkg/model"
	"github.com/helmcode/diag-analyzer/pkg/selection"
)

// LogFileName is the exact name the backend reads log content from.
const LogFileName = "log.txt"

var threadDumpPattern = regexp.MustCompile(`(?i)^threaddump`)

// Warnings reports which naming-policy checks a file set fails.
type Warnings struct {
	NoThreadDump bool `json:"no_thread_dump"`
	NoLogFile    bool `json:"no_log_file"`
}

// OK reports whether the file set satisfies the naming policy.
func (w Warnings) OK() bool {
	return !w.NoThreadDump && !w.NoLogFile
}

// Messages returns the user-visible text for every raised warning.
func (w Warnings) Messages() []string {
	var msgs []string
	if w.NoThreadDump {
		msgs = append(msgs, "no thread dump found: at least one file name must start with \"threaddump\"")
	}
	if w.NoLogFile {
		msgs = append(msgs, "no log file found: one file must be named \""+LogFileName+"\"")
	}
	return msgs
}

// Validate checks files against the naming policy. It is pure; call it again
// whenever the file set changes.
func Validate(files []model.UploadedFile) Warnings {
	w := Warnings{NoThreadDump: true, NoLogFile: true}
	for _, f := range files {
		if threadDumpPattern.MatchString(f.Name) {
			w.NoThreadDump = false
		}
		if f.Name == LogFileName {
			w.NoLogFile = false
		}
	}
	return w
}

// ValidationError blocks an action until the user corrects the input.
type ValidationError struct {
	Errs field.ErrorList
}

func (e *ValidationError) Error() string {
	return e.Errs.ToAggregate().Error()
}

// Details returns one message per violated rule.
func (e *ValidationError) Details() []string {
	out := make([]string, 0, len(e.Errs))
	for _, fe := range e.Errs {
		out = append(out, fe.ErrorBody())
	}
	return out
}

// IsValidationError reports whether err is, or wraps, a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CheckSubmission gates the entry stage. It returns nil only when the problem
// text is non-empty, files is non-empty and the naming policy holds. Any
// non-empty problem text is accepted, whitespace included.
func CheckSubmission(problem string, files []model.UploadedFile) error {
	var errs field.ErrorList

	if problem == "" {
		errs = append(errs, field.Required(field.NewPath("customer_problem"), "please enter the customer problem description"))
	}

	filesPath := field.NewPath("diagnostic_files")
	if len(files) == 0 {
		errs = append(errs, field.Required(filesPath, "please upload at least one diagnostic file"))
	} else {
		for _, msg := range Validate(files).Messages() {
			errs = append(errs, field.Required(filesPath, msg))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Errs: errs}
}

// CheckSelection gates the "analyze selected" action.
func CheckSelection(state selection.State) error {
	if state.Len() > 0 {
		return nil
	}
	return &ValidationError{Errs: field.ErrorList{
		field.Required(field.NewPath("selected_classes"), "please select at least one class to analyze, or skip class analysis"),
	}}
}
