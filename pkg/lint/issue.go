package lint

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// Severity of an issue. Warnings only fail a strict run.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rule names.
const (
	RuleFrontMatterSyntax   = "frontmatter-syntax"
	RuleFrontMatterRequired = "frontmatter-required"
	RuleRoundTrip           = "round-trip"
	RuleFormat              = "format"
	RuleNameFormat          = "name-format"
	RuleDuplicateName       = "duplicate-name"
	RuleTemplateMissing     = "template-missing"
	RuleTemplateOrder       = "template-order"
	RuleTriggerSyntax       = "trigger-syntax"
)

// Issue is a single finding.
type Issue struct {
	Path     string   `json:"path"`
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	// Diff is a unified diff against the canonical form, for format issues.
	Diff string `json:"diff,omitempty"`
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s: [%s] %s", i.Path, i.Rule, i.Message)
}

// Report collects the issues of a lint run.
type Report struct {
	Files  []string `json:"files"`
	Issues []Issue  `json:"issues"`
}

func (r *Report) add(path, rule string, severity Severity, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		Path:     path,
		Rule:     rule,
		Severity: severity,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Count returns the number of errors and warnings.
func (r *Report) Count() (errs, warnings int) {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			errs++
		} else {
			warnings++
		}
	}
	return errs, warnings
}

// Err returns every error issue combined, plus the warnings when strict is
// set. It is nil for a clean report.
func (r *Report) Err(strict bool) error {
	var result *multierror.Error
	for _, i := range r.Issues {
		if i.Severity == SeverityError || strict {
			result = multierror.Append(result, i)
		}
	}
	return result.ErrorOrNil()
}

func (r *Report) sort() {
	sort.SliceStable(r.Issues, func(a, b int) bool {
		return r.Issues[a].Path < r.Issues[b].Path
	})
}
