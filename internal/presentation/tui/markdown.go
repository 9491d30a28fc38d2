package tui

import (
	"fmt"
	"strings"

	"github.com/armtemiy/armlab/pkg/domain"
)

// ViewMarkdown formats a wizard view for the terminal.
// Questions list their options numbered from 1.
func ViewMarkdown(v *domain.View) string {
	var sb strings.Builder

	switch {
	case v.Question != nil:
		fmt.Fprintf(&sb, "## %s\n\n", v.Question.Text)
		if v.Question.Helper != "" {
			fmt.Fprintf(&sb, "_%s_\n\n", v.Question.Helper)
		}
		for i, opt := range v.Question.Options {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, opt.Label)
		}
		fmt.Fprintf(&sb, "\nProgress: %d%%\n", int(v.Progress*100))

	case v.Result != nil:
		fmt.Fprintf(&sb, "# %s\n\n", v.Result.Title)
		if v.Result.Diagnosis != "" {
			fmt.Fprintf(&sb, "%s\n\n", v.Result.Diagnosis)
		}
		if len(v.Result.Recommendations) > 0 {
			sb.WriteString("### Рекомендации\n\n")
			for _, rec := range v.Result.Recommendations {
				fmt.Fprintf(&sb, "- %s\n", rec)
			}
			sb.WriteString("\n")
		}
		if v.Result.Locked {
			fmt.Fprintf(&sb, "> ⭐ %s\n\n", v.Result.Teaser)
		}
		if len(v.Route) > 0 {
			sb.WriteString("---\n\n")
			for _, step := range v.Route {
				fmt.Fprintf(&sb, "- **%s** %s\n", step.Question, step.Answer)
			}
		}
	}

	return sb.String()
}
