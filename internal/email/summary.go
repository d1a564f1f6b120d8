// Package email renders run-summary messages for the notifier
// implementations in its subpackages.
package email

import (
	"fmt"
	"html"
	"strings"

	"dupcheck/internal/domain"
	"dupcheck/internal/matcher"
)

// Subject returns the subject line for run.
func Subject(run *domain.CheckRun) string {
	return fmt.Sprintf("Duplicate check: %d duplicate(s) in %s", run.Summary.Duplicates, run.CandidateSource)
}

type line struct {
	label string
	value string
}

func lines(run *domain.CheckRun) []line {
	s := run.Summary
	out := []line{
		{"Run", run.ID.String()},
		{"Reference", run.ReferenceSource},
		{"Candidate", run.CandidateSource},
		{"Checked at", run.CompletedAt.Format("2006-01-02 15:04:05 MST")},
		{"Candidate rows", fmt.Sprint(s.CandidateRows)},
		{"Excluded", fmt.Sprint(s.CandidateExcluded)},
		{"Duplicates", fmt.Sprint(s.Duplicates)},
		{"Unique", fmt.Sprint(s.Unique)},
	}
	for _, t := range matcher.Tiers() {
		if n := s.ByRule[t.Rule]; n > 0 {
			out = append(out, line{"  " + string(t.Rule), fmt.Sprint(n)})
		}
	}
	return out
}

// Text renders the plain-text body.
func Text(run *domain.CheckRun) string {
	var b strings.Builder
	for _, l := range lines(run) {
		fmt.Fprintf(&b, "%s: %s\n", l.label, l.value)
	}
	return b.String()
}

// HTML renders the HTML body.
func HTML(run *domain.CheckRun) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Duplicate check summary</h2>
  <table style="border-collapse: collapse;">
`)
	for _, l := range lines(run) {
		fmt.Fprintf(&b, "    <tr><td style=\"padding: 4px 12px 4px 0; color: #666;\">%s</td><td>%s</td></tr>\n",
			html.EscapeString(strings.TrimSpace(l.label)), html.EscapeString(l.value))
	}
	b.WriteString(`  </table>
</body>
</html>`)
	return b.String()
}
