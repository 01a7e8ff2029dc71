package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"validation-recorder/models"
	"validation-recorder/scanner"

	"github.com/sirupsen/logrus"
)

// scanOutputLimit is how much raw scan output the report quotes
const scanOutputLimit = 500

// ErrNotConfigured is returned by a notifier that has nowhere to deliver to
var ErrNotConfigured = errors.New("notifier not configured")

// Report carries everything the end-of-run notification shows
type Report struct {
	RunSteps    []*scanner.StepResult
	ScanSteps   []*scanner.StepResult
	ScanOutput  string
	Summaries   []*models.ValidationSummary
	CompletedAt time.Time
}

// Message is a rendered report
type Message struct {
	Subject string
	Body    string
}

// Success reports whether every step in the report succeeded
func (r *Report) Success() bool {
	for _, steps := range [][]*scanner.StepResult{r.RunSteps, r.ScanSteps} {
		for _, step := range steps {
			if !step.Success {
				return false
			}
		}
	}
	return true
}

// ComposeReport renders the plain-text report
func ComposeReport(r *Report) *Message {
	var b strings.Builder

	b.WriteString("DBT + SODA TEST RESULTS\n")
	b.WriteString("=======================\n\n")

	b.WriteString("DBT Results:\n")
	writeSteps(&b, r.RunSteps)

	b.WriteString("\nSoda Results:\n")
	writeSteps(&b, r.ScanSteps)

	if r.ScanOutput != "" {
		b.WriteString("\nSoda Details:\n")
		b.WriteString(truncate(r.ScanOutput, scanOutputLimit))
		b.WriteString("\n")
	}

	if len(r.Summaries) > 0 {
		b.WriteString("\nDatabase Summary:\n")
		for _, summary := range r.Summaries {
			fmt.Fprintf(&b, "   %s\n", SummaryLine(summary))
		}
	}

	fmt.Fprintf(&b, "\nTest completed at: %s\n", r.CompletedAt.Format("2006-01-02 15:04:05"))

	return &Message{
		Subject: fmt.Sprintf("dbt + Soda Test Results - %s", r.CompletedAt.Format("2006-01-02 15:04")),
		Body:    b.String(),
	}
}

// SummaryLine renders one summary as "type: passed/total passed, failed failed"
func SummaryLine(s *models.ValidationSummary) string {
	return fmt.Sprintf("%s: %d/%d passed, %d failed", s.ValidationType, s.Passed, s.Total, s.Failed)
}

func writeSteps(b *strings.Builder, steps []*scanner.StepResult) {
	if len(steps) == 0 {
		b.WriteString("   skipped\n")
		return
	}
	for _, step := range steps {
		fmt.Fprintf(b, "   %s: %s\n", step.Name, stepStatus(step.Success))
	}
}

func stepStatus(success bool) string {
	if success {
		return "PASSED"
	}
	return "FAILED"
}

// truncate cuts s to limit runes and marks the cut
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// Notifier delivers a report somewhere
type Notifier interface {
	Name() string
	Notify(ctx context.Context, report *Report) error
}

// Dispatch sends the report through every notifier. Delivery is best effort:
// failures are logged and counted, never returned.
func Dispatch(ctx context.Context, log logrus.FieldLogger, report *Report, notifiers ...Notifier) int {
	delivered := 0
	for _, n := range notifiers {
		entry := log.WithField("notifier", n.Name())
		err := n.Notify(ctx, report)
		switch {
		case errors.Is(err, ErrNotConfigured):
			entry.Warn("Notification skipped, not configured")
		case err != nil:
			entry.WithError(err).Error("Failed to send notification")
		default:
			entry.Info("Notification sent")
			delivered++
		}
	}
	return delivered
}
