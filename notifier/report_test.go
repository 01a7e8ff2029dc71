package notifier

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"validation-recorder/models"
	"validation-recorder/scanner"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

func sampleReport() *Report {
	return &Report{
		RunSteps: []*scanner.StepResult{
			{Name: "dbt Debug", Success: true},
			{Name: "dbt Test", Success: false},
		},
		ScanSteps: []*scanner.StepResult{
			{Name: "Soda Scan", Success: true},
		},
		ScanOutput: "Scan summary:\n5/5 checks PASSED",
		Summaries: []*models.ValidationSummary{
			{ValidationType: models.ValidationTypeRunTool, StatusCounts: models.StatusCounts{Total: 4, Passed: 3, Failed: 1}},
			{ValidationType: models.ValidationTypeScanTool, StatusCounts: models.StatusCounts{Total: 5, Passed: 5}},
		},
		CompletedAt: time.Date(2026, 10, 17, 9, 30, 12, 0, time.UTC),
	}
}

func TestComposeReport(t *testing.T) {
	msg := ComposeReport(sampleReport())

	assert.Equal(t, "dbt + Soda Test Results - 2026-10-17 09:30", msg.Subject)
	assert.Contains(t, msg.Body, "   dbt Debug: PASSED\n")
	assert.Contains(t, msg.Body, "   dbt Test: FAILED\n")
	assert.Contains(t, msg.Body, "   Soda Scan: PASSED\n")
	assert.Contains(t, msg.Body, "5/5 checks PASSED")
	assert.Contains(t, msg.Body, "   dbt: 3/4 passed, 1 failed\n")
	assert.Contains(t, msg.Body, "   soda: 5/5 passed, 0 failed\n")
	assert.Contains(t, msg.Body, "Test completed at: 2026-10-17 09:30:12")
}

func TestComposeReport_TruncatesScanOutput(t *testing.T) {
	report := sampleReport()
	report.ScanOutput = strings.Repeat("x", 600)

	body := ComposeReport(report).Body
	assert.Contains(t, body, strings.Repeat("x", 500)+"...")
	assert.NotContains(t, body, strings.Repeat("x", 501))
}

func TestComposeReport_SkippedStages(t *testing.T) {
	body := ComposeReport(&Report{CompletedAt: time.Now()}).Body

	assert.Equal(t, 2, strings.Count(body, "   skipped\n"))
	assert.NotContains(t, body, "Soda Details")
	assert.NotContains(t, body, "Database Summary")
}

func TestReport_Success(t *testing.T) {
	assert.False(t, sampleReport().Success())
	assert.True(t, (&Report{RunSteps: []*scanner.StepResult{{Success: true}}}).Success())
}

func TestEmailNotifier_Configured(t *testing.T) {
	tests := []struct {
		name   string
		config EmailConfig
		want   bool
	}{
		{"complete", EmailConfig{SenderEmail: "etl@example.com", Recipients: []string{"team@example.com"}}, true},
		{"no sender", EmailConfig{Recipients: []string{"team@example.com"}}, false},
		{"placeholder sender", EmailConfig{SenderEmail: "your-email@gmail.com", Recipients: []string{"team@example.com"}}, false},
		{"no recipients", EmailConfig{SenderEmail: "etl@example.com"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewEmailNotifier(tt.config).Configured())
		})
	}
}

func TestEmailNotifier_Notify(t *testing.T) {
	var from string
	var to []string
	var raw strings.Builder
	sender := gomail.SendFunc(func(f string, rcpt []string, msg io.WriterTo) error {
		from, to = f, rcpt
		_, err := msg.WriteTo(&raw)
		return err
	})

	notifier := NewEmailNotifier(EmailConfig{
		SMTPServer:  "smtp.example.com",
		SMTPPort:    587,
		SenderEmail: "etl@example.com",
		Recipients:  []string{"team@example.com"},
	}).WithSender(sender)

	require.NoError(t, notifier.Notify(context.Background(), sampleReport()))
	assert.Equal(t, "etl@example.com", from)
	assert.Equal(t, []string{"team@example.com"}, to)
	assert.Contains(t, raw.String(), "Subject: dbt + Soda Test Results - 2026-10-17 09:30")
}

type stubNotifier struct {
	name string
	err  error
	hits int
}

func (s *stubNotifier) Name() string { return s.name }

func (s *stubNotifier) Notify(context.Context, *Report) error {
	s.hits++
	return s.err
}

func TestDispatch_BestEffort(t *testing.T) {
	logger, hook := test.NewNullLogger()
	failing := &stubNotifier{name: "email", err: errors.New("connection refused")}
	skipped := &stubNotifier{name: "slack", err: ErrNotConfigured}
	working := &stubNotifier{name: "other"}

	delivered := Dispatch(context.Background(), logger, sampleReport(), failing, skipped, working)

	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, failing.hits)
	assert.Equal(t, 1, working.hits)
	assert.Len(t, hook.AllEntries(), 3)
}
