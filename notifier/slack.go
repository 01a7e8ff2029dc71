package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"validation-recorder/scanner"
)

// SlackNotifier handles Slack notifications
type SlackNotifier struct {
	webhookURL string
	username   string
	channel    string
	iconEmoji  string
	maxRetries int
	retryDelay time.Duration
	httpClient *http.Client
}

// NewSlackNotifier creates a new Slack notifier instance
func NewSlackNotifier(webhookURL, username, channel, iconEmoji string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		username:   username,
		channel:    channel,
		iconEmoji:  iconEmoji,
		maxRetries: 3,
		retryDelay: time.Second * 2,
		httpClient: &http.Client{
			Timeout: time.Second * 30,
		},
	}
}

// SlackMessage represents a Slack message structure
type SlackMessage struct {
	Text        string            `json:"text,omitempty"`
	Username    string            `json:"username,omitempty"`
	Channel     string            `json:"channel,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment represents a Slack message attachment
type SlackAttachment struct {
	Color     string       `json:"color,omitempty"`
	Title     string       `json:"title,omitempty"`
	Text      string       `json:"text,omitempty"`
	Fields    []SlackField `json:"fields,omitempty"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp int64        `json:"ts,omitempty"`
}

// SlackField represents a field in a Slack attachment
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func (sn *SlackNotifier) Name() string { return "slack" }

// Notify posts the validation report to the webhook
func (sn *SlackNotifier) Notify(ctx context.Context, report *Report) error {
	if sn.webhookURL == "" {
		return ErrNotConfigured
	}
	return sn.sendMessage(ctx, sn.buildReportMessage(report))
}

// buildReportMessage builds the attachment form of a validation report
func (sn *SlackNotifier) buildReportMessage(report *Report) *SlackMessage {
	rendered := ComposeReport(report)

	color := "good"
	if !report.Success() {
		color = "danger"
	}

	attachment := SlackAttachment{
		Color:     color,
		Title:     rendered.Subject,
		Footer:    "validation-recorder",
		Timestamp: report.CompletedAt.Unix(),
	}

	attachment.Fields = append(attachment.Fields,
		SlackField{
			Title: "dbt Steps",
			Value: formatSteps(report.RunSteps),
			Short: true,
		},
		SlackField{
			Title: "Soda Scan",
			Value: formatSteps(report.ScanSteps),
			Short: true,
		},
	)

	if len(report.Summaries) > 0 {
		lines := make([]string, 0, len(report.Summaries))
		for _, summary := range report.Summaries {
			lines = append(lines, SummaryLine(summary))
		}
		attachment.Fields = append(attachment.Fields, SlackField{
			Title: "Database Summary",
			Value: strings.Join(lines, "\n"),
			Short: false,
		})
	}

	return &SlackMessage{
		Text:        fmt.Sprintf("*%s*", rendered.Subject),
		Username:    sn.username,
		Channel:     sn.channel,
		IconEmoji:   sn.iconEmoji,
		Attachments: []SlackAttachment{attachment},
	}
}

func formatSteps(steps []*scanner.StepResult) string {
	if len(steps) == 0 {
		return "skipped"
	}
	lines := make([]string, 0, len(steps))
	for _, step := range steps {
		lines = append(lines, fmt.Sprintf("%s: %s", step.Name, stepStatus(step.Success)))
	}
	return strings.Join(lines, "\n")
}

// sendMessage sends a message to Slack with retry logic
func (sn *SlackNotifier) sendMessage(ctx context.Context, message *SlackMessage) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack message: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= sn.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sn.retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, sn.webhookURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := sn.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to send request: %w", err)
			continue
		}

		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			return nil
		}

		lastErr = fmt.Errorf("slack API returned status %d", resp.StatusCode)

		// Don't retry for client errors
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			break
		}
	}

	return fmt.Errorf("failed to send Slack notification after %d attempts: %w", sn.maxRetries+1, lastErr)
}

// ValidateConfiguration validates the Slack notifier configuration
func (sn *SlackNotifier) ValidateConfiguration() error {
	if sn.webhookURL == "" {
		return fmt.Errorf("Slack webhook URL is required")
	}

	if !strings.HasPrefix(sn.webhookURL, "https://hooks.slack.com/") {
		return fmt.Errorf("invalid Slack webhook URL format")
	}

	return nil
}
