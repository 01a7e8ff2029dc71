package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestSlackNotifier(url string) *SlackNotifier {
	notifier := NewSlackNotifier(url, "Validation Bot", "#data-quality", ":bar_chart:")
	notifier.retryDelay = time.Millisecond
	return notifier
}

func TestNewSlackNotifier(t *testing.T) {
	notifier := NewSlackNotifier(
		"https://hooks.slack.com/test",
		"Validation Bot",
		"#data-quality",
		":bar_chart:",
	)

	if notifier == nil {
		t.Fatal("NewSlackNotifier should return a valid notifier")
	}

	if notifier.webhookURL != "https://hooks.slack.com/test" {
		t.Errorf("Expected webhookURL 'https://hooks.slack.com/test', got %s", notifier.webhookURL)
	}

	if notifier.channel != "#data-quality" {
		t.Errorf("Expected channel '#data-quality', got %s", notifier.channel)
	}

	if notifier.maxRetries != 3 {
		t.Errorf("Expected maxRetries 3, got %d", notifier.maxRetries)
	}
}

func TestSlackNotifier_ValidateConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid", "https://hooks.slack.com/services/T/B/X", false},
		{"empty", "", true},
		{"wrong host", "https://example.com/hook", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewSlackNotifier(tt.url, "", "", "").ValidateConfiguration()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfiguration() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSlackNotifier_Notify(t *testing.T) {
	var received SlackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON content type, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := newTestSlackNotifier(server.URL).Notify(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if received.Channel != "#data-quality" {
		t.Errorf("Expected channel '#data-quality', got %s", received.Channel)
	}
	if len(received.Attachments) != 1 {
		t.Fatalf("Expected 1 attachment, got %d", len(received.Attachments))
	}

	attachment := received.Attachments[0]
	if attachment.Color != "danger" {
		t.Errorf("Expected color 'danger' for a failed step, got %s", attachment.Color)
	}
	if attachment.Title != "dbt + Soda Test Results - 2026-10-17 09:30" {
		t.Errorf("Unexpected title %q", attachment.Title)
	}
	if len(attachment.Fields) != 3 {
		t.Fatalf("Expected 3 fields, got %d", len(attachment.Fields))
	}
	if attachment.Fields[2].Value != "dbt: 3/4 passed, 1 failed\nsoda: 5/5 passed, 0 failed" {
		t.Errorf("Unexpected summary field %q", attachment.Fields[2].Value)
	}
}

func TestSlackNotifier_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := newTestSlackNotifier(server.URL).Notify(context.Background(), sampleReport()); err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
}

func TestSlackNotifier_StopsOnClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	err := newTestSlackNotifier(server.URL).Notify(context.Background(), sampleReport())
	if err == nil {
		t.Fatal("Expected error for 403 response")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected a single attempt, got %d", calls.Load())
	}
}

func TestSlackNotifier_NotConfigured(t *testing.T) {
	err := NewSlackNotifier("", "", "", "").Notify(context.Background(), sampleReport())
	if err != ErrNotConfigured {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}
