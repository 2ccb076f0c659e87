// Package slack delivers notification intents to Slack via incoming
// webhooks. It is the external transport collaborator for the
// incident core: the core decides when to notify, this package only
// delivers.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/oncall/internal/alert"
	"github.com/linnemanlabs/oncall/internal/incident"
)

const (
	maxMessageLen = 3000
	httpTimeout   = 10 * time.Second
)

// Notifier sends notification intents to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Channel names the delivery channel for telemetry labels.
func (n *Notifier) Channel() string { return "slack" }

// Send posts a notification intent to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, intent *incident.Intent, in *incident.Incident) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(intent, in)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(intent *incident.Intent, in *incident.Incident) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(intent),
			{"type": "divider"},
			fieldsBlock(intent, in),
			{"type": "divider"},
			messageBlock(in),
			{"type": "divider"},
			contextBlock(in),
		},
	}
}

func headerBlock(intent *incident.Intent) map[string]any {
	var title string
	switch intent.Kind {
	case incident.IntentReopened:
		title = "Incident Reopened"
	case incident.IntentEscalated:
		title = "Incident Escalated"
	default:
		title = "New Incident"
	}
	text := fmt.Sprintf("%s %s: %s", severityEmoji(intent.Severity), title, intent.Service)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(intent *incident.Intent, in *incident.Incident) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Service:* %s", intent.Service),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Severity:* %s", intent.Severity),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Status:* %s", in.Status),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Alerts:* %d", len(in.Alerts)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Reopened:* %d times", in.ReopenCount),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func messageBlock(in *incident.Incident) map[string]any {
	text := "_No alert message._"
	if len(in.Alerts) > 0 {
		latest := in.Alerts[len(in.Alerts)-1]
		text = truncate(latest.Message, maxMessageLen)
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Latest alert*\n\n%s", text),
		},
	}
}

func contextBlock(in *incident.Incident) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("oncall • incident %s • opened %s", in.ID, in.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func severityEmoji(severity alert.Severity) string {
	switch severity {
	case alert.SeverityCritical:
		return "\U0001f534" // red circle
	case alert.SeverityWarning:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
