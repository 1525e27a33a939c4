package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vitalscan/vitalscan/monitor/internal/config"
)

const deliveryTimeout = 10 * time.Second

// deliver posts a to every webhook with a resolvable URL, one at a time.
// Failures are logged and never reach Evaluate.
func (e *Engine) deliver(targets []config.WebhookConfig, a *Alert) {
	for _, wh := range targets {
		url := wh.URL()
		if url == "" {
			continue
		}
		body, err := payload(wh.Type, a)
		if err != nil {
			slog.Warn("alerts: skipping webhook", "type", wh.Type, "err", err)
			continue
		}
		if err := e.post(url, body); err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type, "rule", a.RuleName, "kind", a.Kind, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "rule", a.RuleName, "state", a.State)
	}
}

// payload renders a in the body format of the given webhook type.
func payload(typ string, a *Alert) ([]byte, error) {
	switch typ {
	case "slack":
		return json.Marshal(map[string]string{"text": headline(a, true)})
	case "teams":
		return json.Marshal(map[string]interface{}{
			"@type":      "MessageCard",
			"@context":   "http://schema.org/extensions",
			"themeColor": severityColor(a.Severity, a.State),
			"summary":    a.RuleName,
			"title":      headline(a, false),
			"text":       a.Message,
		})
	case "http":
		return json.Marshal(map[string]interface{}{"alert": a})
	}
	return nil, fmt.Errorf("unknown webhook type %q", typ)
}

// headline is the one-line chat text for a. Slack uses mrkdwn bold.
func headline(a *Alert, bold bool) string {
	label := severityLabel(a.Severity)
	if a.State == StateResolved {
		label = "[RESOLVED]"
	}
	if bold {
		label = "*" + label + "*"
	}
	if a.State == StateResolved {
		return fmt.Sprintf("%s %s: %s reading back in range", label, a.RuleName, a.Kind)
	}
	return fmt.Sprintf("%s %s", label, a.Message)
}

func (e *Engine) post(url string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook answered %d", resp.StatusCode)
	}
	return nil
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

// severityColor is the Teams card accent. Resolved alerts are always green.
func severityColor(sev, state string) string {
	if state == StateResolved {
		return "2EB67D"
	}
	switch sev {
	case "critical":
		return "FF4F6A"
	case "warning":
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
