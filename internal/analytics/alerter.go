package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bounty-cli/internal/config"
	"github.com/sells-group/bounty-cli/internal/resilience"
)

// Alert represents a single bottleneck alert to be delivered.
type Alert struct {
	SessionID string         `json:"session_id"`
	Kind      BottleneckKind `json:"kind"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Observed  float64        `json:"observed"`
	Threshold float64        `json:"threshold"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter turns detected bottlenecks into webhook alerts.
type Alerter struct {
	cfg    config.AnalyticsConfig
	client *http.Client
}

// NewAlerter creates an Alerter with the given analytics config.
func NewAlerter(cfg config.AnalyticsConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate converts a report's bottlenecks into alerts. Reliability
// bottlenecks are high severity, the rest medium.
func (a *Alerter) Evaluate(m *SessionMetrics) []Alert {
	now := time.Now().UTC()
	var alerts []Alert
	for _, b := range m.Bottlenecks {
		severity := "medium"
		if b.Kind == BottleneckReliability {
			severity = "high"
		}
		alerts = append(alerts, Alert{
			SessionID: m.SessionID,
			Kind:      b.Kind,
			Severity:  severity,
			Message:   b.Message,
			Observed:  b.Observed,
			Threshold: b.Threshold,
			Timestamp: now,
		})
	}
	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		cfg := resilience.DefaultRetryConfig()
		cfg.OnRetry = resilience.RetryLogger("webhook", "send_alert")
		err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
			return a.sendWebhook(ctx, alert)
		})
		if err != nil {
			zap.L().Error("analytics: failed to send alert",
				zap.String("kind", string(alert.Kind)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("analytics: alert sent",
			zap.String("kind", string(alert.Kind)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "analytics: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "analytics: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "analytics: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return resilience.NewTransientError(
			eris.Errorf("analytics: webhook returned status %d", resp.StatusCode),
			resp.StatusCode,
		)
	}
	if resp.StatusCode >= 400 {
		return eris.Errorf("analytics: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
