package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mne-enrich/internal/config"
	"github.com/sells-group/mne-enrich/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailed     AlertType = "run_failed"
	AlertLowCoverage   AlertType = "low_coverage"
	AlertLowReportRate AlertType = "low_report_rate"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	RunID     string         `json:"run_id,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a RunSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// Coverage thresholds are skipped for runs smaller than MinEntities.
func (a *Alerter) Evaluate(snap *RunSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.Status == model.RunStatusFailed {
		alerts = append(alerts, Alert{
			Type:      AlertRunFailed,
			Severity:  "high",
			RunID:     snap.RunID,
			Message:   fmt.Sprintf("Run %s failed: %s", snap.RunID, snap.RunError),
			Details:   map[string]any{"entities": snap.Entities},
			Timestamp: now,
		})
	}

	if snap.Entities < a.cfg.MinEntities {
		return alerts
	}

	var low []string
	details := map[string]any{}
	for _, v := range model.Variables {
		if c := snap.Coverage[v]; c < a.cfg.MinCoverage {
			low = append(low, string(v))
			details[string(v)] = c
		}
	}
	if len(low) > 0 {
		details["threshold"] = a.cfg.MinCoverage
		alerts = append(alerts, Alert{
			Type:     AlertLowCoverage,
			Severity: "medium",
			RunID:    snap.RunID,
			Message: fmt.Sprintf("%d variable(s) below %.0f%% coverage over %d entities: %v",
				len(low), a.cfg.MinCoverage*100, snap.Entities, low),
			Details:   details,
			Timestamp: now,
		})
	}

	if snap.ReportRate < a.cfg.MinReportRate {
		alerts = append(alerts, Alert{
			Type:     AlertLowReportRate,
			Severity: "medium",
			RunID:    snap.RunID,
			Message: fmt.Sprintf("Annual reports found for %.1f%% of entities, below %.1f%% (%d / %d)",
				snap.ReportRate*100, a.cfg.MinReportRate*100, snap.Reports, snap.Entities),
			Details: map[string]any{
				"report_rate": snap.ReportRate,
				"threshold":   a.cfg.MinReportRate,
				"reports":     snap.Reports,
			},
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
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
