package monitoring

import (
	"context"

	"go.uber.org/zap"
)

// Checker evaluates run snapshots and delivers the resulting alerts.
type Checker struct {
	alerter *Alerter
}

// NewChecker creates a Checker.
func NewChecker(alerter *Alerter) *Checker {
	return &Checker{alerter: alerter}
}

// Check logs the snapshot, evaluates it and sends any alerts. It returns
// the alerts that were triggered, sent or not.
func (c *Checker) Check(ctx context.Context, snap *RunSnapshot) []Alert {
	log := zap.L().With(zap.String("component", "monitoring.checker"), zap.String("run_id", snap.RunID))

	fields := []zap.Field{
		zap.Int("entities", snap.Entities),
		zap.Int("with_facts", snap.WithFacts),
		zap.Float64("report_rate", snap.ReportRate),
	}
	for v, cov := range snap.Coverage {
		fields = append(fields, zap.Float64("coverage_"+string(v), cov))
	}
	log.Info("monitoring: run summary", fields...)

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered")
		return nil
	}
	for _, a := range alerts {
		log.Warn("monitoring: alert", zap.String("type", string(a.Type)), zap.String("message", a.Message))
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return alerts
}
