// Package monitoring measures the quality of enrichment runs and raises
// webhook alerts when a run falls below the configured thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mne-enrich/internal/model"
	"github.com/sells-group/mne-enrich/internal/store"
)

// RunSnapshot is the quality summary of one run.
type RunSnapshot struct {
	RunID     string          `json:"run_id,omitempty"`
	Status    model.RunStatus `json:"status,omitempty"`
	RunError  string          `json:"run_error,omitempty"`
	Entities  int             `json:"entities"`
	WithFacts int             `json:"with_facts"`
	Reports   int             `json:"reports"`
	Citations int             `json:"citations"`

	// Coverage is the share of entities with a fact for each variable.
	Coverage   map[model.Variable]float64 `json:"coverage"`
	ReportRate float64                    `json:"report_rate"`

	CollectedAt time.Time `json:"collected_at"`
}

// Summarize computes a snapshot from in-memory results. run may be nil.
func Summarize(run *model.Run, results []model.EntityResult) *RunSnapshot {
	snap := &RunSnapshot{
		Entities:    len(results),
		Coverage:    make(map[model.Variable]float64, len(model.Variables)),
		CollectedAt: time.Now().UTC(),
	}
	if run != nil {
		snap.RunID = run.ID
		snap.Status = run.Status
		snap.RunError = run.Error
	}

	counts := make(map[model.Variable]int, len(model.Variables))
	for _, r := range results {
		if len(r.Facts) > 0 {
			snap.WithFacts++
		}
		if r.Report != nil && r.Report.PDFURL != nil && *r.Report.PDFURL != "" {
			snap.Reports++
		}
		snap.Citations += len(r.Citations)

		seen := make(map[model.Variable]bool, len(model.Variables))
		for _, f := range r.Facts {
			if !seen[f.Variable] {
				seen[f.Variable] = true
				counts[f.Variable]++
			}
		}
	}

	for _, v := range model.Variables {
		if snap.Entities > 0 {
			snap.Coverage[v] = float64(counts[v]) / float64(snap.Entities)
		} else {
			snap.Coverage[v] = 0
		}
	}
	if snap.Entities > 0 {
		snap.ReportRate = float64(snap.Reports) / float64(snap.Entities)
	}
	return snap
}

// Collector reads persisted runs from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new run collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect summarizes a persisted run.
func (c *Collector) Collect(ctx context.Context, runID string) (*RunSnapshot, error) {
	run, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: get run")
	}
	results, err := c.store.ListResults(ctx, runID)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list results")
	}
	return Summarize(run, results), nil
}
