// Package extract turns source documents into typed facts and reconciles
// the facts of several sources into one value per variable.
package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/mne-enrich/internal/gather"
	"github.com/sells-group/mne-enrich/internal/model"
)

// Extraction is the output of one extractor for one entity. Facts is nil
// when no variable could be extracted.
type Extraction struct {
	Facts     []model.Fact
	Citations []model.Citation
}

// Extractor produces facts for an entity from one source. A nil Extraction
// with a nil error means the source does not know the entity.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, e model.Entity) (*Extraction, error)
}

// field is the outcome of one sub-extraction. A nil value means missing.
type field struct {
	value    any
	year     *int
	currency string
}

// slot places a sub-extraction in the assembled fact list.
type slot struct {
	variable  model.Variable
	sourceURL string
	task      gather.Task[field]
}

// run executes every slot concurrently and assembles the surviving facts in
// slot order. A failing slot only loses its own variable.
func run(ctx context.Context, source string, e model.Entity, slots []slot) []model.Fact {
	tasks := make([]gather.Task[field], len(slots))
	for i, s := range slots {
		tasks[i] = s.task
	}

	fields := gather.Values(gather.All(ctx, 0, tasks...), field{}, func(i int, err error) {
		zap.L().Error("extract: field failed",
			zap.String("source", source),
			zap.Int("entity_id", e.ID),
			zap.String("variable", string(slots[i].variable)),
			zap.Error(err),
		)
	})

	var facts []model.Fact
	for i, f := range fields {
		if f.value == nil || f.year == nil {
			continue
		}
		fact := model.NewFact(e, slots[i].variable, slots[i].sourceURL, f.value, f.year)
		if f.currency != "" {
			fact.Currency = f.currency
		}
		facts = append(facts, fact)
	}
	return facts
}

// stringField returns a missing field for empty strings.
func stringField(s string, year int) field {
	if s == "" {
		return field{}
	}
	return field{value: s, year: model.Ptr(year)}
}
