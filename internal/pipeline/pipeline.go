// Package pipeline enriches entities end to end: source discovery,
// per-source extraction, reconciliation, register lookup and activity
// classification.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/mne-enrich/internal/cache"
	"github.com/sells-group/mne-enrich/internal/extract"
	"github.com/sells-group/mne-enrich/internal/model"
	"github.com/sells-group/mne-enrich/internal/sources"
	"github.com/sells-group/mne-enrich/internal/store"
)

// Classifier maps activity text to a taxonomy code.
type Classifier interface {
	Classify(ctx context.Context, text string, topK int) (string, error)
}

// Pipeline orchestrates the enrichment of one or many entities.
type Pipeline struct {
	reports     sources.Fetcher
	extractors  []extract.Extractor
	register    sources.Fetcher
	classifier  Classifier
	topK        int
	store       store.Store
	concurrency int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClassifier replaces the ACTIVITY text with its taxonomy code.
func WithClassifier(c Classifier, topK int) Option {
	return func(p *Pipeline) {
		p.classifier = c
		p.topK = topK
	}
}

// WithRegister enables official register lookups by reconciled country.
func WithRegister(f sources.Fetcher) Option {
	return func(p *Pipeline) { p.register = f }
}

// WithStore persists runs and per-entity results.
func WithStore(s store.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithConcurrency bounds the number of entities processed at once.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// New creates a Pipeline. Extractors are merged in the order given: the
// first extractor seeds each variable and later ones only replace it with a
// strictly more recent fact.
func New(reports sources.Fetcher, extractors []extract.Extractor, opts ...Option) *Pipeline {
	p := &Pipeline{
		reports:     reports,
		extractors:  extractors,
		concurrency: 4,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process enriches a single entity. Source failures are logged and leave
// the corresponding data absent; the only error returned wraps a
// *cache.WriteError.
func (p *Pipeline) Process(ctx context.Context, e model.Entity) (*model.EntityResult, error) {
	log := zap.L().With(zap.Int("entity_id", e.ID), zap.String("entity", e.Name))
	start := time.Now()
	result := &model.EntityResult{Entity: e}

	extractions := make([]*extract.Extraction, len(p.extractors))
	var report *sources.Result

	g, gCtx := errgroup.WithContext(ctx)
	if p.reports != nil {
		g.Go(func() error {
			res, err := p.reports.Fetch(gCtx, sources.Request{Entity: e})
			if err != nil {
				if cache.IsWriteError(err) {
					return err
				}
				log.Error("pipeline: annual report failed", zap.Error(err))
				return nil
			}
			report = res
			return nil
		})
	}
	for i, x := range p.extractors {
		g.Go(func() error {
			ext, err := x.Extract(gCtx, e)
			if err != nil {
				if cache.IsWriteError(err) {
					return err
				}
				log.Error("pipeline: extraction failed", zap.String("source", x.Name()), zap.Error(err))
				return nil
			}
			extractions[i] = ext
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrapf(err, "pipeline: process %s", e.Name)
	}

	if report != nil {
		result.Report = report.Report
		result.Citations = append(result.Citations, report.Citations...)
	}

	factSets := make([][]model.Fact, 0, len(extractions))
	for _, ext := range extractions {
		if ext == nil {
			continue
		}
		result.Citations = append(result.Citations, ext.Citations...)
		factSets = append(factSets, ext.Facts)
	}
	result.Facts = extract.Merge(factSets...)

	if country, ok := textFact(result.Facts, model.VarCountry); ok && p.register != nil {
		res, err := p.register.Fetch(ctx, sources.Request{Entity: e, Country: country})
		switch {
		case errors.Is(err, sources.ErrNoFetcher):
			log.Info("pipeline: no register for country", zap.String("country", country))
		case err != nil:
			log.Error("pipeline: register lookup failed", zap.String("country", country), zap.Error(err))
		case res != nil:
			result.Citations = append(result.Citations, res.Citations...)
		}
	}

	if p.classifier != nil {
		result.Facts = p.classify(ctx, log, result.Facts)
	}

	log.Info("pipeline: entity complete",
		zap.Int("facts", len(result.Facts)),
		zap.Int("citations", len(result.Citations)),
		zap.Bool("report", result.Report != nil && result.Report.PDFURL != nil),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// classify replaces the ACTIVITY text with its code, dropping the fact when
// classification fails.
func (p *Pipeline) classify(ctx context.Context, log *zap.Logger, facts []model.Fact) []model.Fact {
	out := facts[:0:0]
	for _, f := range facts {
		text, ok := f.Value.(string)
		if f.Variable != model.VarActivity || !ok {
			out = append(out, f)
			continue
		}
		code, err := p.classifier.Classify(ctx, text, p.topK)
		if err != nil {
			log.Error("pipeline: activity classification failed", zap.Error(err))
			continue
		}
		f.Value = code
		out = append(out, f)
	}
	return out
}

func textFact(facts []model.Fact, v model.Variable) (string, bool) {
	for _, f := range facts {
		if f.Variable != v {
			continue
		}
		s, ok := f.Value.(string)
		return s, ok && s != ""
	}
	return "", false
}
