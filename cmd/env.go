package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mne-enrich/internal/cache"
	"github.com/sells-group/mne-enrich/internal/config"
	"github.com/sells-group/mne-enrich/internal/db"
	"github.com/sells-group/mne-enrich/internal/extract"
	"github.com/sells-group/mne-enrich/internal/fetcher"
	"github.com/sells-group/mne-enrich/internal/linkcheck"
	"github.com/sells-group/mne-enrich/internal/nace"
	"github.com/sells-group/mne-enrich/internal/pipeline"
	"github.com/sells-group/mne-enrich/internal/resilience"
	"github.com/sells-group/mne-enrich/internal/search"
	"github.com/sells-group/mne-enrich/internal/sources"
	"github.com/sells-group/mne-enrich/internal/store"
	"github.com/sells-group/mne-enrich/internal/vectorstore"
	anthropicpkg "github.com/sells-group/mne-enrich/pkg/anthropic"
	"github.com/sells-group/mne-enrich/pkg/duckduckgo"
	"github.com/sells-group/mne-enrich/pkg/embeddings"
	"github.com/sells-group/mne-enrich/pkg/google"
	"github.com/sells-group/mne-enrich/pkg/jina"
	"github.com/sells-group/mne-enrich/pkg/wikipedia"
	"github.com/sells-group/mne-enrich/pkg/yahoo"
)

// Cache file names under cache.dir.
const (
	reportsCacheFile = "annual_reports.json"
	tickersCacheFile = "tickers.json"
)

// closers releases resources in reverse acquisition order.
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) Close() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// pipelineEnv holds the clients and the pipeline needed by run and serve.
type pipelineEnv struct {
	Pipeline   *pipeline.Pipeline
	Classifier *nace.Classifier // nil unless configured
	Store      store.Store      // nil when persistence is disabled
	closers    closers
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	pe.closers.Close()
}

func newHTTPFetcher(c config.HTTPConfig) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:          c.UserAgent,
		Timeout:            time.Duration(c.TimeoutSecs) * time.Second,
		Retry:              resilience.FromRetryConfig(c.MaxRetries, c.RetryBackoffMs),
		InsecureSkipVerify: c.InsecureSkipVerify,
	})
}

// initSearch builds the multi-provider searcher. Providers without
// credentials are skipped.
func initSearch(c config.SearchConfig) (*search.Multi, error) {
	breakerCfg := resilience.FromCircuitConfig(c.Circuit.FailureThreshold, c.Circuit.ResetTimeoutSecs)

	var providers []search.Provider
	if c.DuckDuckGo.Enabled {
		var opts []duckduckgo.Option
		if c.DuckDuckGo.BaseURL != "" {
			opts = append(opts, duckduckgo.WithBaseURL(c.DuckDuckGo.BaseURL))
		}
		client := duckduckgo.NewClient(opts...)
		providers = append(providers, search.NewDuckDuckGo(client, c.MaxResults, resilience.NewCircuitBreaker("duckduckgo", breakerCfg)))
	}
	if c.Google.Key != "" && c.Google.EngineID != "" {
		var opts []google.Option
		if c.Google.Region != "" {
			opts = append(opts, google.WithRegion(c.Google.Region))
		}
		client := google.NewClient(c.Google.Key, c.Google.EngineID, opts...)
		providers = append(providers, search.NewGoogle(client, c.MaxResults, resilience.NewCircuitBreaker("google", breakerCfg)))
	} else {
		zap.L().Debug("google search not configured")
	}
	if c.Jina.Key != "" {
		var opts []jina.Option
		if c.Jina.SearchBaseURL != "" {
			opts = append(opts, jina.WithSearchBaseURL(c.Jina.SearchBaseURL))
		}
		client := jina.NewClient(c.Jina.Key, opts...)
		providers = append(providers, search.NewJina(client, c.MaxResults, resilience.NewCircuitBreaker("jina", breakerCfg)))
	}
	if len(providers) == 0 {
		return nil, eris.New("no search provider configured")
	}
	return search.NewMulti(providers...), nil
}

// initIndex opens the configured vector collection.
func initIndex(ctx context.Context) (*vectorstore.Index, func(), error) {
	embedOpts := []embeddings.Option{embeddings.WithBatchSize(cfg.Embeddings.BatchSize)}
	if cfg.Embeddings.BaseURL != "" {
		embedOpts = append(embedOpts, embeddings.WithBaseURL(cfg.Embeddings.BaseURL))
	}
	if cfg.Embeddings.Model != "" {
		embedOpts = append(embedOpts, embeddings.WithModel(cfg.Embeddings.Model))
	}
	embedder := embeddings.NewClient(cfg.Embeddings.Key, embedOpts...)

	switch cfg.VectorStore.Driver {
	case "pgvector":
		pool, err := db.Open(ctx, cfg.VectorStore.PGVector.DatabaseURL,
			db.PoolConfig{MaxConns: cfg.VectorStore.PGVector.MaxConns},
			vectorstore.RegisterVectorTypes,
		)
		if err != nil {
			return nil, nil, eris.Wrap(err, "open pgvector pool")
		}
		st := vectorstore.NewPGVector(pool, cfg.VectorStore.Collection)
		return vectorstore.NewIndex(embedder, st), pool.Close, nil
	default:
		st, err := vectorstore.NewQdrant(vectorstore.QdrantConfig{
			URL:        cfg.VectorStore.Qdrant.URL,
			APIKey:     cfg.VectorStore.Qdrant.APIKey,
			Collection: cfg.VectorStore.Collection,
			Timeout:    time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		return vectorstore.NewIndex(embedder, st), func() {}, nil
	}
}

func initClassifier(ctx context.Context, llm anthropicpkg.Client) (*nace.Classifier, func(), error) {
	index, closeIndex, err := initIndex(ctx)
	if err != nil {
		return nil, nil, err
	}
	clf := nace.NewClassifier(index, llm, nace.ClassifierConfig{
		Model: cfg.Anthropic.Model,
		TopK:  cfg.NACE.TopK,
	})
	return clf, closeIndex, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, store.Config{
		Driver: cfg.Store.Driver,
		DSN:    cfg.Store.DatabaseURL,
		Pool:   db.PoolConfig{MaxConns: cfg.Store.MaxConns, MinConns: cfg.Store.MinConns},
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// initPipeline wires every source, extractor and optional collaborator into
// a Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	env := &pipelineEnv{}

	httpFetcher := newHTTPFetcher(cfg.HTTP)
	llm := anthropicpkg.NewClient(cfg.Anthropic.Key)

	searcher, err := initSearch(cfg.Search)
	if err != nil {
		return nil, err
	}
	validator := linkcheck.New(httpFetcher, "application/pdf",
		linkcheck.WithTimeout(time.Duration(cfg.LinkCheck.TimeoutSecs)*time.Second),
		linkcheck.WithConcurrency(cfg.LinkCheck.Concurrency),
	)

	reportsCache, err := cache.Open[cache.ReportEntry](filepath.Join(cfg.Cache.Dir, reportsCacheFile))
	if err != nil {
		return nil, err
	}
	tickersCache, err := cache.Open[string](filepath.Join(cfg.Cache.Dir, tickersCacheFile))
	if err != nil {
		return nil, err
	}
	overrides, err := sources.LoadOverrides(cfg.Wikipedia.OverridesPath)
	if err != nil {
		return nil, err
	}

	reports := sources.NewAnnualReports(searcher, validator, llm, reportsCache, sources.AnnualReportConfig{
		Model:         cfg.Anthropic.Model,
		MaxTokens:     cfg.Anthropic.MaxTokens,
		QueryTemplate: cfg.AnnualReport.QueryTemplate,
		ReportYear:    cfg.AnnualReport.ReportYear,
		MinCacheYear:  cfg.AnnualReport.MinCacheYear,
	})

	var wikiOpts []wikipedia.Option
	if cfg.Wikipedia.APIURL != "" {
		wikiOpts = append(wikiOpts, wikipedia.WithAPIURL(cfg.Wikipedia.APIURL))
	}
	if cfg.Wikipedia.EntityURL != "" {
		wikiOpts = append(wikiOpts, wikipedia.WithEntityURL(cfg.Wikipedia.EntityURL))
	}
	wikiClient := wikipedia.NewClient(wikiOpts...)

	var yahooOpts []yahoo.Option
	if cfg.Yahoo.BaseURL != "" {
		yahooOpts = append(yahooOpts, yahoo.WithBaseURL(cfg.Yahoo.BaseURL))
	}
	yahooClient := yahoo.NewClient(yahooOpts...)

	wikiSource := sources.NewWikipedia(wikiClient, overrides)
	yahooSource := sources.NewYahoo(yahooClient, httpFetcher, tickersCache, overrides, sources.YahooConfig{
		QuoteURL:  cfg.Yahoo.QuoteURL,
		Exchanges: cfg.Yahoo.Exchanges,
	})
	register := sources.NewRegister(sources.DefaultRegisters(httpFetcher, sources.AnnuaireConfig{
		SearchURL: cfg.Annuaire.SearchURL,
		PageURL:   cfg.Annuaire.PageURL,
	}))

	// Wikipedia first: Yahoo only overrides it with strictly newer figures.
	extractors := []extract.Extractor{
		extract.NewWikipedia(wikiSource, wikiClient),
		extract.NewYahoo(yahooSource),
	}

	opts := []pipeline.Option{
		pipeline.WithRegister(register),
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
	}

	if cfg.NACE.Classify || mode == config.ModeServe {
		clf, closeIndex, err := initClassifier(ctx, llm)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.closers.add(closeIndex)
		env.Classifier = clf
		if cfg.NACE.Classify {
			opts = append(opts, pipeline.WithClassifier(clf, cfg.NACE.TopK))
		}
	}

	st, err := initStore(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	if st != nil {
		env.Store = st
		env.closers.add(func() { _ = st.Close() })
		opts = append(opts, pipeline.WithStore(st))
	}

	env.Pipeline = pipeline.New(reports, extractors, opts...)
	return env, nil
}
