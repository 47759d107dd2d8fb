package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Input        InputConfig        `yaml:"input" mapstructure:"input"`
	S3           S3Config           `yaml:"s3" mapstructure:"s3"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Search       SearchConfig       `yaml:"search" mapstructure:"search"`
	LinkCheck    LinkCheckConfig    `yaml:"linkcheck" mapstructure:"linkcheck"`
	Anthropic    AnthropicConfig    `yaml:"anthropic" mapstructure:"anthropic"`
	AnnualReport AnnualReportConfig `yaml:"annual_report" mapstructure:"annual_report"`
	Wikipedia    WikipediaConfig    `yaml:"wikipedia" mapstructure:"wikipedia"`
	Yahoo        YahooConfig        `yaml:"yahoo" mapstructure:"yahoo"`
	Annuaire     AnnuaireConfig     `yaml:"annuaire" mapstructure:"annuaire"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	NACE         NACEConfig         `yaml:"nace" mapstructure:"nace"`
	VectorStore  VectorStoreConfig  `yaml:"vectorstore" mapstructure:"vectorstore"`
	Embeddings   EmbeddingsConfig   `yaml:"embeddings" mapstructure:"embeddings"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Pipeline     PipelineConfig     `yaml:"pipeline" mapstructure:"pipeline"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Monitoring   MonitoringConfig   `yaml:"monitoring" mapstructure:"monitoring"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// InputConfig locates the entity list.
type InputConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`
}

// S3Config holds S3-compatible object storage credentials. The standard
// AWS_* variables are bound to it.
type S3Config struct {
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
	SessionToken    string `yaml:"session_token" mapstructure:"session_token"`
	Insecure        bool   `yaml:"insecure" mapstructure:"insecure"`
}

// HTTPConfig configures the shared HTTP fetcher.
type HTTPConfig struct {
	UserAgent          string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs        int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries         int    `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoffMs     int    `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// SearchConfig configures the web search providers.
type SearchConfig struct {
	MaxResults int              `yaml:"max_results" mapstructure:"max_results"`
	DuckDuckGo DuckDuckGoConfig `yaml:"duckduckgo" mapstructure:"duckduckgo"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
}

// DuckDuckGoConfig configures the DuckDuckGo HTML provider.
type DuckDuckGoConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// GoogleConfig holds Google Custom Search credentials. The provider is
// disabled when either value is empty.
type GoogleConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	EngineID string `yaml:"engine_id" mapstructure:"engine_id"`
	Region   string `yaml:"region" mapstructure:"region"`
}

// JinaConfig holds Jina Search settings. The provider is disabled without a key.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// CircuitConfig configures the per-provider circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// LinkCheckConfig configures annual report URL validation.
type LinkCheckConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// AnnualReportConfig configures annual report discovery.
type AnnualReportConfig struct {
	QueryTemplate string `yaml:"query_template" mapstructure:"query_template"`
	ReportYear    int    `yaml:"report_year" mapstructure:"report_year"`
	MinCacheYear  int    `yaml:"min_cache_year" mapstructure:"min_cache_year"`
}

// WikipediaConfig configures the MediaWiki and Wikidata endpoints.
type WikipediaConfig struct {
	APIURL        string `yaml:"api_url" mapstructure:"api_url"`
	EntityURL     string `yaml:"entity_url" mapstructure:"entity_url"`
	OverridesPath string `yaml:"overrides_path" mapstructure:"overrides_path"`
}

// YahooConfig configures Yahoo Finance access.
type YahooConfig struct {
	BaseURL   string   `yaml:"base_url" mapstructure:"base_url"`
	QuoteURL  string   `yaml:"quote_url" mapstructure:"quote_url"`
	Exchanges []string `yaml:"exchanges" mapstructure:"exchanges"`
}

// AnnuaireConfig configures the French business register.
type AnnuaireConfig struct {
	SearchURL string `yaml:"search_url" mapstructure:"search_url"`
	PageURL   string `yaml:"page_url" mapstructure:"page_url"`
}

// CacheConfig locates the JSON caches.
type CacheConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// NACEConfig configures activity classification and taxonomy ingestion.
type NACEConfig struct {
	Classify          bool   `yaml:"classify" mapstructure:"classify"`
	TopK              int    `yaml:"top_k" mapstructure:"top_k"`
	IngestBaseURL     string `yaml:"ingest_base_url" mapstructure:"ingest_base_url"`
	IngestLang        string `yaml:"ingest_lang" mapstructure:"ingest_lang"`
	IngestConcurrency int    `yaml:"ingest_concurrency" mapstructure:"ingest_concurrency"`
}

// VectorStoreConfig selects the NACE collection backend.
type VectorStoreConfig struct {
	Driver     string         `yaml:"driver" mapstructure:"driver"`
	Collection string         `yaml:"collection" mapstructure:"collection"`
	Qdrant     QdrantConfig   `yaml:"qdrant" mapstructure:"qdrant"`
	PGVector   PGVectorConfig `yaml:"pgvector" mapstructure:"pgvector"`
}

// QdrantConfig holds Qdrant REST settings.
type QdrantConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PGVectorConfig holds the Postgres connection for the pgvector backend.
type PGVectorConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// EmbeddingsConfig configures the OpenAI-compatible embeddings endpoint.
type EmbeddingsConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Model     string `yaml:"model" mapstructure:"model"`
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
}

// StoreConfig configures run persistence. An empty driver disables it.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PipelineConfig configures batch processing.
type PipelineConfig struct {
	Concurrency   int `yaml:"concurrency" mapstructure:"concurrency"`
	ProgressEvery int `yaml:"progress_every" mapstructure:"progress_every"`
}

// OutputConfig configures the submission files.
type OutputConfig struct {
	Dir  string `yaml:"dir" mapstructure:"dir"`
	XLSX bool   `yaml:"xlsx" mapstructure:"xlsx"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures the post-run quality checks. An empty
// webhook URL logs alerts without sending them.
type MonitoringConfig struct {
	WebhookURL    string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	MinCoverage   float64 `yaml:"min_coverage" mapstructure:"min_coverage"`
	MinReportRate float64 `yaml:"min_report_rate" mapstructure:"min_report_rate"`
	MinEntities   int     `yaml:"min_entities" mapstructure:"min_entities"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// envAliases binds keys to conventional variable names in addition to the
// MNE_ prefixed ones.
var envAliases = map[string][]string{
	"s3.endpoint":                {"AWS_S3_ENDPOINT"},
	"s3.access_key_id":           {"AWS_ACCESS_KEY_ID"},
	"s3.secret_access_key":       {"AWS_SECRET_ACCESS_KEY"},
	"s3.session_token":           {"AWS_SESSION_TOKEN"},
	"anthropic.key":              {"ANTHROPIC_API_KEY"},
	"vectorstore.qdrant.url":     {"QDRANT_URL"},
	"vectorstore.qdrant.api_key": {"QDRANT_API_KEY"},
	"embeddings.base_url":        {"URL_EMBEDDING_API"},
	"embeddings.key":             {"EMBEDDING_API_KEY"},
	"search.google.key":          {"GOOGLE_API_KEY"},
	"search.google.engine_id":    {"GOOGLE_CSE_ID"},
	"search.jina.key":            {"JINA_API_KEY"},
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MNE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		envs := append([]string{"MNE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", key)
		}
	}

	// Defaults. Keys without a default are invisible to Unmarshal when only
	// set through the environment, so empty ones are listed too.
	v.SetDefault("input.path", "")
	v.SetDefault("input.delimiter", ";")
	v.SetDefault("s3.insecure", false)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (compatible; mne-enrich/1.0)")
	v.SetDefault("http.timeout_secs", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.retry_backoff_ms", 1000)
	v.SetDefault("http.insecure_skip_verify", true)
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.duckduckgo.enabled", true)
	v.SetDefault("search.duckduckgo.base_url", "https://html.duckduckgo.com/html/")
	v.SetDefault("search.google.region", "")
	v.SetDefault("search.jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("search.circuit.failure_threshold", 5)
	v.SetDefault("search.circuit.reset_timeout_secs", 60)
	v.SetDefault("linkcheck.timeout_secs", 30)
	v.SetDefault("linkcheck.concurrency", 10)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 512)
	v.SetDefault("annual_report.query_template", "{name} annual report {year} pdf")
	v.SetDefault("annual_report.report_year", 2024)
	v.SetDefault("annual_report.min_cache_year", 2024)
	v.SetDefault("wikipedia.api_url", "https://en.wikipedia.org/w/api.php")
	v.SetDefault("wikipedia.entity_url", "https://www.wikidata.org/wiki/Special:EntityData")
	v.SetDefault("yahoo.base_url", "https://query2.finance.yahoo.com")
	v.SetDefault("yahoo.quote_url", "https://finance.yahoo.com/quote")
	v.SetDefault("annuaire.search_url", "https://recherche-entreprises.api.gouv.fr/search")
	v.SetDefault("annuaire.page_url", "https://annuaire-entreprises.data.gouv.fr/entreprise")
	v.SetDefault("wikipedia.overrides_path", "")
	v.SetDefault("cache.dir", "data/cache")
	v.SetDefault("nace.classify", false)
	v.SetDefault("nace.top_k", 20)
	v.SetDefault("nace.ingest_base_url", "http://data.europa.eu/ux2/nace2")
	v.SetDefault("nace.ingest_lang", "en")
	v.SetDefault("nace.ingest_concurrency", 4)
	v.SetDefault("vectorstore.driver", "qdrant")
	v.SetDefault("vectorstore.collection", "challenge-mne")
	v.SetDefault("vectorstore.qdrant.timeout_secs", 30)
	v.SetDefault("vectorstore.pgvector.database_url", "")
	v.SetDefault("vectorstore.pgvector.max_conns", 4)
	v.SetDefault("embeddings.base_url", "https://api.deepinfra.com/v1/openai")
	v.SetDefault("embeddings.model", "Alibaba-NLP/gte-Qwen2-7B-instruct")
	v.SetDefault("embeddings.batch_size", 32)
	v.SetDefault("store.driver", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 0)
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.progress_every", 10)
	v.SetDefault("output.dir", "data")
	v.SetDefault("output.xlsx", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.min_coverage", 0.5)
	v.SetDefault("monitoring.min_report_rate", 0.3)
	v.SetDefault("monitoring.min_entities", 5)
	v.SetDefault("monitoring.timeout_secs", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Command names accepted by Validate.
const (
	ModeRun      = "run"
	ModeClassify = "classify"
	ModeNACE     = "nace"
	ModeServe    = "serve"
)

// Validate checks the settings a command depends on and reports every
// problem at once.
func (c *Config) Validate(mode string) error {
	var problems []string
	require := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	switch c.Store.Driver {
	case "", "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q is not one of sqlite, postgres", c.Store.Driver))
	}
	if c.Store.Driver != "" {
		require(c.Store.DatabaseURL != "", "store.database_url is required when store.driver is set")
	}

	needsVectors := mode == ModeClassify || mode == ModeNACE || mode == ModeServe || (mode == ModeRun && c.NACE.Classify)
	if needsVectors {
		switch c.VectorStore.Driver {
		case "qdrant":
			require(c.VectorStore.Qdrant.URL != "", "vectorstore.qdrant.url is required")
		case "pgvector":
			require(c.VectorStore.PGVector.DatabaseURL != "", "vectorstore.pgvector.database_url is required")
		default:
			problems = append(problems, fmt.Sprintf("vectorstore.driver %q is not one of qdrant, pgvector", c.VectorStore.Driver))
		}
		require(c.Embeddings.Key != "", "embeddings.key is required")
	}

	require(c.Monitoring.MinCoverage >= 0 && c.Monitoring.MinCoverage <= 1, "monitoring.min_coverage must be within [0, 1]")
	require(c.Monitoring.MinReportRate >= 0 && c.Monitoring.MinReportRate <= 1, "monitoring.min_report_rate must be within [0, 1]")

	switch mode {
	case ModeRun:
		require(c.Anthropic.Key != "", "anthropic.key is required")
		require(len([]rune(c.Input.Delimiter)) == 1, "input.delimiter must be a single character")
		require(c.Pipeline.Concurrency > 0, "pipeline.concurrency must be positive")
	case ModeClassify:
		require(c.Anthropic.Key != "", "anthropic.key is required")
	case ModeServe:
		require(c.Anthropic.Key != "", "anthropic.key is required")
		require(c.Server.Port > 0 && c.Server.Port < 65536, "server.port must be between 1 and 65535")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
