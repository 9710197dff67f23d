package domain

import "time"

// Config is the full runtime configuration, unmarshaled by viper from
// config.yaml, environment variables (TIERDX_ prefix), and built-in
// defaults: env wins over file, file wins over defaults.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Validation ValidationConfig `mapstructure:"validation"`
	MCP      MCPConfig      `mapstructure:"mcp"`
}

// MCPConfig configures MCP transport selection for serve-mcp.
type MCPConfig struct {
	TransportType string `mapstructure:"transport_type"`
	HTTPHost      string `mapstructure:"http_host"`
	HTTPPort      int    `mapstructure:"http_port"`
}

// ServerConfig configures the optional REST/MCP-over-HTTP listener.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig configures the optional validation-report history store.
type DatabaseConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	Database      string        `mapstructure:"database"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	SSLMode       string        `mapstructure:"ssl_mode"`
	MaxOpenConns  int           `mapstructure:"max_open_conns"`
	MaxIdleConns  int           `mapstructure:"max_idle_conns"`
	ConnMaxLife   time.Duration `mapstructure:"conn_max_lifetime"`
}

// CacheConfig configures the Redis-backed evidence cache and the on-disk
// CGI catalog cache.
type CacheConfig struct {
	RedisURL      string        `mapstructure:"redis_url"`
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	PoolSize      int           `mapstructure:"pool_size"`
	CGICacheDir   string        `mapstructure:"cgi_cache_dir"`
	CGICacheTTLDays int         `mapstructure:"cgi_cache_ttl_days"`
}

// LoggingConfig configures the logrus logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// SourcesConfig configures per-source HTTP behavior shared by every
// client in pkg/sources.
type SourcesConfig struct {
	MyVariantBaseURL   string        `mapstructure:"myvariant_base_url"`
	FDABaseURL         string        `mapstructure:"fda_base_url"`
	CGICatalogURL      string        `mapstructure:"cgi_catalog_url"`
	VICCBaseURL        string        `mapstructure:"vicc_base_url"`
	VICCEnabled        bool          `mapstructure:"vicc_enabled"`
	CIViCBaseURL       string        `mapstructure:"civic_base_url"`
	SemanticScholarURL string        `mapstructure:"semantic_scholar_base_url"`
	ClinicalTrialsURL  string        `mapstructure:"clinical_trials_base_url"`
	Timeout            time.Duration `mapstructure:"timeout"`
	RetryCount         int           `mapstructure:"retry_count"`
	RetryBaseDelay     time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay      time.Duration `mapstructure:"retry_max_delay"`
	DefaultConcurrency int           `mapstructure:"default_concurrency"`
	AssessmentDeadline time.Duration `mapstructure:"assessment_deadline"`
	EvidenceItemLimit  int           `mapstructure:"evidence_item_limit"`
}

// LLMConfig configures the chat-completion abstraction and the three
// services built on top of it.
type LLMConfig struct {
	Provider               string        `mapstructure:"provider"`
	Model                  string        `mapstructure:"model"`
	APIKey                 string        `mapstructure:"api_key"`
	BaseURL                string        `mapstructure:"base_url"`
	Temperature            float64       `mapstructure:"temperature"`
	NarrativeMaxTokens     int           `mapstructure:"narrative_max_tokens"`
	ScoringMaxTokens       int           `mapstructure:"scoring_max_tokens"`
	ExtractionMaxTokens    int           `mapstructure:"extraction_max_tokens"`
	TimeoutSec             int           `mapstructure:"timeout_sec"`
	Retries                int           `mapstructure:"retries"`
	LiteratureScoreThreshold float64     `mapstructure:"literature_score_threshold"`
	DecisionLogPath        string        `mapstructure:"decision_log_path"`
}

// ValidationConfig configures the validator's batch harness.
type ValidationConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent_validation"`
}
