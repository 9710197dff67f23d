// Package config loads runtime configuration via Viper: a config file,
// TIERDX_-prefixed environment variables, and built-in defaults.
// Environment variables override the file, and the file overrides the
// defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/tierdx/tierdx/internal/domain"
)

// Manager implements configuration loading using Viper.
type Manager struct {
	config *domain.Config
}

// NewManager loads configuration immediately; callers get a fully
// populated *domain.Config or an error, never a partially loaded one.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.load(); err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) load() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/tierdx/")

	viper.SetEnvPrefix("TIERDX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &domain.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshaling config: %w", err)
	}
	m.config = cfg
	return nil
}

func (m *Manager) setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "tierdx")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")

	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "24h")
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.cgi_cache_dir", "./.cache/cgi")
	viper.SetDefault("cache.cgi_cache_ttl_days", 7)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	viper.SetDefault("sources.myvariant_base_url", "https://myvariant.info/v1")
	viper.SetDefault("sources.fda_base_url", "https://api.fda.gov")
	viper.SetDefault("sources.cgi_catalog_url", "https://www.cancergenomeinterpreter.org/data/cgi_biomarkers_latest.tsv")
	viper.SetDefault("sources.vicc_base_url", "https://search.cancervariants.org/api")
	viper.SetDefault("sources.vicc_enabled", true)
	viper.SetDefault("sources.civic_base_url", "https://civicdb.org/api")
	viper.SetDefault("sources.semantic_scholar_base_url", "https://api.semanticscholar.org")
	viper.SetDefault("sources.clinical_trials_base_url", "https://clinicaltrials.gov/api/v2")
	viper.SetDefault("sources.timeout", "30s")
	viper.SetDefault("sources.retry_count", 3)
	viper.SetDefault("sources.retry_base_delay", "2s")
	viper.SetDefault("sources.retry_max_delay", "10s")
	viper.SetDefault("sources.default_concurrency", 4)
	viper.SetDefault("sources.assessment_deadline", "45s")
	viper.SetDefault("sources.evidence_item_limit", 15)

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.1)
	viper.SetDefault("llm.narrative_max_tokens", 1000)
	viper.SetDefault("llm.scoring_max_tokens", 500)
	viper.SetDefault("llm.extraction_max_tokens", 1500)
	viper.SetDefault("llm.timeout_sec", 60)
	viper.SetDefault("llm.retries", 3)
	viper.SetDefault("llm.literature_score_threshold", 0.6)
	viper.SetDefault("llm.decision_log_path", "")

	viper.SetDefault("validation.max_concurrent_validation", 3)

	viper.SetDefault("mcp.transport_type", "stdio")
	viper.SetDefault("mcp.http_host", "localhost")
	viper.SetDefault("mcp.http_port", 8090)
}

// GetConfig returns the fully loaded configuration.
func (m *Manager) GetConfig() *domain.Config { return m.config }

// Reload re-reads the configuration from all sources.
func (m *Manager) Reload() error { return m.load() }

// Validate checks the loaded configuration for obviously invalid values.
func (m *Manager) Validate() error {
	cfg := m.config
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Sources.EvidenceItemLimit <= 0 {
		return fmt.Errorf("evidence_item_limit must be positive")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 1 {
		return fmt.Errorf("llm temperature must be within [0,1]: %f", cfg.LLM.Temperature)
	}
	if cfg.Validation.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent_validation must be positive")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}
	return nil
}
