package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/leadflow/llm"
	"github.com/BaSui01/leadflow/tools"
	"github.com/BaSui01/leadflow/types"
)

// Config is the full leadflow configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	LLM      llm.Config     `yaml:"llm"`
	Tools    ToolsConfig    `yaml:"tools"`
	Store    StoreConfig    `yaml:"store"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// ToolsConfig configures the agent tool capabilities.
type ToolsConfig struct {
	Search tools.SearchConfig `yaml:"search"`
	Scrape tools.ScrapeConfig `yaml:"scrape"`
}

// StoreConfig configures scored-lead persistence.
type StoreConfig struct {
	// Path is the SQLite database file; ":memory:" keeps it in process.
	Path string `yaml:"path"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables the endpoint.
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// PipelineConfig configures the sales pipeline itself.
type PipelineConfig struct {
	// ScoreThreshold gates the filter stage: leads must score strictly
	// above it to reach email writing.
	ScoreThreshold int `yaml:"score_threshold"`
	// Concurrency bounds parallel per-lead crew runs.
	Concurrency int `yaml:"concurrency"`

	// Crew declaration files.
	EnrichmentAgents string `yaml:"enrichment_agents"`
	EnrichmentTasks  string `yaml:"enrichment_tasks"`
	EmailAgents      string `yaml:"email_agents"`
	EmailTasks       string `yaml:"email_tasks"`

	// Leads seeds the fetch stage when no database source is wired.
	Leads []types.LeadRecord `yaml:"leads"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		LLM: llm.Config{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			Timeout:     120 * time.Second,
		},
		Tools: ToolsConfig{
			Search: tools.SearchConfig{RatePerSecond: 2},
			Scrape: tools.ScrapeConfig{RatePerSecond: 2},
		},
		Store: StoreConfig{Path: "leadflow.db"},
		Metrics: MetricsConfig{
			Namespace: "leadflow",
		},
		Pipeline: PipelineConfig{
			ScoreThreshold:   70,
			Concurrency:      4,
			EnrichmentAgents: "configs/lead_qualification_agents.yaml",
			EnrichmentTasks:  "configs/lead_qualification_tasks.yaml",
			EmailAgents:      "configs/email_writing_agents.yaml",
			EmailTasks:       "configs/email_writing_tasks.yaml",
		},
	}
}

// Load builds the configuration: defaults, overlaid with the YAML file at
// path (skipped when path is empty), overlaid with environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, types.NewError(types.ErrConfiguration, "read config file").WithCause(err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, types.NewError(types.ErrConfiguration, "parse config file").WithCause(err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays LEADFLOW_* environment variables.
func (c *Config) applyEnv() {
	overlay := func(target *string, key string) {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}
	overlay(&c.LLM.APIKey, "LEADFLOW_LLM_API_KEY")
	overlay(&c.LLM.BaseURL, "LEADFLOW_LLM_BASE_URL")
	overlay(&c.LLM.Model, "LEADFLOW_LLM_MODEL")
	overlay(&c.Tools.Search.APIKey, "LEADFLOW_SERPER_API_KEY")
	overlay(&c.Store.Path, "LEADFLOW_STORE_PATH")
	overlay(&c.Log.Level, "LEADFLOW_LOG_LEVEL")
	overlay(&c.Metrics.Addr, "LEADFLOW_METRICS_ADDR")
}

func (c *Config) validate() error {
	if c.Pipeline.ScoreThreshold < 0 || c.Pipeline.ScoreThreshold > 100 {
		return types.NewError(types.ErrConfiguration,
			fmt.Sprintf("pipeline.score_threshold %d outside [0,100]", c.Pipeline.ScoreThreshold))
	}
	if c.Pipeline.Concurrency < 1 {
		return types.NewError(types.ErrConfiguration, "pipeline.concurrency must be at least 1")
	}
	return nil
}
