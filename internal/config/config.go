package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Role keys the pipeline depends on. Every deployment must bind all three.
const (
	RoleAnalyst     = "analyst"
	RoleResearcher  = "researcher"
	RoleSynthesizer = "synthesizer"
)

// RequiredRoles lists the role keys the pipeline resolves at startup.
var RequiredRoles = []string{RoleAnalyst, RoleResearcher, RoleSynthesizer}

// Config describes the top-level application configuration loaded from YAML and ENV.
type Config struct {
	Version  string                `mapstructure:"version"`
	Backend  BackendConfig         `mapstructure:"backend"`
	Roles    map[string]RoleConfig `mapstructure:"roles"`
	Pipeline PipelineConfig        `mapstructure:"pipeline"`
	Search   SearchConfig          `mapstructure:"search"`
	Logging  LoggingConfig         `mapstructure:"logging"`
	Server   ServerConfig          `mapstructure:"server"`
}

// BackendConfig describes the local inference backend.
type BackendConfig struct {
	Type               string        `mapstructure:"type"`                 // ollama, or openai for OpenAI-compatible gateways (vllm, lmstudio)
	BaseURL            string        `mapstructure:"base_url"`             // e.g. http://127.0.0.1:11434
	APIKey             string        `mapstructure:"api_key"`              // only used by openai-type gateways
	ProbeTimeout       time.Duration `mapstructure:"probe_timeout"`        // liveness probe bound
	ChatTimeout        time.Duration `mapstructure:"chat_timeout"`         // 0 = no per-call timeout
	PullTimeoutSeconds int           `mapstructure:"pull_timeout_seconds"` // ceiling for blocking model downloads
}

// RoleConfig binds one pipeline role to a backend model and sampling parameters.
type RoleConfig struct {
	Name          string  `mapstructure:"name"`           // display name
	Model         string  `mapstructure:"model"`          // backend model identifier
	Strength      string  `mapstructure:"strength"`       // analytical, execution, reasoning
	Description   string  `mapstructure:"description"`    // free text
	Temperature   float64 `mapstructure:"temperature"`    // sampling temperature
	ContextWindow int     `mapstructure:"context_window"` // num_ctx for the model
}

// PipelineConfig controls the solve pipeline runtime.
type PipelineConfig struct {
	MaxReportBytes  int           `mapstructure:"max_report_bytes"` // hard cap on the research->synthesis hand-off
	CallInterval    time.Duration `mapstructure:"call_interval"`    // minimum spacing between model calls
	MaxPlanQueries  int           `mapstructure:"max_plan_queries"` // queries accepted from a SEARCH plan
	ScrapeMaxBytes  int           `mapstructure:"scrape_max_bytes"` // cap applied to scraped page text
	SearchMaxChecks int           `mapstructure:"search_max_checks"`
}

// SearchConfig selects the web-search provider for the researcher role.
type SearchConfig struct {
	Provider   string `mapstructure:"provider"` // brave or duckduckgo
	APIKey     string `mapstructure:"api_key"`  // required for brave
	MaxResults int    `mapstructure:"max_results"`
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// ServerConfig describes daemon settings.
type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	Transport      string `mapstructure:"transport"` // connect or ndjson
}

// Load reads configuration from the provided path or defaults to configs/config.yaml.
// Environment variables override file values (prefix: TRISOLVE_, dots replaced with
// underscores). A missing config file is not an error when no path was given: the
// built-in role defaults are complete enough to run against a local Ollama.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TRISOLVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates defaults, including the stock three-role crew.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("backend.type", "ollama")
	v.SetDefault("backend.base_url", "http://127.0.0.1:11434")
	v.SetDefault("backend.probe_timeout", 5*time.Second)
	v.SetDefault("backend.chat_timeout", time.Duration(0))
	v.SetDefault("backend.pull_timeout_seconds", 1800)

	v.SetDefault("roles.analyst.name", "Qwen Analyst")
	v.SetDefault("roles.analyst.model", "qwen3:1.7b")
	v.SetDefault("roles.analyst.strength", "analytical")
	v.SetDefault("roles.analyst.description", "Problem decomposition and planning")
	v.SetDefault("roles.analyst.temperature", 0.3)
	v.SetDefault("roles.analyst.context_window", 32768)

	v.SetDefault("roles.researcher.name", "DeepSeek Researcher")
	v.SetDefault("roles.researcher.model", "deepseek-r1:8b")
	v.SetDefault("roles.researcher.strength", "reasoning")
	v.SetDefault("roles.researcher.description", "Web research and internal-knowledge reports")
	v.SetDefault("roles.researcher.temperature", 0.6)
	v.SetDefault("roles.researcher.context_window", 128000)

	v.SetDefault("roles.synthesizer.name", "Gemma3 Synthesizer")
	v.SetDefault("roles.synthesizer.model", "gemma3:1b")
	v.SetDefault("roles.synthesizer.strength", "execution")
	v.SetDefault("roles.synthesizer.description", "Final answer composition from the research report")
	v.SetDefault("roles.synthesizer.temperature", 0.6)
	v.SetDefault("roles.synthesizer.context_window", 32768)

	v.SetDefault("pipeline.max_report_bytes", 16384)
	v.SetDefault("pipeline.call_interval", 2*time.Second)
	v.SetDefault("pipeline.max_plan_queries", 4)
	v.SetDefault("pipeline.scrape_max_bytes", 32768)
	v.SetDefault("pipeline.search_max_checks", 3)

	v.SetDefault("search.provider", "duckduckgo")
	v.SetDefault("search.max_results", 5)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.transport", "connect")
}

// Validate performs basic sanity checks on configuration values.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Backend.Type)) {
	case "ollama", "openai":
	default:
		return fmt.Errorf("backend.type must be ollama or openai, got %q", c.Backend.Type)
	}

	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return errors.New("backend.base_url must be set")
	}
	if c.Backend.ProbeTimeout <= 0 {
		return errors.New("backend.probe_timeout must be > 0")
	}
	if c.Backend.PullTimeoutSeconds <= 0 {
		return errors.New("backend.pull_timeout_seconds must be > 0")
	}

	for _, key := range RequiredRoles {
		role, ok := c.Roles[key]
		if !ok {
			return fmt.Errorf("roles.%s must be configured", key)
		}
		if strings.TrimSpace(role.Model) == "" {
			return fmt.Errorf("roles.%s must define a model", key)
		}
		if role.Temperature < 0 || role.Temperature > 2 {
			return fmt.Errorf("roles.%s temperature must be within [0,2]", key)
		}
		if role.ContextWindow <= 0 {
			return fmt.Errorf("roles.%s context_window must be > 0", key)
		}
		switch strings.ToLower(strings.TrimSpace(role.Strength)) {
		case "analytical", "execution", "reasoning":
		default:
			return fmt.Errorf("roles.%s strength must be one of analytical, execution, reasoning", key)
		}
	}

	if c.Pipeline.MaxReportBytes <= 0 {
		return errors.New("pipeline.max_report_bytes must be > 0")
	}
	if c.Pipeline.CallInterval < 0 {
		return errors.New("pipeline.call_interval must be >= 0")
	}
	if c.Pipeline.MaxPlanQueries <= 0 {
		return errors.New("pipeline.max_plan_queries must be > 0")
	}
	if c.Pipeline.ScrapeMaxBytes <= 0 {
		return errors.New("pipeline.scrape_max_bytes must be > 0")
	}

	switch strings.ToLower(strings.TrimSpace(c.Search.Provider)) {
	case "brave":
		if strings.TrimSpace(c.Search.APIKey) == "" {
			return errors.New("search.api_key must be set when search.provider is brave")
		}
	case "duckduckgo":
	default:
		return fmt.Errorf("search.provider must be brave or duckduckgo, got %q", c.Search.Provider)
	}
	if c.Search.MaxResults <= 0 {
		return errors.New("search.max_results must be > 0")
	}

	switch strings.ToLower(strings.TrimSpace(c.Server.Transport)) {
	case "", "connect", "ndjson":
	default:
		return fmt.Errorf("server.transport must be one of connect or ndjson, got %q", c.Server.Transport)
	}

	return nil
}
