package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/jstrand/tally/internal/allocate"
)

// Config is the persistent application configuration
type Config struct {
	// Activity sources
	GitHub GitHubConfig `json:"github"`
	Jira   JiraConfig   `json:"jira"`

	// Text-generation models
	Models ModelConfig `json:"models"`

	// Report preferences
	Report ReportConfig `json:"report"`
}

// GitHubConfig holds the code-source settings
type GitHubConfig struct {
	Token        string `json:"token,omitempty"`
	LookbackDays int    `json:"lookback_days"`
}

// JiraConfig holds the tracker-source settings
type JiraConfig struct {
	BaseURL      string `json:"base_url,omitempty"`
	Email        string `json:"email,omitempty"`
	APIToken     string `json:"api_token,omitempty"`
	LookbackDays int    `json:"lookback_days"`
}

// ModelConfig holds text-generation model settings
type ModelConfig struct {
	// Preferred names the provider to use when several are available
	Preferred string `json:"preferred,omitempty"`

	Claude ModelSettings `json:"claude"`
	OpenAI ModelSettings `json:"openai"`
	Gemini ModelSettings `json:"gemini"`
	Grok   ModelSettings `json:"grok"`
	Ollama ModelSettings `json:"ollama"`
}

// ModelSettings for a single provider
type ModelSettings struct {
	Enabled  bool   `json:"enabled"`
	APIKey   string `json:"api_key,omitempty"`
	Endpoint string `json:"endpoint,omitempty"` // For Ollama or custom endpoints
	Model    string `json:"model,omitempty"`    // Specific model to use
}

// ReportConfig holds timesheet-generation preferences
type ReportConfig struct {
	DefaultDays     int    `json:"default_days"`
	ContextEvents   int    `json:"context_events"`
	InferencePolicy string `json:"inference_policy"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		GitHub: GitHubConfig{
			LookbackDays: 30,
		},
		Jira: JiraConfig{
			LookbackDays: 30,
		},
		Models: ModelConfig{
			Claude: ModelSettings{
				Enabled: true,
				Model:   "claude-sonnet-4-5-20250929",
			},
			OpenAI: ModelSettings{
				Enabled: false,
				Model:   "gpt-5.2",
			},
			Gemini: ModelSettings{
				Enabled: false,
				Model:   "gemini-3-flash-preview",
			},
			Grok: ModelSettings{
				Enabled: false,
				Model:   "grok-4-1-fast-non-reasoning",
			},
			Ollama: ModelSettings{
				Enabled:  false,
				Endpoint: "http://localhost:11434",
				// Model auto-detected from Ollama if not specified
			},
		},
		Report: ReportConfig{
			DefaultDays:     5,
			ContextEvents:   5,
			InferencePolicy: allocate.DefaultPolicy,
		},
	}
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tally", "config.json")
}

// Load reads config from disk, or returns defaults
func Load() (*Config, error) {
	path := ConfigPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults and try to auto-populate from environment
			cfg := DefaultConfig()
			cfg.AutoPopulateFromEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), nil
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path := ConfigPath()

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // Restrictive permissions for API keys
}

// AutoPopulateFromEnv fills in credentials from environment variables
func (c *Config) AutoPopulateFromEnv() {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		c.GitHub.Token = token
	}
	if u := os.Getenv("JIRA_BASE_URL"); u != "" {
		c.Jira.BaseURL = u
	}
	if email := os.Getenv("JIRA_EMAIL"); email != "" {
		c.Jira.Email = email
	}
	if token := os.Getenv("JIRA_API_TOKEN"); token != "" {
		c.Jira.APIToken = token
	}
	if key := os.Getenv("CLAUDE_API_KEY"); key != "" {
		c.Models.Claude.APIKey = key
		c.Models.Claude.Enabled = true
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.Models.Claude.APIKey = key
		c.Models.Claude.Enabled = true
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Models.OpenAI.APIKey = key
		c.Models.OpenAI.Enabled = true
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.Models.Gemini.APIKey = key
		c.Models.Gemini.Enabled = true
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Models.Gemini.APIKey = key
		c.Models.Gemini.Enabled = true
	}
	if key := os.Getenv("XAI_API_KEY"); key != "" {
		c.Models.Grok.APIKey = key
		c.Models.Grok.Enabled = true
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.Models.Ollama.Endpoint = host
		c.Models.Ollama.Enabled = true
	}
}

// applyDefaults fills zero-valued fields a hand-edited or older config
// file may be missing
func (c *Config) applyDefaults() {
	if c.GitHub.LookbackDays < 1 {
		c.GitHub.LookbackDays = 30
	}
	if c.Jira.LookbackDays < 1 {
		c.Jira.LookbackDays = 30
	}
	if c.Report.DefaultDays < 1 {
		c.Report.DefaultDays = 5
	}
	if c.Report.ContextEvents < 1 {
		c.Report.ContextEvents = 5
	}
	if c.Report.InferencePolicy == "" {
		c.Report.InferencePolicy = allocate.DefaultPolicy
	}
	if c.Models.Ollama.Endpoint == "" {
		c.Models.Ollama.Endpoint = "http://localhost:11434"
	}
}
