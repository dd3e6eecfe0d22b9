// Package config provides configuration management for the document translator.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "doc-translator-config.json"

	EnvGoogleProject     = "GOOGLE_CLOUD_PROJECT"
	EnvGoogleLocation    = "GOOGLE_CLOUD_LOCATION"
	EnvGoogleCredentials = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"
	EnvOpenAIBaseURL     = "OPENAI_BASE_URL"
	EnvOpenAIModel       = "OPENAI_MODEL"
	EnvAnthropicAPIKey   = "ANTHROPIC_API_KEY"
	EnvAnthropicModel    = "ANTHROPIC_MODEL"
	EnvOpenRouterAPIKey  = "OPENROUTER_API_KEY"
	EnvOpenRouterBaseURL = "OPENROUTER_BASE_URL"
	EnvOpenRouterModel   = "OPENROUTER_MODEL"
	EnvTimeoutMs         = "TRANSLATION_TIMEOUT_MS"
	EnvDisableRefine     = "DISABLE_VISION_REFINE"

	DefaultGoogleLocation        = "global"
	DefaultOpenAIBaseURL         = "https://api.openai.com/v1"
	DefaultOpenAIModel           = "gpt-4o"
	DefaultAnthropicBaseURL      = "https://api.anthropic.com/v1"
	DefaultAnthropicModel        = "claude-sonnet-4-20250514"
	DefaultOpenRouterBaseURL     = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel       = "openai/gpt-4o"
	DefaultOpenRouterVisionModel = "openai/gpt-4o"
	// DefaultTimeoutMs bounds every external API call (5 minutes)
	DefaultTimeoutMs       = 300000
	DefaultMaxParallelJobs = 4
	DefaultLogLevel        = "info"
)

// ConfigManager manages application configuration
type ConfigManager struct {
	configPath string
	config     *types.Config
}

// NewConfigManager creates a new ConfigManager with the specified config path.
// If configPath is empty, it uses the default path in user's home directory.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		configPath = filepath.Join(homeDir, ".config", "doc-translator", DefaultConfigFileName)
	}

	logger.Info("ConfigManager initialized", logger.String("configPath", configPath))
	return &ConfigManager{
		configPath: configPath,
		config:     defaultConfig(),
	}, nil
}

func defaultConfig() *types.Config {
	return &types.Config{
		GoogleLocation:        DefaultGoogleLocation,
		OpenAIBaseURL:         DefaultOpenAIBaseURL,
		OpenAIModel:           DefaultOpenAIModel,
		AnthropicBaseURL:      DefaultAnthropicBaseURL,
		AnthropicModel:        DefaultAnthropicModel,
		OpenRouterBaseURL:     DefaultOpenRouterBaseURL,
		OpenRouterModel:       DefaultOpenRouterModel,
		OpenRouterVisionModel: DefaultOpenRouterVisionModel,
		TimeoutMs:             DefaultTimeoutMs,
		Glossaries:            map[string]string{},
		MaxParallelJobs:       DefaultMaxParallelJobs,
		LogLevel:              DefaultLogLevel,
	}
}

// LoadDotEnv loads variables from .env files into the process environment
// without overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			logger.Warn("failed to load env file", logger.String("path", p), logger.Err(err))
			continue
		}
		logger.Debug("loaded env file", logger.String("path", p))
	}
}

// Load loads configuration from the config file.
// If the file doesn't exist, it uses default values.
// Environment variables fill any credential or model field left empty by the file.
func (m *ConfigManager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
			m.config = &types.Config{}
		} else {
			logger.Error("failed to read config file", err, logger.String("path", m.configPath))
			return types.NewAppError(types.ErrConfig, "failed to read config file", err)
		}
	} else {
		config := &types.Config{}
		if err := json.Unmarshal(data, config); err != nil {
			logger.Warn("invalid config file format, using defaults", logger.String("path", m.configPath), logger.Err(err))
			config = &types.Config{}
		} else {
			logger.Info("configuration loaded successfully",
				logger.String("path", m.configPath),
				logger.Int("glossaries", len(config.Glossaries)),
				logger.Int("timeoutMs", config.TimeoutMs))
		}
		m.config = config
	}

	applyEnv(m.config)
	applyDefaults(m.config)
	return nil
}

func applyEnv(c *types.Config) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	fill(&c.GoogleProjectID, EnvGoogleProject)
	fill(&c.GoogleLocation, EnvGoogleLocation)
	fill(&c.GoogleCredentialsFile, EnvGoogleCredentials)
	fill(&c.OpenAIAPIKey, EnvOpenAIAPIKey)
	fill(&c.OpenAIBaseURL, EnvOpenAIBaseURL)
	fill(&c.OpenAIModel, EnvOpenAIModel)
	fill(&c.AnthropicAPIKey, EnvAnthropicAPIKey)
	fill(&c.AnthropicModel, EnvAnthropicModel)
	fill(&c.OpenRouterAPIKey, EnvOpenRouterAPIKey)
	fill(&c.OpenRouterBaseURL, EnvOpenRouterBaseURL)
	fill(&c.OpenRouterModel, EnvOpenRouterModel)

	if c.TimeoutMs == 0 {
		if v := os.Getenv(EnvTimeoutMs); v != "" {
			if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
				c.TimeoutMs = ms
			} else {
				logger.Warn("ignoring invalid timeout", logger.String("env", EnvTimeoutMs), logger.String("value", v))
			}
		}
	}
	if !c.DisableVisionRefine {
		if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(EnvDisableRefine))); err == nil {
			c.DisableVisionRefine = v
		}
	}
}

func applyDefaults(c *types.Config) {
	d := defaultConfig()
	setIfEmpty := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	setIfEmpty(&c.GoogleLocation, d.GoogleLocation)
	setIfEmpty(&c.OpenAIBaseURL, d.OpenAIBaseURL)
	setIfEmpty(&c.OpenAIModel, d.OpenAIModel)
	setIfEmpty(&c.AnthropicBaseURL, d.AnthropicBaseURL)
	setIfEmpty(&c.AnthropicModel, d.AnthropicModel)
	setIfEmpty(&c.OpenRouterBaseURL, d.OpenRouterBaseURL)
	setIfEmpty(&c.OpenRouterModel, d.OpenRouterModel)
	setIfEmpty(&c.OpenRouterVisionModel, d.OpenRouterVisionModel)
	setIfEmpty(&c.LogLevel, d.LogLevel)
	if c.TimeoutMs <= 0 {
		c.TimeoutMs = d.TimeoutMs
	}
	if c.MaxParallelJobs <= 0 {
		c.MaxParallelJobs = d.MaxParallelJobs
	}
	if c.Glossaries == nil {
		c.Glossaries = map[string]string{}
	}
}

// Save saves the current configuration to the config file.
func (m *ConfigManager) Save() error {
	logger.Debug("saving configuration", logger.String("path", m.configPath))

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		logger.Error("failed to marshal config", err)
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved successfully", logger.String("path", m.configPath))
	return nil
}

// GetConfig returns the current configuration.
func (m *ConfigManager) GetConfig() *types.Config {
	if m.config == nil {
		return defaultConfig()
	}
	return m.config
}

// SetConfig sets the entire configuration.
func (m *ConfigManager) SetConfig(config *types.Config) {
	m.config = config
}

// GetConfigPath returns the path to the config file.
func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}

// GlossaryFor returns the glossary id configured for a domain, if any.
func (m *ConfigManager) GlossaryFor(domain types.Domain) (string, bool) {
	cfg := m.GetConfig()
	id, ok := cfg.Glossaries[string(domain)]
	return id, ok && id != ""
}

// SetGlossary maps a domain to a glossary id and saves the configuration.
func (m *ConfigManager) SetGlossary(domain types.Domain, glossaryID string) error {
	if m.config == nil {
		m.config = defaultConfig()
	}
	if m.config.Glossaries == nil {
		m.config.Glossaries = map[string]string{}
	}
	if glossaryID == "" {
		delete(m.config.Glossaries, string(domain))
	} else {
		m.config.Glossaries[string(domain)] = glossaryID
	}
	return m.Save()
}

// Validate reports configuration problems that make a provider unusable.
func Validate(cfg *types.Config, provider types.ProviderKind) error {
	missing := func(what string) error {
		return types.NewAppErrorWithDetails(types.ErrProviderAuthOrConfig,
			"provider is not configured", string(provider)+": missing "+what, nil)
	}
	switch provider {
	case types.ProviderGoogle:
		if cfg.GoogleProjectID == "" {
			return missing("google project id")
		}
	case types.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return missing("api key")
		}
	case types.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return missing("api key")
		}
	case types.ProviderOpenRouter:
		if cfg.OpenRouterAPIKey == "" {
			return missing("api key")
		}
	}
	return nil
}
