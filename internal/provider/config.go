package provider

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"imagenamer/internal/config"
	"imagenamer/internal/errors"
)

const (
	// DefaultOllamaURL is the local Ollama endpoint
	DefaultOllamaURL = "http://localhost:11434"

	// DefaultOpenAIURL is the OpenAI API endpoint
	DefaultOpenAIURL = "https://api.openai.com/v1"

	// DefaultTimeout bounds a single vision request. Large local models
	// can take a while on the first call.
	DefaultTimeout = 120 * time.Second
)

// Config holds vision client configuration
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration

	// RequestsPerMinute throttles model calls; 0 disables the limiter
	RequestsPerMinute int

	HTTPClient *http.Client
}

// FromConfig picks the provider settings out of the application config.
func FromConfig(cfg *config.Config) Config {
	c := Config{
		Provider:          cfg.Provider.Name,
		Model:             cfg.Provider.Model,
		APIKey:            cfg.Provider.APIKey,
		Timeout:           time.Duration(cfg.Provider.TimeoutSeconds) * time.Second,
		RequestsPerMinute: cfg.Provider.RequestsPerMinute,
	}
	switch c.Provider {
	case config.ProviderOllama:
		c.BaseURL = cfg.Provider.OllamaURL
	case config.ProviderOpenAI:
		c.BaseURL = cfg.Provider.OpenAIURL
	}
	return c
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	switch c.Provider {
	case config.ProviderOllama:
		if c.BaseURL == "" {
			c.BaseURL = DefaultOllamaURL
		}
	case config.ProviderOpenAI:
		if c.APIKey == "" {
			return errors.NewConfigError("missing credentials", config.EnvOpenAIKey, errors.MissingCredentials,
				fmt.Errorf("%s environment variable not set", config.EnvOpenAIKey))
		}
		if c.BaseURL == "" {
			c.BaseURL = DefaultOpenAIURL
		}
	default:
		return errors.NewConfigError("invalid provider", c.Provider, errors.InvalidProvider, nil)
	}

	if strings.TrimSpace(c.Model) == "" {
		return errors.NewConfigError("model is required", "model", errors.InvalidConfig, nil)
	}
	if c.RequestsPerMinute < 0 {
		return errors.NewConfigError("requests per minute must be >= 0", "requests_per_minute", errors.InvalidConfig, nil)
	}

	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	return nil
}
