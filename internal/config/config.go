package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"imagenamer/internal/errors"
)

// Provider names understood by the vision clients.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	DefaultProvider = ProviderOllama
	DefaultModel    = "gemma3:27b"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvProvider   = "LLM_PROVIDER"
	EnvModel      = "LLM_MODEL"
	EnvOllamaHost = "OLLAMA_HOST"
	EnvOpenAIKey  = "OPENAI_API_KEY"
	EnvOpenAIURL  = "OPENAI_BASE_URL"
)

// Config represents the application configuration structure.
// It defines the vision provider, rename behaviour, file filters, cache
// location and logging.
type Config struct {
	Provider struct {
		Name              string `yaml:"name"`                // ollama or openai
		Model             string `yaml:"model"`               // Model identifier
		OllamaURL         string `yaml:"ollama_url"`          // Base URL of the Ollama server
		OpenAIURL         string `yaml:"openai_url"`          // Base URL of an OpenAI-compatible API
		APIKey            string `yaml:"api_key,omitempty"`   // Overridden by OPENAI_API_KEY
		TimeoutSeconds    int    `yaml:"timeout_seconds"`     // Per-request timeout
		RequestsPerMinute int    `yaml:"requests_per_minute"` // 0 disables throttling
	} `yaml:"provider"`
	Settings struct {
		DryRun            bool   `yaml:"dry_run"`             // If true, only plan renames
		Recursive         bool   `yaml:"recursive"`           // Descend into subdirectories
		UpdateRefs        bool   `yaml:"update_refs"`         // Rewrite Markdown references after a rename
		RefsRoot          string `yaml:"refs_root"`           // Root searched for Markdown documents
		CaseInsensitiveFS bool   `yaml:"case_insensitive_fs"` // Compare names case-folded
		UseCache          bool   `yaml:"use_cache"`           // Read and write the analysis cache
		UnifiedAnalysis   bool   `yaml:"unified_analysis"`    // One model call for assess and propose
	} `yaml:"settings"`
	Files struct {
		Extensions []string `yaml:"extensions"` // Supported image extensions
		Exclude    []string `yaml:"exclude"`    // Glob patterns skipped during discovery
	} `yaml:"files"`
	Cache struct {
		Dir string `yaml:"dir"` // Cache directory name, relative to the processed folder
	} `yaml:"cache"`
	Log struct {
		Debug bool   `yaml:"debug"`
		JSON  bool   `yaml:"json"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

// DefaultPath returns ~/.config/imagenamer/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "imagenamer", "config.yaml"), nil
}

// LoadConfig loads configuration from the default location
// (~/.config/imagenamer/config.yaml).
func LoadConfig() (*Config, error) {
	configPath, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFile(configPath)
}

// LoadConfigFile loads configuration from a specific file path.
// If the file doesn't exist, returns default configuration.
func LoadConfigFile(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.NewFileError("error reading config file", path, errors.FileAccessDenied, err)
	}

	// Keys absent from the file keep their defaults.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewConfigError("error parsing config file", path, errors.InvalidConfig, err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return cfg, nil
}

// defaultConfig returns the default configuration with safe defaults.
func defaultConfig() *Config {
	cfg := &Config{}

	cfg.Provider.Name = DefaultProvider
	cfg.Provider.Model = DefaultModel
	cfg.Provider.OllamaURL = "http://localhost:11434"
	cfg.Provider.OpenAIURL = "https://api.openai.com/v1"
	cfg.Provider.TimeoutSeconds = 120
	cfg.Provider.RequestsPerMinute = 0

	cfg.Settings.DryRun = true // Safe by default
	cfg.Settings.Recursive = false
	cfg.Settings.UpdateRefs = false
	cfg.Settings.CaseInsensitiveFS = runtime.GOOS == "darwin" || runtime.GOOS == "windows"
	cfg.Settings.UseCache = true
	cfg.Settings.UnifiedAnalysis = true

	cfg.Files.Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff"}
	cfg.Files.Exclude = []string{}

	cfg.Cache.Dir = ".image_namer"

	return cfg
}

func (c *Config) normalize() {
	c.Provider.Name = strings.ToLower(strings.TrimSpace(c.Provider.Name))
	for i, ext := range c.Files.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Files.Extensions[i] = ext
	}
}

// ApplyEnv overlays provider settings from the environment. lookup is
// normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvProvider); ok && v != "" {
		c.Provider.Name = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvModel); ok && v != "" {
		c.Provider.Model = v
	}
	if v, ok := lookup(EnvOllamaHost); ok && v != "" {
		if !strings.Contains(v, "://") {
			v = "http://" + v
		}
		c.Provider.OllamaURL = v
	}
	if v, ok := lookup(EnvOpenAIKey); ok && v != "" {
		c.Provider.APIKey = v
	}
	if v, ok := lookup(EnvOpenAIURL); ok && v != "" {
		c.Provider.OpenAIURL = v
	}
}

// IsSupported reports whether ext (with or without the dot) is an accepted
// image extension. The comparison ignores case.
func (c *Config) IsSupported(ext string) bool {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	for _, e := range c.Files.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// SaveConfig saves the configuration to the specified file.
// It creates parent directories if they don't exist.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Credentials stay in the environment.
	out := *cfg
	out.Provider.APIKey = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid.
// Returns error if any settings are invalid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.NewConfigError("nil config", "", errors.InvalidConfig, nil)
	}

	switch c.Provider.Name {
	case ProviderOllama, ProviderOpenAI:
	default:
		return errors.NewConfigError("invalid provider", c.Provider.Name, errors.InvalidProvider,
			fmt.Errorf("must be one of %s, %s", ProviderOllama, ProviderOpenAI))
	}

	if strings.TrimSpace(c.Provider.Model) == "" {
		return errors.NewConfigError("model is required", "provider.model", errors.InvalidConfig, nil)
	}
	if c.Provider.TimeoutSeconds < 0 {
		return errors.NewConfigError("timeout must be >= 0 seconds", "provider.timeout_seconds", errors.InvalidConfig, nil)
	}
	if c.Provider.RequestsPerMinute < 0 {
		return errors.NewConfigError("requests per minute must be >= 0", "provider.requests_per_minute", errors.InvalidConfig, nil)
	}

	if len(c.Files.Extensions) == 0 {
		return errors.NewConfigError("at least one extension is required", "files.extensions", errors.InvalidConfig, nil)
	}
	for i, ext := range c.Files.Extensions {
		if len(ext) < 2 || !strings.HasPrefix(ext, ".") {
			return errors.NewConfigError("invalid extension", fmt.Sprintf("files.extensions[%d]", i), errors.InvalidConfig,
				fmt.Errorf("%q", ext))
		}
	}

	for i, pattern := range c.Files.Exclude {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return errors.NewConfigError("invalid exclude pattern", fmt.Sprintf("files.exclude[%d]", i), errors.InvalidConfig, err)
		}
	}

	if c.Cache.Dir == "" || filepath.IsAbs(c.Cache.Dir) || strings.ContainsRune(c.Cache.Dir, filepath.Separator) {
		return errors.NewConfigError("cache dir must be a plain directory name", "cache.dir", errors.InvalidConfig, nil)
	}

	return nil
}

// RequireCredentials fails when the selected provider needs an API key that
// was not supplied.
func (c *Config) RequireCredentials() error {
	if c.Provider.Name == ProviderOpenAI && c.Provider.APIKey == "" {
		return errors.NewConfigError("missing credentials", EnvOpenAIKey, errors.MissingCredentials,
			fmt.Errorf("set %s to use the openai provider", EnvOpenAIKey))
	}
	return nil
}

// NewTestConfig creates a configuration instance for testing purposes.
func NewTestConfig() *Config {
	cfg := defaultConfig()
	cfg.Settings.DryRun = false
	cfg.Settings.CaseInsensitiveFS = false
	cfg.Settings.UseCache = false
	cfg.Provider.TimeoutSeconds = 5
	return cfg
}

// New creates a new configuration instance with default values.
func New() *Config {
	return defaultConfig()
}
