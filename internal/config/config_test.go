package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"imagenamer/internal/config"
	"imagenamer/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create a temporary YAML config file
func createTestYAML(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	require.NoError(t, err)
	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)
	err = tmpFile.Close()
	require.NoError(t, err)
	return tmpFile.Name()
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

const (
	validYAML = `
provider:
  name: openai
  model: gpt-4o-mini
  requests_per_minute: 30
settings:
  dry_run: false
  update_refs: true
  refs_root: "/home/test/notes"
  case_insensitive_fs: true
files:
  extensions: ["png", ".JPG"]
  exclude: ["**/node_modules/**"]
`
	partialYAML = `
settings:
  recursive: true
`
	invalidSyntaxYAML = `
provider:
  name: "ollama
settings: # Missing closing quote and incorrect indentation
  dry_run: yes
`
	invalidProviderYAML = `
provider:
  name: "bard"
`
	invalidExcludeYAML = `
files:
  exclude: ["[unclosed"]
`
)

func TestLoadConfigFile(t *testing.T) {
	t.Run("load valid config", func(t *testing.T) {
		configFile := createTestYAML(t, validYAML)
		cfg, err := config.LoadConfigFile(configFile)

		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, config.ProviderOpenAI, cfg.Provider.Name)
		assert.Equal(t, "gpt-4o-mini", cfg.Provider.Model)
		assert.Equal(t, 30, cfg.Provider.RequestsPerMinute)
		assert.Equal(t, false, cfg.Settings.DryRun)
		assert.Equal(t, true, cfg.Settings.UpdateRefs)
		assert.Equal(t, "/home/test/notes", cfg.Settings.RefsRoot)
		assert.Equal(t, true, cfg.Settings.CaseInsensitiveFS)
		assert.Equal(t, []string{".png", ".jpg"}, cfg.Files.Extensions)
		assert.Equal(t, []string{"**/node_modules/**"}, cfg.Files.Exclude)
	})

	t.Run("missing keys keep defaults", func(t *testing.T) {
		configFile := createTestYAML(t, partialYAML)
		cfg, err := config.LoadConfigFile(configFile)

		require.NoError(t, err)
		assert.True(t, cfg.Settings.Recursive)
		assert.True(t, cfg.Settings.DryRun, "dry_run stays on when the file does not mention it")
		assert.Equal(t, config.DefaultModel, cfg.Provider.Model)
		assert.Equal(t, config.New().Files.Extensions, cfg.Files.Extensions)
	})

	t.Run("load non-existent file", func(t *testing.T) {
		nonExistentPath := filepath.Join(t.TempDir(), "does_not_exist.yaml")
		cfg, err := config.LoadConfigFile(nonExistentPath)

		require.NoError(t, err, "Loading non-existent file should return default config, not an error")
		require.NotNil(t, cfg)

		defaultCfg := config.New()
		assert.Equal(t, defaultCfg.Settings.DryRun, cfg.Settings.DryRun)
		assert.Equal(t, defaultCfg.Provider.Name, cfg.Provider.Name)
		assert.Equal(t, defaultCfg.Cache.Dir, cfg.Cache.Dir)
	})

	t.Run("load file with invalid YAML syntax", func(t *testing.T) {
		configFile := createTestYAML(t, invalidSyntaxYAML)
		_, err := config.LoadConfigFile(configFile)

		require.Error(t, err, "Loading invalid YAML should return an error")
		assert.Contains(t, err.Error(), "error parsing config file")
	})

	t.Run("load file with invalid provider", func(t *testing.T) {
		configFile := createTestYAML(t, invalidProviderYAML)
		_, err := config.LoadConfigFile(configFile)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "invalid provider: bard")
		assert.True(t, errors.IsInvalidProvider(err))
	})

	t.Run("load file with invalid exclude glob", func(t *testing.T) {
		configFile := createTestYAML(t, invalidExcludeYAML)
		_, err := config.LoadConfigFile(configFile)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid exclude pattern")
	})
}

func TestApplyEnv(t *testing.T) {
	t.Run("environment overrides file values", func(t *testing.T) {
		cfg := config.New()
		cfg.ApplyEnv(envMap(map[string]string{
			config.EnvProvider:   "OpenAI",
			config.EnvModel:      "gpt-4o",
			config.EnvOpenAIKey:  "sk-test",
			config.EnvOllamaHost: "gpu-box:11434",
		}))

		assert.Equal(t, config.ProviderOpenAI, cfg.Provider.Name)
		assert.Equal(t, "gpt-4o", cfg.Provider.Model)
		assert.Equal(t, "sk-test", cfg.Provider.APIKey)
		assert.Equal(t, "http://gpu-box:11434", cfg.Provider.OllamaURL)
	})

	t.Run("empty values are ignored", func(t *testing.T) {
		cfg := config.New()
		cfg.ApplyEnv(envMap(map[string]string{config.EnvProvider: ""}))
		assert.Equal(t, config.DefaultProvider, cfg.Provider.Name)
		assert.Equal(t, config.DefaultModel, cfg.Provider.Model)
	})
}

func TestRequireCredentials(t *testing.T) {
	cfg := config.New()
	assert.NoError(t, cfg.RequireCredentials(), "ollama needs no key")

	cfg.Provider.Name = config.ProviderOpenAI
	err := cfg.RequireCredentials()
	require.Error(t, err)
	assert.True(t, errors.IsMissingCredentials(err))
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	cfg.Provider.APIKey = "sk-test"
	assert.NoError(t, cfg.RequireCredentials())
}

func TestIsSupported(t *testing.T) {
	cfg := config.New()
	assert.True(t, cfg.IsSupported(".png"))
	assert.True(t, cfg.IsSupported("JPG"))
	assert.True(t, cfg.IsSupported(".TIFF"))
	assert.False(t, cfg.IsSupported(".txt"))
	assert.False(t, cfg.IsSupported(""))
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *config.Config) {},
			wantErr: false,
		},
		{
			name:    "empty model",
			mutate:  func(c *config.Config) { c.Provider.Model = " " },
			wantErr: true,
		},
		{
			name:    "negative timeout",
			mutate:  func(c *config.Config) { c.Provider.TimeoutSeconds = -1 },
			wantErr: true,
		},
		{
			name:    "extension without dot",
			mutate:  func(c *config.Config) { c.Files.Extensions = []string{"png"} },
			wantErr: true,
		},
		{
			name:    "no extensions",
			mutate:  func(c *config.Config) { c.Files.Extensions = nil },
			wantErr: true,
		},
		{
			name:    "nested cache dir",
			mutate:  func(c *config.Config) { c.Cache.Dir = filepath.Join("a", "b") },
			wantErr: true,
		},
		{
			name:    "valid exclude glob",
			mutate:  func(c *config.Config) { c.Files.Exclude = []string{"*.tmp.png", "drafts/**"} },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := config.New()
	cfg.Settings.Recursive = true
	cfg.Provider.APIKey = "sk-secret"

	require.NoError(t, config.SaveConfig(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-secret")

	loaded, err := config.LoadConfigFile(path)
	require.NoError(t, err)
	assert.True(t, loaded.Settings.Recursive)
	assert.Equal(t, cfg.Files.Extensions, loaded.Files.Extensions)
	assert.Equal(t, "sk-secret", cfg.Provider.APIKey, "caller's config is not modified")
}
