package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"imagenamer/internal/batch"
	"imagenamer/internal/cache"
	"imagenamer/internal/config"
	"imagenamer/internal/errors"
	"imagenamer/internal/log"
	"imagenamer/internal/provider"
	"imagenamer/internal/references"
	"imagenamer/internal/report"

	"github.com/spf13/cobra"
)

var version = "dev"

// lookupEnv is swapped in tests.
var lookupEnv = os.LookupEnv

const logo = `
 _
(_)_ __ ___   __ _  __ _  ___ _ __   __ _ _ __ ___   ___ _ __
| | '_ ' _ \ / _' |/ _' |/ _ \ '_ \ / _' | '_ ' _ \ / _ \ '__|
| | | | | | | (_| | (_| |  __/ | | | (_| | | | | | |  __/ |
|_|_| |_| |_|\__,_|\__, |\___|_| |_|\__,_|_| |_| |_|\___|_|
                   |___/
`

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	cfgFile  string
	provider string
	model    string
	debug    bool
	jsonLog  bool
	noCache  bool
}

// usageError marks bad invocations; they exit with code 2.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:     "imagenamer",
		Short:   "Rename images with a vision model",
		Long:    logo + "\nimagenamer names images after what they show and keeps Markdown references pointing at them.",
		Version: version,

		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringVar(&g.cfgFile, "config", "", "config file (default is $HOME/.config/imagenamer/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&g.provider, "provider", "", "vision provider: ollama or openai")
	rootCmd.PersistentFlags().StringVar(&g.model, "model", "", "model name")
	rootCmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&g.jsonLog, "json-log", false, "log as JSON")
	rootCmd.PersistentFlags().BoolVar(&g.noCache, "no-cache", false, "ignore and do not write the analysis cache")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	rootCmd.AddCommand(generateCmd(g))
	rootCmd.AddCommand(fileCmd(g))
	rootCmd.AddCommand(folderCmd(g))
	rootCmd.AddCommand(refsCmd(g))
	rootCmd.AddCommand(watchCmd(g))
	rootCmd.AddCommand(cacheCmd(g))
	rootCmd.AddCommand(configCmd(g))

	return rootCmd
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		report.New(stderr).Error("Error: %v", err)
		return exitCode(err)
	}
	return 0
}

// exitCode is 2 for setup problems the user must fix before anything can
// run, 1 for everything else.
func exitCode(err error) int {
	var ue *usageError
	switch {
	case stderrors.As(err, &ue),
		errors.IsUnsupportedFileType(err),
		errors.IsInvalidProvider(err),
		errors.IsMissingCredentials(err):
		return 2
	default:
		return 1
	}
}

// loadConfig resolves settings with precedence flag > environment > file > defaults.
func (g *globalFlags) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := g.cfgFile
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, errors.Wrap(err, "cannot locate config file")
		}
		path = p
	}

	cfg, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(lookupEnv)

	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.Provider.Name = g.provider
	}
	if flags.Changed("model") {
		cfg.Provider.Model = g.model
	}
	if flags.Changed("debug") {
		cfg.Log.Debug = g.debug
	}
	if flags.Changed("json-log") {
		cfg.Log.JSON = g.jsonLog
	}
	if g.noCache {
		cfg.Settings.UseCache = false
	}

	g.configureLogging(cmd, cfg)
	return cfg, nil
}

func (g *globalFlags) configureLogging(cmd *cobra.Command, cfg *config.Config) {
	level := "warn"
	if cfg.Log.Debug {
		level = "debug"
	}
	opts := []log.Option{log.WithOutput(cmd.ErrOrStderr()), log.WithLevel(level)}
	if cfg.Log.JSON {
		opts = append(opts, log.WithJSON())
	}
	if cfg.Log.File != "" {
		opts = append(opts, log.WithFile(cfg.Log.File))
	}
	log.Configure(opts...)
	log.SetDebug(cfg.Log.Debug)
}

// checkProvider reports a bad provider name or missing credentials with
// the message the user needs to fix it.
func checkProvider(cfg *config.Config) error {
	cfg.Provider.Name = strings.ToLower(strings.TrimSpace(cfg.Provider.Name))
	if err := cfg.Validate(); err != nil {
		if errors.IsInvalidProvider(err) {
			return errors.NewConfigError(
				fmt.Sprintf("Invalid provider '%s'. Use %s or %s", cfg.Provider.Name, config.ProviderOllama, config.ProviderOpenAI),
				"", errors.InvalidProvider, nil)
		}
		return err
	}
	if err := cfg.RequireCredentials(); err != nil {
		return errors.NewConfigError(
			fmt.Sprintf("%s environment variable not set", config.EnvOpenAIKey),
			"", errors.MissingCredentials, nil)
	}
	return nil
}

// openVision validates the provider settings and builds the client
// through the swappable factory.
func openVision(cfg *config.Config) (provider.Vision, error) {
	if err := checkProvider(cfg); err != nil {
		return nil, err
	}
	return provider.CurrentFactory(provider.FromConfig(cfg))
}

// openStore opens the cache below folder, or returns nil when caching is off.
func openStore(cfg *config.Config, folder string) (*cache.Store, error) {
	if !cfg.Settings.UseCache {
		return nil, nil
	}
	return cache.Open(filepath.Join(folder, cfg.Cache.Dir))
}

// newScanner builds the reference scanner honoring the configured excludes
// and the cache directory.
func newScanner(cfg *config.Config) (*references.Scanner, error) {
	return references.NewScanner(
		references.WithExclude(cfg.Files.Exclude...),
		references.WithSkipDir(cfg.Cache.Dir),
	)
}

// openRunner builds the batch runner for one invocation.
func openRunner(cfg *config.Config, vision provider.Vision, store *cache.Store, dryRun bool) (*batch.Runner, error) {
	scanner, err := newScanner(cfg)
	if err != nil {
		return nil, err
	}
	return batch.New(vision, runnerOptions(cfg, dryRun), batch.WithStore(store), batch.WithScanner(scanner))
}

// runnerOptions builds the batch runner options for one invocation.
func runnerOptions(cfg *config.Config, dryRun bool) batch.Options {
	return batch.Options{
		DryRun:          dryRun,
		UseCache:        cfg.Settings.UseCache,
		Unified:         cfg.Settings.UnifiedAnalysis,
		CaseInsensitive: cfg.Settings.CaseInsensitiveFS,
		UpdateRefs:      cfg.Settings.UpdateRefs,
		RefsRoot:        cfg.Settings.RefsRoot,
		RefsRecursive:   true,
	}
}

func modeName(dryRun bool) string {
	if dryRun {
		return "dry-run"
	}
	return "apply"
}

func providerLine(cfg *config.Config, dryRun bool) string {
	return fmt.Sprintf("Provider: %s  Model: %s  Mode: %s", cfg.Provider.Name, cfg.Provider.Model, modeName(dryRun))
}
