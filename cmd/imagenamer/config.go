package main

import (
	"fmt"
	"os"

	"imagenamer/internal/config"
	"imagenamer/internal/errors"
	"imagenamer/internal/report"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func configCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(configInitCmd(g))
	cmd.AddCommand(configShowCmd(g))
	return cmd
}

func (g *globalFlags) configPath() (string, error) {
	if g.cfgFile != "" {
		return g.cfgFile, nil
	}
	return config.DefaultPath()
}

func configInitCmd(g *globalFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := g.configPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return errors.NewFileError("config file already exists (use --force to overwrite)", path, errors.FileExists, nil)
			}
			if err := config.SaveConfig(config.New(), path); err != nil {
				return err
			}
			report.New(cmd.OutOrStdout()).Line("Wrote default configuration to %s", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func configShowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			out := *cfg
			if out.Provider.APIKey != "" {
				out.Provider.APIKey = "********"
			}
			data, err := yaml.Marshal(&out)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
