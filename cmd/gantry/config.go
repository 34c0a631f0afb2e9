package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gantry-web/gantry/internal/config"
)

func configCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Load gantry.yaml from the given directory, apply environment
overrides and print the resulting configuration as YAML.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}

			// Never echo the secret, even in diagnostics.
			if cfg.Session.Secret != "" {
				cfg.Session.Secret = "<set>"
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}

	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", wd, "Directory containing gantry.yaml")

	return cmd
}
