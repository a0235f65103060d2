package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mark3labs/reagent/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage reagent configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter global config file",
	Long: `Write the current effective configuration to the global config location
(` + "`~/.config/reagent/reagent.yml`" + ` or $XDG_CONFIG_HOME). Values already set
via environment variables are captured; fill in the rest by editing the file.`,
	RunE: runConfigInit,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := config.WriteGlobal(cfg); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", config.GlobalPath())
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Still missing: %v\nEdit the file or set the variables in your environment.\n", err)
	}
	return nil
}
