package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/teakit/teakit/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage teakit configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE:  initConfigFile,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged effective configuration",
	RunE:  showConfig,
}

var configGlobal bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().BoolVar(&configGlobal, "global", false, "Write to ~/.teakit instead of the project directory")
}

func initConfigFile(cmd *cobra.Command, args []string) error {
	path := filepath.Join(".teakit", "config.json")
	if configGlobal {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".teakit", "config.json")
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}

	if err := config.Save(config.DefaultConfig(), path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func showConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadDefault()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
