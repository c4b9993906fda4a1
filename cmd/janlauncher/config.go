package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	internalconfig "github.com/janekdeveloper/JanLauncher-sub000/internal/config"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/schema"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage janlauncher configuration",
	Long: `Manage janlauncher configuration.

Subcommands:
  init    Write a config file with default values
  show    Print the effective configuration
  schema  Print the configuration JSON schema`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default values",
	Long: `Write a config file with default values to the global config path, or
to --config when given. An existing file is kept unless --force is set.

Examples:
  janlauncher config init
  janlauncher config init --force`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after merging defaults, the config file,
JANLAUNCHER_* environment variables and flags.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the configuration JSON schema",
	Args:  cobra.NoArgs,
	RunE:  runConfigSchema,
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSchemaCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	writer := internalconfig.NewWriter()
	if configPath != "" {
		writer = internalconfig.NewWriterWithPath(configPath)
	}

	if writer.Exists() && !configForce {
		return errors.Newf("config file %s already exists (use --force to overwrite)", writer.Path())
	}

	if err := writer.Write(internalconfig.DefaultConfig()); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", writer.Path())

	return nil
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := internalconfig.Marshal(cfg)
	if err != nil {
		return err
	}

	fmt.Print(string(data))

	return nil
}

func runConfigSchema(_ *cobra.Command, _ []string) error {
	data, err := schema.GenerateJSON(true)
	if err != nil {
		return errors.Wrap(err, "failed to generate schema")
	}

	fmt.Print(string(data))

	return nil
}
