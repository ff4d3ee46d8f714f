package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lewtec/refcocos/annotation"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init [config.yaml]",
	Short: "Write a sample configuration file",
	Long: `Write a sample configuration file pointing at the default candidate
catalog and annotation output. An existing file is left untouched.

Example:
  refcocos init
  refcocos init val.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile := "config.yaml"
		if len(args) == 1 {
			configFile = args[0]
		}
		if _, err := os.Stat(configFile); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file already exists: %s\n", configFile)
			return nil
		}
		if err := os.WriteFile(configFile, []byte(annotation.SampleConfig), 0644); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created: %s\n", configFile)
		fmt.Fprintf(cmd.OutOrStdout(), "Edit data.candidates and data.output, then run 'refcocos %s'\n", configFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
