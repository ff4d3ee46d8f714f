/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lewtec/refcocos/annotation"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "refcocos [config.yaml]",
	Short: "Annotate referring expressions over candidate boxes",
	Long: strings.TrimSpace(`
Serve the labeling UI backend: images with more than one instance of a category
are presented with their candidate boxes, a caption is written, and the box it
refers to (or none, for an empty case) is saved to a JSON annotation file.
    `),
	Args: cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := cmd.Flags().GetString("log-level")
		if err != nil || level == "" {
			return err
		}
		parsed, err := log.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		log.SetLevel(parsed)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		if len(args) == 1 {
			configFile = args[0]
		}
		config, err := loadConfig(cmd, configFile)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			config.Server.Addr = addr
		}

		app := annotation.NewAnnotatorApp(config)
		message, err := app.LoadData()
		if err != nil {
			log.Warnf("Failed to load data, serving until a reload succeeds: %s", err)
		} else {
			log.Print(message)
		}

		log.Printf("Candidates: %s", config.Data.Candidates)
		log.Printf("Output: %s", config.Data.Output)
		log.Printf("Images: %s", config.Data.ImageBaseDir)
		log.Printf("Starting server on: %s", config.Server.Addr)

		return http.ListenAndServe(config.Server.Addr, app.GetHTTPHandler())
	},
}

// loadConfig reads configFile, falling back to the defaults when it is empty
func loadConfig(cmd *cobra.Command, configFile string) (*annotation.Config, error) {
	var config *annotation.Config
	if configFile == "" {
		config = annotation.DefaultConfig()
		config.ApplyEnv()
		if err := config.Validate(); err != nil {
			return nil, err
		}
	} else {
		var err error
		config, err = annotation.LoadConfig(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	if !cmd.Flags().Changed("log-level") {
		if err := config.ApplyLogging(); err != nil {
			return nil, err
		}
	}
	return config, nil
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		log.Fatalf("Error executing command: %v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (yaml or toml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.Flags().StringP("addr", "a", "", "Address to bind the webserver, overrides server.addr")
}
