/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lewtec/refcocos/annotation"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the progress of the configured annotation session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		config, err := loadConfig(cmd, configFile)
		if err != nil {
			return err
		}
		app := annotation.NewAnnotatorApp(config)
		if _, err := app.LoadData(); err != nil {
			return err
		}
		summary, err := app.Summary()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "images\t%d\n", summary.TotalImages)
		fmt.Fprintf(out, "saved_images\t%d\n", summary.SavedImages)
		fmt.Fprintf(out, "annotations\t%d\n", summary.Annotations)
		fmt.Fprintf(out, "empty_cases\t%d\n", summary.EmptyCases)
		fmt.Fprintf(out, "last_saved_index\t%d\n", summary.LastSavedIndex)
		fmt.Fprintf(out, "first_unsaved_index\t%d\n", summary.FirstUnsavedIndex)
		fmt.Fprintf(out, "categories\t%s\n", strings.Join(summary.Categories, ","))

		hash, err := annotation.HashFile(config.Data.Output)
		switch {
		case errors.Is(err, os.ErrNotExist):
			fmt.Fprintf(out, "output_sha256\t-\n")
		case err != nil:
			return err
		default:
			fmt.Fprintf(out, "output_sha256\t%s\n", hash)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
