/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lewtec/refcocos/internal/dataset"
	"github.com/lewtec/refcocos/internal/domain"
	"github.com/lewtec/refcocos/internal/repository"
)

func readCandidates(filename string) (*domain.CandidateFile, error) {
	fs, name := repository.OpenFile(filename)
	return repository.ReadCandidateFile(fs, name)
}

func writeCandidates(filename string, file *domain.CandidateFile) error {
	fs, name := repository.OpenFile(filename)
	return repository.WriteCandidateFile(fs, name, file)
}

// filterCmd represents the filter command
var filterCmd = &cobra.Command{
	Use:   "filter <input.json> <output.json>",
	Short: "Drop catalog images with too many instances of a category",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxInstances, err := cmd.Flags().GetInt("max-instances")
		if err != nil {
			return err
		}
		file, err := readCandidates(args[0])
		if err != nil {
			return err
		}
		filtered, stats := dataset.Filter(file, maxInstances)
		if err := writeCandidates(args[1], filtered); err != nil {
			return err
		}
		log.Printf("filter: removed %d of %d images with more than %d instances", stats.Removed, stats.Original, maxInstances)
		fmt.Fprintf(cmd.OutOrStdout(), "original\t%d\nremoved\t%d\nkept\t%d\n", stats.Original, stats.Removed, stats.Kept)
		return nil
	},
}

// consolidateCmd represents the consolidate command
var consolidateCmd = &cobra.Command{
	Use:   "consolidate <input.json> <output.json>",
	Short: "Merge every person-like category of the catalog into Person",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold, err := cmd.Flags().GetFloat64("iou")
		if err != nil {
			return err
		}
		if threshold <= 0 || threshold > 1 {
			return fmt.Errorf("--iou must be in (0, 1], got %g", threshold)
		}
		file, err := readCandidates(args[0])
		if err != nil {
			return err
		}
		consolidated, stats := dataset.Consolidate(file, threshold)
		if err := writeCandidates(args[1], consolidated); err != nil {
			return err
		}
		log.Printf("consolidate: %d images had person categories, %d were merged", stats.WithPersonCategories, stats.Consolidated)
		fmt.Fprintf(cmd.OutOrStdout(), "with_person_categories\t%d\nconsolidated\t%d\nreindexed\t%d\n", stats.WithPersonCategories, stats.Consolidated, stats.Reindexed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(consolidateCmd)

	filterCmd.Flags().IntP("max-instances", "m", dataset.DefaultMaxInstances, "Maximum candidates per category")
	consolidateCmd.Flags().Float64("iou", dataset.DefaultIoUThreshold, "Overlap above which two person boxes are the same instance")
}
