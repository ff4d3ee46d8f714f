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

func readAnnotations(filename string) ([]domain.Annotation, error) {
	fs, name := repository.OpenFile(filename)
	return repository.ReadAnnotationFile(fs, name)
}

func writeAnnotations(filename string, annotations []domain.Annotation) error {
	fs, name := repository.OpenFile(filename)
	return repository.WriteAnnotationFile(fs, name, annotations)
}

// concatCmd represents the concat command
var concatCmd = &cobra.Command{
	Use:   "concat <output.json> <input.json>...",
	Short: "Join annotation files in order",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var lists [][]domain.Annotation
		for _, input := range args[1:] {
			annotations, err := readAnnotations(input)
			if err != nil {
				return err
			}
			lists = append(lists, annotations)
		}
		combined, stats := dataset.Concat(lists...)
		if err := writeAnnotations(args[0], combined); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i, input := range args[1:] {
			fmt.Fprintf(out, "%s\t%d\t%d\n", input, stats.Sizes[i], stats.EmptyCases[i])
		}
		fmt.Fprintf(out, "%s\t%d\t%d\n", args[0], stats.Total, stats.TotalEmpty)
		return nil
	},
}

// backfillCmd represents the backfill command
var backfillCmd = &cobra.Command{
	Use:   "backfill <annotations.json> <candidates.json>",
	Short: "Add image_index, file_name and annotation_id to older annotation files",
	Long: `Add image_index, file_name and annotation_id to annotation files written
before those fields existed. image_index is the position of the referenced
image in the candidate catalog. The file is rewritten in place unless
--output is given.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		prefix, _ := cmd.Flags().GetString("prefix")
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = args[0]
		}

		annotations, err := readAnnotations(args[0])
		if err != nil {
			return err
		}
		fs, name := repository.OpenFile(args[1])
		images, err := repository.LoadImageRepository(fs, name, prefix)
		if err != nil {
			return err
		}
		stats := dataset.Backfill(annotations, images, dataset.BackfillOptions{Force: force})
		if err := writeAnnotations(output, annotations); err != nil {
			return err
		}
		log.Printf("backfill: %d records, %d indexes, %d ids, %d unresolved", len(annotations), stats.IndexUpdated, stats.IDsAdded, stats.Unresolved)
		fmt.Fprintf(cmd.OutOrStdout(), "index_updated\t%d\nids_added\t%d\nunresolved\t%d\n", stats.IndexUpdated, stats.IDsAdded, stats.Unresolved)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(concatCmd)
	rootCmd.AddCommand(backfillCmd)

	backfillCmd.Flags().BoolP("force", "f", false, "Fill ids on every record and keep existing indexes")
	backfillCmd.Flags().StringP("prefix", "p", "val2017", "Image prefix used by the annotation image references")
	backfillCmd.Flags().StringP("output", "o", "", "Write to this file instead of rewriting the input")
}
