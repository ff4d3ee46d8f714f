/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/russross/blackfriday/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lewtec/refcocos/annotation"
	"github.com/lewtec/refcocos/internal/dataset"
	"github.com/lewtec/refcocos/internal/domain"
)

func writeMarkdownFile(cmd *cobra.Command, output string, annotations []domain.Annotation, html bool) error {
	imageRoot, _ := cmd.Flags().GetString("image-root")
	linkPrefix, _ := cmd.Flags().GetString("link-prefix")
	var buf bytes.Buffer
	err := dataset.WriteMarkdown(&buf, annotations, dataset.MarkdownOptions{
		ImageRoot:  imageRoot,
		LinkPrefix: linkPrefix,
		Exists: func(imagePath string) bool {
			_, err := os.Stat(imagePath)
			return err == nil
		},
	})
	if err != nil {
		return err
	}
	data := buf.Bytes()
	if html {
		var page bytes.Buffer
		fmt.Fprintf(&page, "<!doctype html>\n<html><head><meta charset=\"utf-8\"><title>RefCOCOS Dataset</title></head><body>\n")
		page.Write(blackfriday.Run(data))
		fmt.Fprintf(&page, "</body></html>\n")
		data = page.Bytes()
	}
	return os.WriteFile(output, data, 0644)
}

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <md|html|jsonl|sqlite> <output>",
	Short: "Export saved annotations for review or training",
	Long: `Export saved annotations.

  md      browsable markdown listing with image links
  html    the same listing rendered as a page
  jsonl   one training record per line
  sqlite  catalog and annotations as tables, see the query command

Annotations are read from --input, or from data.output of the config.`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"md", "html", "jsonl", "sqlite"},
	RunE: func(cmd *cobra.Command, args []string) error {
		format, output := args[0], args[1]
		configFile, _ := cmd.Flags().GetString("config")
		config, err := loadConfig(cmd, configFile)
		if err != nil {
			return err
		}
		input, _ := cmd.Flags().GetString("input")
		if input == "" {
			input = config.Data.Output
		}
		annotations, err := readAnnotations(input)
		if err != nil {
			return err
		}

		switch format {
		case "md", "html":
			err = writeMarkdownFile(cmd, output, annotations, format == "html")
		case "jsonl":
			var f *os.File
			f, err = os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			err = dataset.WriteJSONL(f, annotations)
		case "sqlite":
			app := annotation.NewAnnotatorApp(config)
			if _, err := app.LoadData(); err != nil {
				return err
			}
			images, err := app.Images()
			if err != nil {
				return err
			}
			db, err := annotation.GetDatabase(output)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := annotation.MigrateDatabase(db); err != nil {
				return err
			}
			err = annotation.ExportDatabase(cmd.Context(), db, images, config.Data.ImagePrefix, annotations)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown export format '%s'", format)
		}
		if err != nil {
			return err
		}
		log.Printf("export: wrote %d annotations to %s", len(annotations), output)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("input", "i", "", "Annotation file to export instead of data.output")
	exportCmd.Flags().String("image-root", "", "Directory joined in front of image references (md, html)")
	exportCmd.Flags().String("link-prefix", "", "Prefix of the generated image links (md, html)")
}
