/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"fmt"
	"strconv"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lewtec/refcocos/annotation"
	"github.com/lewtec/refcocos/internal/domain"
)

// previewCmd represents the preview command
var previewCmd = &cobra.Command{
	Use:   "preview <index> <output.png>",
	Short: "Render the candidate boxes and saved solutions of one image",
	Long: `Render the image at a catalog position with every candidate box in yellow
and every saved solution in red. The output format follows the file extension.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index '%s': %w", args[0], err)
		}
		configFile, _ := cmd.Flags().GetString("config")
		config, err := loadConfig(cmd, configFile)
		if err != nil {
			return err
		}
		app := annotation.NewAnnotatorApp(config)
		if _, err := app.LoadData(); err != nil {
			return err
		}
		images, err := app.Images()
		if err != nil {
			return err
		}
		if index < 0 || index >= len(images) {
			return &domain.NotFoundError{Kind: "image", Key: args[0]}
		}
		img := images[index]

		saved, err := app.SavedData()
		if err != nil {
			return err
		}
		src, err := annotation.DecodeImage(config.ImagePath(img.Path))
		if err != nil {
			return fmt.Errorf("while decoding image '%s': %w", img.Path, err)
		}
		dst := annotation.RenderPreview(src, &img, saved[img.ImageID])
		if err := imaging.Save(dst, args[1]); err != nil {
			return err
		}
		log.Printf("preview: wrote %s with %d saved annotations", args[1], len(saved[img.ImageID]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
}
