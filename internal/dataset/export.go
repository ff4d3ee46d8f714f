package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path"

	"github.com/lewtec/refcocos/internal/domain"
)

// MarkdownOptions controls WriteMarkdown
type MarkdownOptions struct {
	// ImageRoot is joined in front of each annotation's image reference
	ImageRoot string
	// LinkPrefix is joined in front of the image path in the generated link,
	// relative to where the markdown file is written
	LinkPrefix string
	// Exists reports whether an image path is present. Nil assumes it is.
	Exists func(imagePath string) bool
}

// WriteMarkdown renders a browsable listing of annotations
func WriteMarkdown(w io.Writer, annotations []domain.Annotation, opts MarkdownOptions) error {
	bw := bufio.NewWriter(w)
	fmt.Fprint(bw, "# RefCOCOS Dataset\n\n")
	for _, ann := range annotations {
		caption := ann.CaptionText()
		if caption != "" {
			fmt.Fprintf(bw, "**Caption:** %s\n\n", caption)
		} else {
			fmt.Fprint(bw, "**Caption:** *(empty)*\n\n")
		}
		fmt.Fprintf(bw, "**Empty Case:** %t\n\n", ann.Categories.EmptyCase)

		switch {
		case ann.Image == "":
			fmt.Fprint(bw, "**Image:** *Not specified*\n\n")
		default:
			imagePath := path.Join(opts.ImageRoot, ann.Image)
			if opts.Exists == nil || opts.Exists(imagePath) {
				fmt.Fprintf(bw, "![Image](%s)\n\n", path.Join(opts.LinkPrefix, imagePath))
			} else {
				fmt.Fprintf(bw, "**Image:** *Not found at %s*\n\n", imagePath)
			}
		}
		fmt.Fprint(bw, "---\n\n")
	}
	return bw.Flush()
}

// Record is one row of the training export
type Record struct {
	AnnotationID   string                `json:"annotation_id"`
	Dataset        string                `json:"dataset"`
	TextType       string                `json:"text_type"`
	Height         int                   `json:"height"`
	Width          int                   `json:"width"`
	Caption        string                `json:"caption"`
	ImagePath      string                `json:"image_path"`
	FileName       string                `json:"file_name"`
	Problem        string                `json:"problem"`
	BBox           *[4]int               `json:"bbox"`
	NormalizedBBox *domain.NormalizedBox `json:"normalized_bbox"`
	EmptyCase      bool                  `json:"empty_case"`
	Hops           string                `json:"hops"`
	Type           []string              `json:"type"`
	Occluded       bool                  `json:"occluded"`
	Distractors    string                `json:"distractors"`
	ImageIndex     int                   `json:"image_index"`
}

// ToRecord flattens an annotation into the training export layout. Pixel
// boxes are rounded to integers; missing categorical values default to "0".
func ToRecord(ann domain.Annotation) Record {
	rec := Record{
		AnnotationID:   ann.AnnotationID,
		Dataset:        ann.Dataset,
		TextType:       ann.TextType,
		Height:         ann.Height,
		Width:          ann.Width,
		Caption:        ann.CaptionText(),
		ImagePath:      ann.Image,
		FileName:       ann.FileName,
		Problem:        ann.Problem,
		NormalizedBBox: ann.NormalizedSolution,
		EmptyCase:      ann.Categories.EmptyCase,
		Hops:           ann.Categories.Hops.String(),
		Type:           append([]string{}, ann.Categories.Type...),
		Occluded:       ann.Categories.Occluded,
		Distractors:    ann.Categories.Distractors.String(),
	}
	if ann.Solution != nil {
		var bbox [4]int
		for i, coord := range ann.Solution {
			bbox[i] = int(math.Round(coord))
		}
		rec.BBox = &bbox
	}
	if ann.Categories.Hops.IsBlank() {
		rec.Hops = "0"
	}
	if ann.Categories.Distractors.IsBlank() {
		rec.Distractors = "0"
	}
	if ann.ImageIndex != nil {
		rec.ImageIndex = *ann.ImageIndex
	}
	return rec
}

// WriteJSONL writes one Record per line
func WriteJSONL(w io.Writer, annotations []domain.Annotation) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i, ann := range annotations {
		if err := enc.Encode(ToRecord(ann)); err != nil {
			return fmt.Errorf("while encoding record %d: %w", i, err)
		}
	}
	return bw.Flush()
}
