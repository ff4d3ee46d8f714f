package domain

import (
	"encoding/json"
)

// CandidateImage is one source image together with its precomputed candidate boxes
type CandidateImage struct {
	ImageID         int                 `json:"image_id"`
	FileName        string              `json:"file_name"`
	Width           int                 `json:"width"`
	Height          int                 `json:"height"`
	Path            string              `json:"path"`
	PrimaryCategory string              `json:"primary_category,omitempty"`
	Categories      []CandidateCategory `json:"categories_with_multiple_instances"`
}

// CandidateCategory groups the candidate boxes of one category, in COCO form
type CandidateCategory struct {
	CategoryID         json.RawMessage      `json:"category_id,omitempty"`
	Name               string               `json:"category_name"`
	Count              int                  `json:"count"`
	Instances          []Box                `json:"instances"`
	InstanceAttributes []map[string]float64 `json:"instance_attributes,omitempty"`
}

// CandidateFile is the on-disk layout of a candidate catalog
type CandidateFile struct {
	MinInstances     *int             `json:"min_instances,omitempty"`
	TotalImagesFound *int             `json:"total_images_found,omitempty"`
	Images           []CandidateImage `json:"images"`
}

// TotalInstances sums the candidate count over every category of the image
func (img *CandidateImage) TotalInstances() int {
	total := 0
	for _, category := range img.Categories {
		total += category.Count
	}
	return total
}

// SafeDimensions returns width and height with zero replaced by one
func (img *CandidateImage) SafeDimensions() (int, int) {
	w, h := img.Width, img.Height
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	return w, h
}

// Clone returns a deep copy of the image
func (img CandidateImage) Clone() CandidateImage {
	ret := img
	ret.Categories = make([]CandidateCategory, len(img.Categories))
	for i, category := range img.Categories {
		c := category
		c.Instances = append([]Box(nil), category.Instances...)
		if category.InstanceAttributes != nil {
			c.InstanceAttributes = make([]map[string]float64, len(category.InstanceAttributes))
			for j, attrs := range category.InstanceAttributes {
				copied := make(map[string]float64, len(attrs))
				for k, v := range attrs {
					copied[k] = v
				}
				c.InstanceAttributes[j] = copied
			}
		}
		ret.Categories[i] = c
	}
	return ret
}

// ImageRepository defines the read only access to the candidate catalog
type ImageRepository interface {
	// Get retrieves the image at the given position of the catalog order
	Get(index int) (*CandidateImage, error)

	// GetByID retrieves the image with the given image id
	GetByID(imageID int) (*CandidateImage, int, error)

	// List retrieves all images in catalog order
	List() []CandidateImage

	// Count returns the total number of images
	Count() int

	// IndexOfRef resolves an annotation image reference to a catalog position
	IndexOfRef(imageRef string) (int, bool)

	// ImageRef builds the reference an annotation uses to point at the image
	ImageRef(img *CandidateImage) string
}
