// Package session computes where a labeling session should resume and
// groups saved annotations by the catalog image they point at.
package session

import (
	"github.com/lewtec/refcocos/internal/domain"
)

// ImageStatus summarizes progress over the catalog
type ImageStatus struct {
	TotalImages      int                         `json:"total_images"`
	SavedImageIDs    []int                       `json:"saved_image_ids"`
	SavedAnnotations map[int][]domain.Annotation `json:"saved_annotations"`
}

// LastSavedIndex returns the highest catalog position that has at least one
// annotation, or 0 when nothing is saved
func LastSavedIndex(images domain.ImageRepository, annotations []domain.Annotation) int {
	last := 0
	for _, ann := range annotations {
		if ann.Image == "" {
			continue
		}
		if index, ok := images.IndexOfRef(ann.Image); ok && index > last {
			last = index
		}
	}
	return last
}

// FirstUnsavedIndex returns the first catalog position without annotations.
// When every image is saved it wraps around to 0.
func FirstUnsavedIndex(images domain.ImageRepository, annotations []domain.Annotation) int {
	saved := savedImageIDs(images, annotations)
	for index, img := range images.List() {
		if _, ok := saved[img.ImageID]; !ok {
			return index
		}
	}
	return 0
}

// GroupByImage maps image ids to their annotations, dropping annotations
// whose reference doesn't resolve to any catalog image
func GroupByImage(images domain.ImageRepository, annotations []domain.Annotation) map[int][]domain.Annotation {
	grouped := make(map[int][]domain.Annotation)
	list := images.List()
	for _, ann := range annotations {
		if ann.Image == "" {
			continue
		}
		index, ok := images.IndexOfRef(ann.Image)
		if !ok {
			continue
		}
		imageID := list[index].ImageID
		grouped[imageID] = append(grouped[imageID], ann)
	}
	return grouped
}

// Status reports the total image count and which images were saved, in
// the order their first annotation appears
func Status(images domain.ImageRepository, annotations []domain.Annotation) ImageStatus {
	status := ImageStatus{
		TotalImages:      images.Count(),
		SavedImageIDs:    []int{},
		SavedAnnotations: make(map[int][]domain.Annotation),
	}
	list := images.List()
	for _, ann := range annotations {
		if ann.Image == "" {
			continue
		}
		index, ok := images.IndexOfRef(ann.Image)
		if !ok {
			continue
		}
		imageID := list[index].ImageID
		if _, seen := status.SavedAnnotations[imageID]; !seen {
			status.SavedImageIDs = append(status.SavedImageIDs, imageID)
		}
		status.SavedAnnotations[imageID] = append(status.SavedAnnotations[imageID], ann)
	}
	return status
}

func savedImageIDs(images domain.ImageRepository, annotations []domain.Annotation) map[int]struct{} {
	saved := make(map[int]struct{})
	list := images.List()
	for _, ann := range annotations {
		if index, ok := images.IndexOfRef(ann.Image); ok {
			saved[list[index].ImageID] = struct{}{}
		}
	}
	return saved
}
