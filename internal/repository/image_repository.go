package repository

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-git/go-billy/v6"
	log "github.com/sirupsen/logrus"

	"github.com/lewtec/refcocos/internal/domain"
)

var requiredImageKeys = []string{"image_id", "file_name", "path", "width", "height", "categories_with_multiple_instances"}

// ImageRepository implements domain.ImageRepository over a candidate JSON file.
// It is read only once loaded; a reload builds a new repository.
type ImageRepository struct {
	prefix   string
	file     domain.CandidateFile
	refIndex map[string]int
	idIndex  map[int]int
}

// NewImageRepository creates an ImageRepository from images already in memory
func NewImageRepository(images []domain.CandidateImage, prefix string) *ImageRepository {
	r := &ImageRepository{
		prefix: prefix,
		file:   domain.CandidateFile{Images: images},
	}
	r.buildIndexes()
	return r
}

// LoadImageRepository reads and validates the candidate file
func LoadImageRepository(fs billy.Filesystem, name string, prefix string) (*ImageRepository, error) {
	file, err := ReadCandidateFile(fs, name)
	if err != nil {
		return nil, err
	}
	for i := range file.Images {
		sanitizeImage(&file.Images[i])
	}
	r := &ImageRepository{prefix: prefix, file: *file}
	r.buildIndexes()
	log.Printf("catalog: loaded %d images from %s", len(file.Images), name)
	return r, nil
}

// ReadCandidateFile parses a candidate file, failing on missing required keys
func ReadCandidateFile(fs billy.Filesystem, name string) (*domain.CandidateFile, error) {
	data, err := readFile(fs, name)
	if err != nil {
		return nil, &domain.LoadError{Path: name, Err: err}
	}
	var raw struct {
		Images *[]map[string]json.RawMessage `json:"images"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &domain.LoadError{Path: name, Err: err}
	}
	if raw.Images == nil {
		return nil, &domain.LoadError{Path: name, Err: fmt.Errorf("missing key 'images'")}
	}
	for i, img := range *raw.Images {
		for _, key := range requiredImageKeys {
			if _, ok := img[key]; !ok {
				return nil, &domain.LoadError{Path: name, Err: fmt.Errorf("image %d: missing key '%s'", i, key)}
			}
		}
	}
	var file domain.CandidateFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, &domain.LoadError{Path: name, Err: err}
	}
	return &file, nil
}

// WriteCandidateFile atomically replaces name with the given catalog
func WriteCandidateFile(fs billy.Filesystem, name string, file *domain.CandidateFile) error {
	if file.Images == nil {
		file.Images = []domain.CandidateImage{}
	}
	if err := writeJSONAtomic(fs, name, file); err != nil {
		return &domain.SaveError{Path: name, Err: err}
	}
	return nil
}

func sanitizeImage(img *domain.CandidateImage) {
	if img.Width <= 0 || img.Height <= 0 {
		log.Warnf("catalog: image %d has dimensions %dx%d, using 1 for the missing side", img.ImageID, img.Width, img.Height)
		img.Width, img.Height = img.SafeDimensions()
	}
	for i := range img.Categories {
		category := &img.Categories[i]
		if category.Count != len(category.Instances) {
			log.Warnf("catalog: image %d category '%s' has count %d but %d instances", img.ImageID, category.Name, category.Count, len(category.Instances))
			category.Count = len(category.Instances)
		}
	}
}

func (r *ImageRepository) buildIndexes() {
	r.refIndex = make(map[string]int, len(r.file.Images))
	r.idIndex = make(map[int]int, len(r.file.Images))
	for i := range r.file.Images {
		img := &r.file.Images[i]
		ref := r.ImageRef(img)
		// first match in catalog order wins, same as a linear scan
		if _, ok := r.refIndex[ref]; !ok {
			r.refIndex[ref] = i
		}
		if _, ok := r.idIndex[img.ImageID]; ok {
			log.Warnf("catalog: duplicate image id %d at position %d", img.ImageID, i)
			continue
		}
		r.idIndex[img.ImageID] = i
	}
}

// Get retrieves the image at a catalog position
func (r *ImageRepository) Get(index int) (*domain.CandidateImage, error) {
	if index < 0 || index >= len(r.file.Images) {
		return nil, &domain.NotFoundError{Kind: "image", Key: strconv.Itoa(index)}
	}
	img := r.file.Images[index].Clone()
	return &img, nil
}

// GetByID retrieves an image and its catalog position by image id
func (r *ImageRepository) GetByID(imageID int) (*domain.CandidateImage, int, error) {
	index, ok := r.idIndex[imageID]
	if !ok {
		return nil, -1, &domain.NotFoundError{Kind: "image id", Key: strconv.Itoa(imageID)}
	}
	img := r.file.Images[index].Clone()
	return &img, index, nil
}

// List retrieves all images in catalog order. Callers must not modify
// the categories of the returned images.
func (r *ImageRepository) List() []domain.CandidateImage {
	return append([]domain.CandidateImage(nil), r.file.Images...)
}

// Count returns the number of images
func (r *ImageRepository) Count() int {
	return len(r.file.Images)
}

// IndexOfRef resolves an annotation image reference to a catalog position
func (r *ImageRepository) IndexOfRef(imageRef string) (int, bool) {
	index, ok := r.refIndex[imageRef]
	return index, ok
}

// ImageRef builds "{prefix}/{file_name}", the path annotations join on
func (r *ImageRepository) ImageRef(img *domain.CandidateImage) string {
	return ImageRef(r.prefix, img.FileName)
}

// File returns the catalog as it would be written back to disk
func (r *ImageRepository) File() domain.CandidateFile {
	file := r.file
	file.Images = r.List()
	return file
}

// ImageRef joins an image prefix and a file name the way annotations store it
func ImageRef(prefix, fileName string) string {
	if prefix == "" {
		return fileName
	}
	return prefix + "/" + fileName
}

// Verify that ImageRepository implements domain.ImageRepository
var _ domain.ImageRepository = (*ImageRepository)(nil)
