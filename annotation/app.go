package annotation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v6"
	log "github.com/sirupsen/logrus"

	"github.com/lewtec/refcocos/internal/domain"
	"github.com/lewtec/refcocos/internal/geometry"
	"github.com/lewtec/refcocos/internal/repository"
	"github.com/lewtec/refcocos/internal/selection"
	"github.com/lewtec/refcocos/internal/session"
)

// AnnotatorApp owns the candidate catalog and the annotation store of one
// labeling session. Reload swaps both under the write lock, every other
// operation runs under the read lock and the store serializes its writes.
type AnnotatorApp struct {
	Config  *Config
	Encoder ImageEncoder
	// FS holds the data files when set, with the configured paths taken
	// as names inside it. When nil each path is opened on the OS filesystem.
	FS billy.Filesystem

	mu     sync.RWMutex
	images *repository.ImageRepository
	store  *repository.AnnotationRepository
}

func NewAnnotatorApp(config *Config) *AnnotatorApp {
	return &AnnotatorApp{
		Config:  config,
		Encoder: JPEGEncoder{Quality: config.Image.JPEGQuality},
	}
}

// ImageResponse is what the labeling UI receives for one catalog position
type ImageResponse struct {
	Index       int    `json:"index"`
	TotalImages int    `json:"total_images"`
	ImageData   string `json:"image_data"`
	domain.CandidateImage
	Annotations []SavedAnnotation `json:"annotations"`
}

// SavedAnnotation pairs a stored annotation with the selection it restores to
type SavedAnnotation struct {
	Annotation domain.Annotation `json:"annotation"`
	Selection  domain.Selection  `json:"selection"`
}

func (a *AnnotatorApp) open(filename string) (billy.Filesystem, string) {
	if a.FS != nil {
		return a.FS, filename
	}
	return repository.OpenFile(filename)
}

// LoadData reads the catalog and the annotation store from disk, replacing
// the current state only when both succeed. The write lock is held for the
// whole read so no save can be in flight while the store file is read.
func (a *AnnotatorApp) LoadData() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	fs, name := a.open(a.Config.Data.Candidates)
	images, err := repository.LoadImageRepository(fs, name, a.Config.Data.ImagePrefix)
	if err != nil {
		return "", err
	}
	fs, name = a.open(a.Config.Data.Output)
	store := repository.NewAnnotationRepository(fs, name)
	if err := store.Load(); err != nil {
		return "", err
	}

	a.images = images
	a.store = store

	return fmt.Sprintf("Loaded %d images with multiple instances", images.Count()), nil
}

// Reload is LoadData under another name, kept for the HTTP surface
func (a *AnnotatorApp) Reload() (string, error) {
	return a.LoadData()
}

func (a *AnnotatorApp) loaded() (*repository.ImageRepository, *repository.AnnotationRepository, error) {
	if a.images == nil || a.store == nil {
		return nil, nil, &domain.LoadError{Path: a.Config.Data.Candidates, Err: errors.New("no data loaded")}
	}
	return a.images, a.store, nil
}

// GetImage returns the image at a catalog position with its encoded bytes
// and every saved annotation resolved against its candidates
func (a *AnnotatorApp) GetImage(index int) (*ImageResponse, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	images, store, err := a.loaded()
	if err != nil {
		return nil, err
	}
	img, err := images.Get(index)
	if err != nil {
		return nil, err
	}
	data, err := a.Encoder.EncodeDataURI(a.Config.ImagePath(img.Path))
	if err != nil {
		return nil, fmt.Errorf("while encoding image '%s': %w", img.Path, err)
	}
	ret := &ImageResponse{
		Index:          index,
		TotalImages:    images.Count(),
		ImageData:      data,
		CandidateImage: *img,
		Annotations:    []SavedAnnotation{},
	}
	for _, ann := range store.ListByImage(images.ImageRef(img)) {
		ret.Annotations = append(ret.Annotations, SavedAnnotation{
			Annotation: ann,
			Selection:  selection.Resolve(ann.Solution, ann.Categories.EmptyCase, img),
		})
	}
	return ret, nil
}

// Save fills the fields derived from the catalog, validates the result and
// upserts it into the store
func (a *AnnotatorApp) Save(imageID int, ann domain.Annotation) (*domain.Annotation, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	images, store, err := a.loaded()
	if err != nil {
		return nil, err
	}
	img, _, err := images.GetByID(imageID)
	if err != nil {
		return nil, err
	}

	ann = ann.Clone()
	if ann.Caption != nil {
		caption := strings.TrimSpace(*ann.Caption)
		ann.Caption = &caption
	}
	if err := validateAnnotation(&ann); err != nil {
		return nil, err
	}

	ann.Image = images.ImageRef(img)
	ann.FileName = img.FileName
	ann.Width, ann.Height = img.Width, img.Height
	if ann.Dataset == "" {
		ann.Dataset = a.Config.Dataset.Name
	}
	if ann.TextType == "" {
		ann.TextType = a.Config.Dataset.TextType
	}
	ann.Problem = a.Config.Problem(ann.CaptionText())
	ann.ImageIndex = &imageID

	sel := selection.Resolve(ann.Solution, ann.Categories.EmptyCase, img)
	ann.NormalizedSolution = geometry.NormalizeOptional(ann.Solution, img.Width, img.Height)
	selection.ApplyDistractors(&ann, sel, img)

	saved, err := store.Upsert(ann, imageID)
	if err != nil {
		log.Errorf("store: %s", err)
		return nil, err
	}
	log.WithField("selection", sel.Kind.String()).Printf("store: saved annotation %s for image %d", saved.AnnotationID, imageID)
	return saved, nil
}

func validateAnnotation(ann *domain.Annotation) error {
	var missing []string
	if strings.TrimSpace(ann.CaptionText()) == "" {
		missing = append(missing, "caption")
	}
	if ann.Categories.EmptyCase {
		if ann.Solution != nil {
			missing = append(missing, "empty case must have a null bounding box")
		}
	} else {
		if ann.Solution == nil {
			missing = append(missing, "bounding box")
		} else if !ann.Solution.Valid() {
			missing = append(missing, "non degenerate bounding box")
		}
	}
	if ann.Categories.Hops.IsBlank() {
		missing = append(missing, "hops value")
	}
	types := make([]string, 0, len(ann.Categories.Type))
	seen := map[string]struct{}{}
	for _, typ := range ann.Categories.Type {
		typ = strings.TrimSpace(typ)
		if !domain.IsAnnotationType(typ) {
			missing = append(missing, fmt.Sprintf("type one of %s (got '%s')", strings.Join(domain.AnnotationTypes, ", "), typ))
			continue
		}
		if _, ok := seen[typ]; ok {
			continue
		}
		seen[typ] = struct{}{}
		types = append(types, typ)
	}
	ann.Categories.Type = types
	if len(missing) > 0 {
		return &domain.ValidationError{Missing: missing}
	}
	return nil
}

// Delete removes an annotation of the image with the given id
func (a *AnnotatorApp) Delete(imageID int, annotationID string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	images, store, err := a.loaded()
	if err != nil {
		return err
	}
	img, _, err := images.GetByID(imageID)
	if err != nil {
		return err
	}
	if err := store.Delete(images.ImageRef(img), annotationID); err != nil {
		return err
	}
	log.Printf("store: deleted annotation %s of image %d", annotationID, imageID)
	return nil
}

// SavedData groups every annotation by the id of the image it resolves to
func (a *AnnotatorApp) SavedData() (map[int][]domain.Annotation, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	images, store, err := a.loaded()
	if err != nil {
		return nil, err
	}
	return session.GroupByImage(images, store.All()), nil
}

// Annotations returns a snapshot of the store
func (a *AnnotatorApp) Annotations() ([]domain.Annotation, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, store, err := a.loaded()
	if err != nil {
		return nil, err
	}
	return store.All(), nil
}

// Images returns the catalog in order
func (a *AnnotatorApp) Images() ([]domain.CandidateImage, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	images, _, err := a.loaded()
	if err != nil {
		return nil, err
	}
	return images.List(), nil
}

func (a *AnnotatorApp) LastSavedIndex() (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	images, store, err := a.loaded()
	if err != nil {
		return 0, err
	}
	return session.LastSavedIndex(images, store.All()), nil
}

func (a *AnnotatorApp) FirstUnsavedIndex() (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	images, store, err := a.loaded()
	if err != nil {
		return 0, err
	}
	return session.FirstUnsavedIndex(images, store.All()), nil
}

func (a *AnnotatorApp) Status() (*session.ImageStatus, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	images, store, err := a.loaded()
	if err != nil {
		return nil, err
	}
	status := session.Status(images, store.All())
	return &status, nil
}

// Summary is the progress overview shown on the landing page and by stats
type Summary struct {
	TotalImages       int
	SavedImages       int
	Annotations       int
	EmptyCases        int
	LastSavedIndex    int
	FirstUnsavedIndex int
	Categories        []string
}

func (a *AnnotatorApp) Summary() (*Summary, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	images, store, err := a.loaded()
	if err != nil {
		return nil, err
	}
	all := store.All()
	status := session.Status(images, all)
	ret := &Summary{
		TotalImages:       status.TotalImages,
		SavedImages:       len(status.SavedImageIDs),
		Annotations:       len(all),
		LastSavedIndex:    session.LastSavedIndex(images, all),
		FirstUnsavedIndex: session.FirstUnsavedIndex(images, all),
	}
	for _, ann := range all {
		if ann.Categories.EmptyCase {
			ret.EmptyCases++
		}
	}
	seen := map[string]struct{}{}
	for _, img := range images.List() {
		for _, category := range img.Categories {
			if _, ok := seen[category.Name]; !ok {
				seen[category.Name] = struct{}{}
				ret.Categories = append(ret.Categories, category.Name)
			}
		}
	}
	sort.Strings(ret.Categories)
	return ret, nil
}
