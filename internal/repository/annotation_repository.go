package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-git/go-billy/v6"
	log "github.com/sirupsen/logrus"

	"github.com/lewtec/refcocos/internal/domain"
)

// AnnotationRepository implements domain.AnnotationRepository over a single
// JSON array file that is rewritten in full on every mutation.
type AnnotationRepository struct {
	mu          sync.Mutex
	fs          billy.Filesystem
	name        string
	annotations []domain.Annotation
}

// NewAnnotationRepository creates an empty store backed by name inside fs.
// Call Load to read existing records.
func NewAnnotationRepository(fs billy.Filesystem, name string) *AnnotationRepository {
	return &AnnotationRepository{
		fs:          fs,
		name:        name,
		annotations: []domain.Annotation{},
	}
}

// Path returns the name of the backing file inside its filesystem
func (r *AnnotationRepository) Path() string {
	return r.name
}

// Load replaces the in-memory state with the contents of the backing file.
// A missing file yields an empty store; valid JSON that is not an array is
// reset to empty with a warning.
func (r *AnnotationRepository) Load() error {
	annotations, err := ReadAnnotationFile(r.fs, r.name)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.annotations = annotations
	log.Printf("store: loaded %d annotations from %s", len(annotations), r.name)
	return nil
}

// ReadAnnotationFile reads an annotation array, tolerating a missing file
func ReadAnnotationFile(fs billy.Filesystem, name string) ([]domain.Annotation, error) {
	data, err := readFile(fs, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("store: %s does not exist, starting empty", name)
			return []domain.Annotation{}, nil
		}
		return nil, &domain.LoadError{Path: name, Err: err}
	}
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &domain.LoadError{Path: name, Err: err}
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		log.Warnf("store: %s is not a list, resetting to empty", name)
		return []domain.Annotation{}, nil
	}
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &domain.LoadError{Path: name, Err: err}
	}
	annotations := make([]domain.Annotation, len(records))
	for i, record := range records {
		if bytes.Equal(bytes.TrimSpace(record), []byte("null")) {
			return nil, &domain.LoadError{Path: name, Err: fmt.Errorf("record %d is null", i)}
		}
		if err := json.Unmarshal(record, &annotations[i]); err != nil {
			return nil, &domain.LoadError{Path: name, Err: fmt.Errorf("record %d: %w", i, err)}
		}
	}
	return annotations, nil
}

// WriteAnnotationFile atomically replaces name with the given annotations
func WriteAnnotationFile(fs billy.Filesystem, name string, annotations []domain.Annotation) error {
	if annotations == nil {
		annotations = []domain.Annotation{}
	}
	if err := writeJSONAtomic(fs, name, annotations); err != nil {
		return &domain.SaveError{Path: name, Err: err}
	}
	return nil
}

// Upsert replaces the record with the same image reference and annotation id,
// or appends a new one. When no id is supplied one is generated from imageID
// and the number of records the image already has. A supplied id already
// used by another image is a ValidationError.
func (r *AnnotationRepository) Upsert(annotation domain.Annotation, imageID int) (*domain.Annotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	annotation = annotation.Clone()
	next := append(make([]domain.Annotation, 0, len(r.annotations)+1), r.annotations...)

	replaced := false
	if annotation.AnnotationID != "" {
		for i := range next {
			if next[i].AnnotationID != annotation.AnnotationID {
				continue
			}
			if next[i].Image != annotation.Image {
				return nil, &domain.ValidationError{Missing: []string{
					fmt.Sprintf("unique annotation_id ('%s' already belongs to %s)", annotation.AnnotationID, next[i].Image),
				}}
			}
			next[i] = annotation
			replaced = true
			break
		}
	} else {
		annotation.AnnotationID = r.generateID(annotation.Image, imageID)
	}
	if !replaced {
		next = append(next, annotation)
	}

	if err := WriteAnnotationFile(r.fs, r.name, next); err != nil {
		return nil, err
	}
	r.annotations = next
	if replaced {
		log.Debugf("store: updated annotation %s", annotation.AnnotationID)
	} else {
		log.Debugf("store: added annotation %s", annotation.AnnotationID)
	}
	saved := annotation.Clone()
	return &saved, nil
}

func (r *AnnotationRepository) generateID(imageRef string, imageID int) string {
	count := 0
	taken := make(map[string]struct{}, len(r.annotations))
	for _, ann := range r.annotations {
		taken[ann.AnnotationID] = struct{}{}
		if ann.Image == imageRef {
			count++
		}
	}
	// a previous delete can leave the natural id in use
	for {
		id := fmt.Sprintf("%d_%d", imageID, count)
		if _, ok := taken[id]; !ok {
			return id
		}
		count++
	}
}

// Delete removes the record with the given annotation id. A non empty
// imageRef restricts the match to that image.
func (r *AnnotationRepository) Delete(imageRef, annotationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := -1
	for i, ann := range r.annotations {
		if ann.AnnotationID == annotationID && (imageRef == "" || ann.Image == imageRef) {
			index = i
			break
		}
	}
	if index < 0 {
		return &domain.NotFoundError{Kind: "annotation", Key: annotationID}
	}

	next := make([]domain.Annotation, 0, len(r.annotations)-1)
	next = append(next, r.annotations[:index]...)
	next = append(next, r.annotations[index+1:]...)
	if err := WriteAnnotationFile(r.fs, r.name, next); err != nil {
		return err
	}
	r.annotations = next
	log.Debugf("store: deleted annotation %s", annotationID)
	return nil
}

// ListByImage retrieves the records pointing at imageRef in insertion order
func (r *AnnotationRepository) ListByImage(imageRef string) []domain.Annotation {
	r.mu.Lock()
	defer r.mu.Unlock()

	ret := []domain.Annotation{}
	for _, ann := range r.annotations {
		if ann.Image == imageRef {
			ret = append(ret, ann.Clone())
		}
	}
	return ret
}

// All retrieves a snapshot of every record
func (r *AnnotationRepository) All() []domain.Annotation {
	r.mu.Lock()
	defer r.mu.Unlock()

	ret := make([]domain.Annotation, len(r.annotations))
	for i, ann := range r.annotations {
		ret[i] = ann.Clone()
	}
	return ret
}

// Count returns the number of stored records
func (r *AnnotationRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.annotations)
}

// Verify that AnnotationRepository implements domain.AnnotationRepository
var _ domain.AnnotationRepository = (*AnnotationRepository)(nil)
