package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Annotation is one human produced referring expression label
type Annotation struct {
	AnnotationID       string         `json:"annotation_id,omitempty"`
	Dataset            string         `json:"dataset"`
	TextType           string         `json:"text_type"`
	Height             int            `json:"height"`
	Width              int            `json:"width"`
	Caption            *string        `json:"normal_caption,omitempty"`
	Image              string         `json:"image"`
	FileName           string         `json:"file_name"`
	Problem            string         `json:"problem"`
	Solution           *Box           `json:"solution"`
	NormalizedSolution *NormalizedBox `json:"normalized_solution"`
	Categories         Categories     `json:"categories"`
	ImageIndex         *int           `json:"image_index,omitempty"`

	// keys this version does not know about, kept so full rewrites don't drop them
	extra map[string]json.RawMessage
}

// Categories holds the categorical metadata attached to an annotation.
// Occluded is the canonical name; files written by the combined annotator
// use "hidden" for the same flag.
type Categories struct {
	EmptyCase   bool       `json:"empty_case"`
	Hops        FlexString `json:"hops"`
	Type        []string   `json:"type"`
	Occluded    bool       `json:"occluded"`
	Attribute   []string   `json:"attribute,omitempty"`
	Distractors FlexString `json:"distractors"`
}

// CaptionText returns the caption or the empty string when it is missing
func (a *Annotation) CaptionText() string {
	if a.Caption == nil {
		return ""
	}
	return *a.Caption
}

// Clone returns a deep copy, so callers can't reach into store state
func (a Annotation) Clone() Annotation {
	ret := a
	if a.Caption != nil {
		caption := *a.Caption
		ret.Caption = &caption
	}
	if a.Solution != nil {
		solution := *a.Solution
		ret.Solution = &solution
	}
	if a.NormalizedSolution != nil {
		normalized := *a.NormalizedSolution
		ret.NormalizedSolution = &normalized
	}
	if a.ImageIndex != nil {
		index := *a.ImageIndex
		ret.ImageIndex = &index
	}
	ret.Categories.Type = append([]string(nil), a.Categories.Type...)
	if a.Categories.Attribute != nil {
		ret.Categories.Attribute = append([]string(nil), a.Categories.Attribute...)
	}
	if a.extra != nil {
		ret.extra = make(map[string]json.RawMessage, len(a.extra))
		for k, v := range a.extra {
			ret.extra[k] = v
		}
	}
	return ret
}

type annotationAlias Annotation

var annotationKeys = map[string]struct{}{
	"annotation_id": {}, "dataset": {}, "text_type": {}, "height": {}, "width": {},
	"normal_caption": {}, "image": {}, "file_name": {}, "problem": {}, "solution": {},
	"normalized_solution": {}, "categories": {}, "image_index": {},
}

func (a *Annotation) UnmarshalJSON(data []byte) error {
	var alias annotationAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range annotationKeys {
		delete(raw, key)
	}
	*a = Annotation(alias)
	if len(raw) > 0 {
		a.extra = raw
	} else {
		a.extra = nil
	}
	return nil
}

func (a Annotation) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(annotationAlias(a))
	if err != nil || len(a.extra) == 0 {
		return data, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range a.extra {
		if _, known := merged[k]; !known {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

func (c *Categories) UnmarshalJSON(data []byte) error {
	type categoriesAlias Categories
	var alias categoriesAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var aliases struct {
		Occluded *bool `json:"occluded"`
		Hidden   *bool `json:"hidden"`
	}
	if err := json.Unmarshal(data, &aliases); err != nil {
		return err
	}
	*c = Categories(alias)
	if aliases.Occluded == nil && aliases.Hidden != nil {
		c.Occluded = *aliases.Hidden
	}
	return nil
}

// AnnotationTypes are the reasoning types a caption can be tagged with
var AnnotationTypes = []string{"spatial", "exclude", "verb", "attr"}

func IsAnnotationType(typ string) bool {
	for _, known := range AnnotationTypes {
		if typ == known {
			return true
		}
	}
	return false
}

// FlexString is a categorical value kept as a string. Older files may carry
// it as a JSON number; "5+" has no numeric equivalent so it never becomes one.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	if f, err := num.Float64(); err == nil && f == float64(int64(f)) {
		*s = FlexString(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*s = FlexString(num.String())
	return nil
}

func (s FlexString) String() string {
	return string(s)
}

// IsBlank reports whether the value is empty after trimming
func (s FlexString) IsBlank() bool {
	return strings.TrimSpace(string(s)) == ""
}

// AnnotationRepository defines the interface for annotation storage operations
type AnnotationRepository interface {
	// Load reads the backing file into memory, replacing current state
	Load() error

	// Upsert replaces the record matching (image, annotation_id) or appends a new one
	Upsert(annotation Annotation, imageID int) (*Annotation, error)

	// Delete removes the record with the given annotation id. A non empty
	// imageRef restricts the match to that image.
	Delete(imageRef, annotationID string) error

	// ListByImage retrieves the annotations of one image reference, in insertion order
	ListByImage(imageRef string) []Annotation

	// All retrieves a snapshot of every annotation
	All() []Annotation

	// Count returns the number of stored annotations
	Count() int
}
