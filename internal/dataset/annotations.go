package dataset

import (
	"fmt"
	"path"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lewtec/refcocos/internal/domain"
)

// ConcatStats reports the size and empty case count of each input and of
// the combined result
type ConcatStats struct {
	Sizes      []int
	EmptyCases []int
	Total      int
	TotalEmpty int
}

// Concat appends annotation lists in order
func Concat(lists ...[]domain.Annotation) ([]domain.Annotation, ConcatStats) {
	combined := []domain.Annotation{}
	var stats ConcatStats
	for _, list := range lists {
		empty := CountEmptyCases(list)
		stats.Sizes = append(stats.Sizes, len(list))
		stats.EmptyCases = append(stats.EmptyCases, empty)
		stats.TotalEmpty += empty
		combined = append(combined, list...)
	}
	stats.Total = len(combined)
	return combined, stats
}

// CountEmptyCases counts annotations flagged as empty case
func CountEmptyCases(annotations []domain.Annotation) int {
	n := 0
	for _, ann := range annotations {
		if ann.Categories.EmptyCase {
			n++
		}
	}
	return n
}

// BackfillOptions controls Backfill
type BackfillOptions struct {
	// Force fills missing ids on every record, not only on those that
	// resolve to a catalog image, and keeps existing image_index values
	Force bool
	// Now defaults to time.Now
	Now func() time.Time
}

// BackfillStats reports what Backfill changed
type BackfillStats struct {
	IndexUpdated int
	IDsAdded     int
	Unresolved   int
}

// Backfill adds image_index, file_name and annotation_id to records written
// by older versions of the annotator. Generated ids are "{stem}_{unixMillis}"
// with the timestamp bumped so ids from a single run never collide.
func Backfill(annotations []domain.Annotation, images domain.ImageRepository, opts BackfillOptions) BackfillStats {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var lastMillis int64
	nextMillis := func() int64 {
		ms := now().UnixMilli()
		if ms <= lastMillis {
			ms = lastMillis + 1
		}
		lastMillis = ms
		return ms
	}

	var stats BackfillStats
	for i := range annotations {
		ann := &annotations[i]
		index, resolved := images.IndexOfRef(ann.Image)

		if !opts.Force {
			if !resolved {
				log.Warnf("backfill: could not find index for image %s", ann.Image)
				stats.Unresolved++
				continue
			}
			ann.ImageIndex = &index
			stats.IndexUpdated++
			if ann.AnnotationID == "" {
				fillFileName(ann)
				ann.AnnotationID = generatedID(ann, i, false, nextMillis())
				stats.IDsAdded++
			}
			continue
		}

		if ann.ImageIndex == nil && resolved {
			ann.ImageIndex = &index
			stats.IndexUpdated++
		}
		if !resolved {
			stats.Unresolved++
		}
		fillFileName(ann)
		if ann.AnnotationID == "" {
			ann.AnnotationID = generatedID(ann, i, true, nextMillis())
			stats.IDsAdded++
		}
	}
	return stats
}

func fillFileName(ann *domain.Annotation) {
	if ann.FileName == "" && ann.Image != "" {
		ann.FileName = path.Base(ann.Image)
	}
}

func generatedID(ann *domain.Annotation, position int, withPosition bool, millis int64) string {
	name := ann.FileName
	if name == "" && ann.Image != "" {
		name = path.Base(ann.Image)
	}
	if name == "" {
		if withPosition {
			return fmt.Sprintf("unknown_%d_%d", position, millis)
		}
		return fmt.Sprintf("unknown_%d", millis)
	}
	stem, _, _ := strings.Cut(name, ".")
	return fmt.Sprintf("%s_%d", stem, millis)
}
