// Package dataset holds the offline tools that reshape candidate catalogs
// and annotation files outside of a labeling session.
package dataset

import (
	"encoding/json"

	"github.com/lewtec/refcocos/internal/domain"
	"github.com/lewtec/refcocos/internal/geometry"
)

// DefaultMaxInstances is the per category instance limit used by Filter
const DefaultMaxInstances = 8

// DefaultIoUThreshold is the overlap at which two person boxes are merged
const DefaultIoUThreshold = 0.75

// PersonCategoryID is the Open Images id of the merged Person category
const PersonCategoryID = "/m/01g317"

// PersonCategories lists the category names folded into "Person"
var PersonCategories = []string{
	"Man", "Woman", "Boy", "Girl", "Person", "Human", "Child", "Adult", "Human body",
	"Mammal",
}

// FilterStats reports what Filter did
type FilterStats struct {
	Original int
	Removed  int
	Kept     int
}

// Filter drops every image having a category with more than maxInstances
// candidates. The result carries the input min_instances and the new total.
func Filter(file *domain.CandidateFile, maxInstances int) (*domain.CandidateFile, FilterStats) {
	kept := []domain.CandidateImage{}
	for _, img := range file.Images {
		if exceedsInstances(img, maxInstances) {
			continue
		}
		kept = append(kept, img)
	}
	total := len(kept)
	stats := FilterStats{
		Original: len(file.Images),
		Removed:  len(file.Images) - len(kept),
		Kept:     len(kept),
	}
	return &domain.CandidateFile{
		MinInstances:     file.MinInstances,
		TotalImagesFound: &total,
		Images:           kept,
	}, stats
}

func exceedsInstances(img domain.CandidateImage, maxInstances int) bool {
	for _, category := range img.Categories {
		if category.Count > maxInstances {
			return true
		}
	}
	return false
}

// ConsolidateStats reports what Consolidate did
type ConsolidateStats struct {
	WithPersonCategories int
	Consolidated         int
	Reindexed            int
}

// Consolidate folds the person-like categories of every image into a single
// "Person" category and reindexes image ids to their catalog position.
// A lone person category is only renamed. Several are merged: boxes whose
// IoU with a group leader reaches threshold join that group, the leader's box
// is kept and instance attributes are merged by maximum.
func Consolidate(file *domain.CandidateFile, threshold float64) (*domain.CandidateFile, ConsolidateStats) {
	persons := make(map[string]struct{}, len(PersonCategories))
	for _, name := range PersonCategories {
		persons[name] = struct{}{}
	}
	isPerson := func(name string) bool {
		_, ok := persons[name]
		return ok
	}

	var stats ConsolidateStats
	images := make([]domain.CandidateImage, len(file.Images))
	for i, original := range file.Images {
		img := original.Clone()
		before := countCategories(img, isPerson)
		if before > 0 {
			stats.WithPersonCategories++
		}
		consolidateImage(&img, isPerson, threshold)
		after := countCategories(img, func(name string) bool { return name == "Person" })
		if before > after {
			stats.Consolidated++
		}
		img.ImageID = i
		images[i] = img
	}
	stats.Reindexed = len(images)

	ret := *file
	ret.Images = images
	return &ret, stats
}

func countCategories(img domain.CandidateImage, match func(string) bool) int {
	n := 0
	for _, category := range img.Categories {
		if match(category.Name) {
			n++
		}
	}
	return n
}

func consolidateImage(img *domain.CandidateImage, isPerson func(string) bool, threshold float64) {
	var person, other []domain.CandidateCategory
	for _, category := range img.Categories {
		if isPerson(category.Name) {
			person = append(person, category)
		} else {
			other = append(other, category)
		}
	}
	if len(person) == 0 {
		return
	}
	if isPerson(img.PrimaryCategory) {
		img.PrimaryCategory = "Person"
	}
	if len(person) == 1 {
		person[0].Name = "Person"
		img.Categories = append(other, person[0])
		return
	}

	type instance struct {
		box   domain.Box
		attrs map[string]float64
	}
	var all []instance
	for _, category := range person {
		for j, box := range category.Instances {
			var attrs map[string]float64
			if j < len(category.InstanceAttributes) {
				attrs = category.InstanceAttributes[j]
			}
			all = append(all, instance{box: box, attrs: attrs})
		}
	}

	used := make([]bool, len(all))
	merged := domain.CandidateCategory{
		CategoryID:         json.RawMessage(`"` + PersonCategoryID + `"`),
		Name:               "Person",
		Instances:          []domain.Box{},
		InstanceAttributes: []map[string]float64{},
	}
	for i, leader := range all {
		if used[i] {
			continue
		}
		used[i] = true
		attrs := make(map[string]float64)
		mergeMax(attrs, leader.attrs)
		for j := range all {
			if used[j] {
				continue
			}
			if geometry.IoU(leader.box, all[j].box) >= threshold {
				used[j] = true
				mergeMax(attrs, all[j].attrs)
			}
		}
		merged.Instances = append(merged.Instances, leader.box)
		merged.InstanceAttributes = append(merged.InstanceAttributes, attrs)
	}
	merged.Count = len(merged.Instances)
	img.Categories = append(other, merged)
}

func mergeMax(dst, src map[string]float64) {
	for k, v := range src {
		if cur, ok := dst[k]; !ok || v > cur {
			dst[k] = v
		}
	}
}
