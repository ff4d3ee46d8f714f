// Package selection matches saved boxes back to the candidate catalog and
// derives the distractor count from the match.
package selection

import (
	"strconv"

	"github.com/lewtec/refcocos/internal/domain"
	"github.com/lewtec/refcocos/internal/geometry"
)

// Resolve classifies a corner form solution against the candidates of img.
// Save and session restore both go through here so they can't disagree.
func Resolve(solution *domain.Box, emptyCase bool, img *domain.CandidateImage) domain.Selection {
	if solution == nil || emptyCase {
		return domain.Selection{Kind: domain.EmptySelection, CategoryIndex: -1, BoxIndex: -1}
	}
	if img != nil {
		for catIndex, category := range img.Categories {
			for boxIndex, instance := range category.Instances {
				if geometry.ToCornerForm(instance) == *solution {
					return domain.Selection{
						Kind:          domain.CandidateSelection,
						CategoryIndex: catIndex,
						BoxIndex:      boxIndex,
					}
				}
			}
		}
	}
	box := *solution
	return domain.Selection{
		Kind:          domain.CustomSelection,
		CategoryIndex: -1,
		BoxIndex:      -1,
		Box:           &box,
	}
}

// Distractors computes the catalog derived distractor count. The second
// return is false for custom boxes, where only a manual value applies.
func Distractors(sel domain.Selection, img *domain.CandidateImage) (string, bool) {
	switch sel.Kind {
	case domain.EmptySelection:
		return strconv.Itoa(img.TotalInstances()), true
	case domain.CandidateSelection:
		if sel.CategoryIndex < 0 || sel.CategoryIndex >= len(img.Categories) {
			return "", false
		}
		return strconv.Itoa(img.Categories[sel.CategoryIndex].Count - 1), true
	default:
		return "", false
	}
}

// ApplyDistractors sets the distractor field of ann according to its selection.
// Manual values are kept verbatim for custom boxes.
func ApplyDistractors(ann *domain.Annotation, sel domain.Selection, img *domain.CandidateImage) {
	if auto, ok := Distractors(sel, img); ok {
		ann.Categories.Distractors = domain.FlexString(auto)
	}
}
