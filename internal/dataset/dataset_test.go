package dataset

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/lewtec/refcocos/internal/domain"
	"github.com/lewtec/refcocos/internal/repository"
)

func TestFilter(t *testing.T) {
	minInstances := 2
	file := &domain.CandidateFile{
		MinInstances: &minInstances,
		Images: []domain.CandidateImage{
			{ImageID: 1, Categories: []domain.CandidateCategory{{Name: "Car", Count: 3}}},
			{ImageID: 2, Categories: []domain.CandidateCategory{{Name: "Car", Count: 2}, {Name: "Tree", Count: 9}}},
			{ImageID: 3, Categories: []domain.CandidateCategory{{Name: "Dog", Count: 8}}},
		},
	}

	filtered, stats := Filter(file, DefaultMaxInstances)
	if stats.Removed != 1 || stats.Kept != 2 || stats.Original != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if len(filtered.Images) != 2 || filtered.Images[0].ImageID != 1 || filtered.Images[1].ImageID != 3 {
		t.Errorf("kept images = %v", filtered.Images)
	}
	if *filtered.TotalImagesFound != 2 || *filtered.MinInstances != 2 {
		t.Errorf("header = %d %d", *filtered.MinInstances, *filtered.TotalImagesFound)
	}
}

func TestConsolidate(t *testing.T) {
	file := &domain.CandidateFile{
		Images: []domain.CandidateImage{
			{
				ImageID:         10,
				PrimaryCategory: "Man",
				Categories: []domain.CandidateCategory{
					{Name: "Man", Count: 2, Instances: []domain.Box{{0, 0, 10, 10}, {50, 50, 10, 10}},
						InstanceAttributes: []map[string]float64{{"occluded": 0}, {"occluded": 1}}},
					{Name: "Car", Count: 2, Instances: []domain.Box{{100, 100, 5, 5}, {120, 120, 5, 5}}},
					{Name: "Woman", Count: 2, Instances: []domain.Box{{0, 0, 10, 9}, {200, 200, 10, 10}},
						InstanceAttributes: []map[string]float64{{"occluded": 1, "truncated": 1}, {}}},
				},
			},
			{
				ImageID: 20,
				Categories: []domain.CandidateCategory{
					{Name: "Boy", Count: 2, Instances: []domain.Box{{0, 0, 1, 1}, {5, 5, 1, 1}}},
				},
			},
			{
				ImageID: 30,
				Categories: []domain.CandidateCategory{
					{Name: "Dog", Count: 2, Instances: []domain.Box{{0, 0, 1, 1}, {5, 5, 1, 1}}},
				},
			},
		},
	}

	out, stats := Consolidate(file, DefaultIoUThreshold)

	t.Run("merges overlapping person boxes", func(t *testing.T) {
		img := out.Images[0]
		if len(img.Categories) != 2 {
			t.Fatalf("categories = %v", img.Categories)
		}
		if img.Categories[0].Name != "Car" {
			t.Errorf("other categories should come first, got %s", img.Categories[0].Name)
		}
		person := img.Categories[1]
		if person.Name != "Person" || string(person.CategoryID) != `"/m/01g317"` {
			t.Errorf("merged category = %s %s", person.Name, person.CategoryID)
		}
		// {0,0,10,10} and {0,0,10,9} overlap at 0.9
		if person.Count != 3 || len(person.Instances) != 3 {
			t.Fatalf("Count = %d, instances = %v", person.Count, person.Instances)
		}
		if person.Instances[0] != (domain.Box{0, 0, 10, 10}) {
			t.Errorf("group leader box = %v", person.Instances[0])
		}
		attrs := person.InstanceAttributes[0]
		if attrs["occluded"] != 1 || attrs["truncated"] != 1 {
			t.Errorf("merged attributes = %v", attrs)
		}
		if img.PrimaryCategory != "Person" {
			t.Errorf("PrimaryCategory = %s", img.PrimaryCategory)
		}
	})

	t.Run("renames a single person category", func(t *testing.T) {
		img := out.Images[1]
		if img.Categories[0].Name != "Person" || img.Categories[0].Count != 2 {
			t.Errorf("category = %+v", img.Categories[0])
		}
	})

	t.Run("reindexes image ids", func(t *testing.T) {
		for i, img := range out.Images {
			if img.ImageID != i {
				t.Errorf("image %d has id %d", i, img.ImageID)
			}
		}
	})

	t.Run("leaves the input untouched", func(t *testing.T) {
		if file.Images[0].ImageID != 10 || file.Images[0].Categories[0].Name != "Man" {
			t.Error("input catalog was modified")
		}
	})

	if stats.WithPersonCategories != 2 || stats.Consolidated != 1 || stats.Reindexed != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestConcat(t *testing.T) {
	a := []domain.Annotation{{AnnotationID: "a"}, {AnnotationID: "b", Categories: domain.Categories{EmptyCase: true}}}
	b := []domain.Annotation{{AnnotationID: "c", Categories: domain.Categories{EmptyCase: true}}}

	combined, stats := Concat(a, b)
	if len(combined) != 3 || combined[2].AnnotationID != "c" {
		t.Errorf("combined = %v", combined)
	}
	if stats.TotalEmpty != 2 || stats.EmptyCases[0] != 1 || stats.Sizes[1] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestBackfill(t *testing.T) {
	catalog := repository.NewImageRepository([]domain.CandidateImage{
		{ImageID: 5, FileName: "a.jpg"},
		{ImageID: 6, FileName: "b.jpg"},
	}, "open_image_v7")
	fixed := time.UnixMilli(1700000000000)
	now := func() time.Time { return fixed }

	newAnnotations := func() []domain.Annotation {
		index := 9
		return []domain.Annotation{
			{Image: "open_image_v7/b.jpg"},
			{Image: "open_image_v7/a.jpg", AnnotationID: "keep", ImageIndex: &index},
			{Image: "elsewhere/c.jpg"},
			{Image: "open_image_v7/a.jpg"},
		}
	}

	t.Run("default mode", func(t *testing.T) {
		anns := newAnnotations()
		stats := Backfill(anns, catalog, BackfillOptions{Now: now})
		if *anns[0].ImageIndex != 1 || anns[0].FileName != "b.jpg" {
			t.Errorf("first record = %+v", anns[0])
		}
		if anns[0].AnnotationID != "b_1700000000000" || anns[3].AnnotationID != "a_1700000000001" {
			t.Errorf("ids = %s %s", anns[0].AnnotationID, anns[3].AnnotationID)
		}
		if anns[1].AnnotationID != "keep" || *anns[1].ImageIndex != 0 {
			t.Errorf("existing record = %s %d", anns[1].AnnotationID, *anns[1].ImageIndex)
		}
		if anns[2].AnnotationID != "" || anns[2].ImageIndex != nil {
			t.Error("unresolved record should be left alone")
		}
		if stats.IndexUpdated != 3 || stats.IDsAdded != 2 || stats.Unresolved != 1 {
			t.Errorf("stats = %+v", stats)
		}
	})

	t.Run("force mode", func(t *testing.T) {
		anns := newAnnotations()
		Backfill(anns, catalog, BackfillOptions{Now: now, Force: true})
		if *anns[1].ImageIndex != 9 {
			t.Errorf("existing image_index overwritten: %d", *anns[1].ImageIndex)
		}
		if anns[2].AnnotationID != "c_1700000000001" || anns[2].FileName != "c.jpg" {
			t.Errorf("unresolved record = %s %s", anns[2].AnnotationID, anns[2].FileName)
		}
	})
}

func TestWriteMarkdown(t *testing.T) {
	caption := "the red car"
	anns := []domain.Annotation{
		{Caption: &caption, Image: "val2017/1.jpg"},
		{Image: "val2017/2.jpg", Categories: domain.Categories{EmptyCase: true}},
		{},
	}
	var buf bytes.Buffer
	err := WriteMarkdown(&buf, anns, MarkdownOptions{
		ImageRoot:  "images",
		LinkPrefix: "..",
		Exists:     func(p string) bool { return p == "images/val2017/1.jpg" },
	})
	if err != nil {
		t.Fatalf("WriteMarkdown() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"# RefCOCOS Dataset\n\n",
		"**Caption:** the red car\n\n",
		"![Image](../images/val2017/1.jpg)",
		"**Caption:** *(empty)*",
		"**Empty Case:** true",
		"**Image:** *Not found at images/val2017/2.jpg*",
		"**Image:** *Not specified*",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q", want)
		}
	}
	if strings.Count(out, "---\n\n") != 3 {
		t.Errorf("expected one separator per record")
	}
}

func TestWriteJSONL(t *testing.T) {
	caption := "a person"
	index := 42
	anns := []domain.Annotation{
		{
			AnnotationID:       "42_0",
			Caption:            &caption,
			Image:              "val2017/42.jpg",
			Solution:           &domain.Box{30.4, 40.5, 40, 60},
			NormalizedSolution: &domain.NormalizedBox{304, 203, 400, 300},
			Categories:         domain.Categories{Hops: "2", Type: []string{"spatial"}, Distractors: "5+"},
			ImageIndex:         &index,
		},
		{AnnotationID: "42_1", Categories: domain.Categories{EmptyCase: true}},
	}
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, anns); err != nil {
		t.Fatalf("WriteJSONL() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first["caption"] != "a person" || first["image_path"] != "val2017/42.jpg" || first["distractors"] != "5+" {
		t.Errorf("first record = %v", first)
	}
	bbox := first["bbox"].([]any)
	if bbox[0].(float64) != 30 || bbox[1].(float64) != 41 {
		t.Errorf("bbox = %v, want rounded integers", bbox)
	}

	var second Record
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatal(err)
	}
	if second.BBox != nil || second.Hops != "0" || second.Distractors != "0" || second.Type == nil {
		t.Errorf("second record = %+v", second)
	}
}
