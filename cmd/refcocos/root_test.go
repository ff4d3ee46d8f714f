package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"
)

// executeCommand is a helper to run a cobra command and capture its output
func executeCommand(args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	log.SetOutput(&errOut)
	defer log.SetOutput(os.Stderr)

	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)

	return out.String(), errOut.String(), err
}

const testCandidates = `{
  "min_instances": 2,
  "images": [
    {"image_id": 42, "file_name": "000000000042.jpg", "width": 100, "height": 200, "path": "000000000042.png",
     "categories_with_multiple_instances": [
       {"category_id": 1, "category_name": "Person", "count": 3, "instances": [[10, 10, 20, 20], [30, 40, 10, 20], [60, 100, 30, 50]]}
     ]},
    {"image_id": 7, "file_name": "000000000007.jpg", "width": 64, "height": 48, "path": "000000000007.png",
     "categories_with_multiple_instances": [
       {"category_id": 18, "category_name": "Dog", "count": 2, "instances": [[0, 0, 10, 10], [20, 20, 10, 10]]}
     ]}
  ]
}`

const testAnnotations = `[
  {"annotation_id": "42_0", "dataset": "refcocos_test", "text_type": "caption", "width": 100, "height": 200,
   "normal_caption": "the second person", "image": "val2017/000000000042.jpg", "file_name": "000000000042.jpg",
   "problem": "p", "solution": [30, 40, 40, 60], "normalized_solution": [300, 200, 400, 300],
   "categories": {"empty_case": false, "hops": "2", "type": ["spatial"], "occluded": false, "distractors": "2"},
   "image_index": 42},
  {"annotation_id": "7_0", "dataset": "refcocos_test", "text_type": "caption", "width": 64, "height": 48,
   "normal_caption": "a cat", "image": "val2017/000000000007.jpg", "file_name": "000000000007.jpg",
   "problem": "p", "solution": null, "normalized_solution": null,
   "categories": {"empty_case": true, "hops": "1", "type": [], "occluded": false, "distractors": "2"},
   "image_index": 7}
]`

func writeTestFile(t *testing.T, filename, content string) string {
	t.Helper()
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return filename
}

// setupProject writes a catalog, an annotation file, the images and a
// config pointing at them, returning the config path
func setupProject(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "candidates.json"), testCandidates)
	writeTestFile(t, filepath.Join(dir, "output.json"), testAnnotations)
	for name, size := range map[string][2]int{"000000000042.png": {100, 200}, "000000000007.png": {64, 48}} {
		if err := imaging.Save(imaging.New(size[0], size[1], color.White), filepath.Join(dir, name)); err != nil {
			t.Fatal(err)
		}
	}
	config := fmt.Sprintf(`data:
  candidates: %s
  output: %s
  image_base_dir: %s
`, filepath.Join(dir, "candidates.json"), filepath.Join(dir, "output.json"), dir)
	return writeTestFile(t, filepath.Join(dir, "config.yaml"), config), dir
}

func TestInitCmd(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	out, _, err := executeCommand("init", configPath)
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if !strings.Contains(out, "Configuration file created") {
		t.Errorf("unexpected output: %s", out)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("expected config file at %s: %v", configPath, err)
	}

	out, _, err = executeCommand("init", configPath)
	if err != nil {
		t.Fatalf("second init failed: %v", err)
	}
	if !strings.Contains(out, "already exists") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestStatsCmd(t *testing.T) {
	configPath, _ := setupProject(t)

	out, errOut, err := executeCommand("stats", "--config", configPath)
	if err != nil {
		t.Fatalf("stats failed: %v, output: %s", err, errOut)
	}
	for _, want := range []string{"images\t2", "saved_images\t2", "annotations\t2", "empty_cases\t1", "last_saved_index\t1", "first_unsaved_index\t0", "categories\tDog,Person"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "output_sha256\t-") {
		t.Errorf("expected a hash of the output file:\n%s", out)
	}
}

func TestFilterCmd(t *testing.T) {
	dir := t.TempDir()
	input := writeTestFile(t, filepath.Join(dir, "candidates.json"), testCandidates)
	output := filepath.Join(dir, "filtered.json")

	out, errOut, err := executeCommand("filter", "--max-instances", "2", input, output)
	if err != nil {
		t.Fatalf("filter failed: %v, output: %s", err, errOut)
	}
	if !strings.Contains(out, "removed\t1") {
		t.Errorf("unexpected output: %s", out)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	var filtered struct {
		TotalImagesFound int `json:"total_images_found"`
		Images           []struct {
			ImageID int `json:"image_id"`
		} `json:"images"`
	}
	if err := json.Unmarshal(data, &filtered); err != nil {
		t.Fatal(err)
	}
	if len(filtered.Images) != 1 || filtered.Images[0].ImageID != 7 || filtered.TotalImagesFound != 1 {
		t.Errorf("filtered = %+v", filtered)
	}
}

func TestConcatCmd(t *testing.T) {
	dir := t.TempDir()
	first := writeTestFile(t, filepath.Join(dir, "a.json"), testAnnotations)
	second := writeTestFile(t, filepath.Join(dir, "b.json"), "[]")
	output := filepath.Join(dir, "all.json")

	out, errOut, err := executeCommand("concat", output, first, second)
	if err != nil {
		t.Fatalf("concat failed: %v, output: %s", err, errOut)
	}
	if !strings.Contains(out, output+"\t2\t1") {
		t.Errorf("unexpected output: %s", out)
	}
	var combined []map[string]any
	data, _ := os.ReadFile(output)
	if err := json.Unmarshal(data, &combined); err != nil || len(combined) != 2 {
		t.Errorf("combined = %s (%v)", data, err)
	}
}

func TestBackfillCmd(t *testing.T) {
	dir := t.TempDir()
	candidates := writeTestFile(t, filepath.Join(dir, "candidates.json"), testCandidates)
	input := writeTestFile(t, filepath.Join(dir, "old.json"), `[
  {"normal_caption": "a dog", "image": "val2017/000000000007.jpg", "solution": [0, 0, 10, 10],
   "categories": {"empty_case": false, "hops": 1, "type": [], "hidden": true, "distractors": 1}},
  {"normal_caption": "gone", "image": "val2017/missing.jpg", "solution": null,
   "categories": {"empty_case": true, "hops": "1", "type": []}}
]`)

	out, errOut, err := executeCommand("backfill", "--prefix", "val2017", input, candidates)
	if err != nil {
		t.Fatalf("backfill failed: %v, output: %s", err, errOut)
	}
	if !strings.Contains(out, "index_updated\t1") || !strings.Contains(out, "unresolved\t1") {
		t.Errorf("unexpected output: %s", out)
	}

	var records []struct {
		AnnotationID string `json:"annotation_id"`
		FileName     string `json:"file_name"`
		ImageIndex   *int   `json:"image_index"`
		Categories   struct {
			Occluded bool `json:"occluded"`
		} `json:"categories"`
	}
	data, _ := os.ReadFile(input)
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatal(err)
	}
	if records[0].ImageIndex == nil || *records[0].ImageIndex != 1 {
		t.Errorf("image_index = %v, want 1", records[0].ImageIndex)
	}
	if !strings.HasPrefix(records[0].AnnotationID, "000000000007_") || records[0].FileName != "000000000007.jpg" {
		t.Errorf("record = %+v", records[0])
	}
	if !records[0].Categories.Occluded {
		t.Error("hidden flag was not carried over as occluded")
	}
	if records[1].ImageIndex != nil || records[1].AnnotationID != "" {
		t.Errorf("unresolved record was modified: %+v", records[1])
	}
}

func TestExportAndQueryCmd(t *testing.T) {
	configPath, dir := setupProject(t)

	t.Run("jsonl", func(t *testing.T) {
		output := filepath.Join(dir, "train.jsonl")
		if _, errOut, err := executeCommand("export", "--config", configPath, "jsonl", output); err != nil {
			t.Fatalf("export failed: %v, output: %s", err, errOut)
		}
		data, _ := os.ReadFile(output)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 2 || !strings.Contains(lines[0], `"bbox":[30,40,40,60]`) {
			t.Errorf("jsonl = %s", data)
		}
	})

	t.Run("html", func(t *testing.T) {
		output := filepath.Join(dir, "dataset.html")
		if _, errOut, err := executeCommand("export", "--config", configPath, "html", output); err != nil {
			t.Fatalf("export failed: %v, output: %s", err, errOut)
		}
		data, _ := os.ReadFile(output)
		if !strings.Contains(string(data), "<h1>RefCOCOS Dataset</h1>") || !strings.Contains(string(data), "the second person") {
			t.Errorf("html = %s", data)
		}
	})

	database := filepath.Join(dir, "export.db")
	if _, errOut, err := executeCommand("export", "--config", configPath, "sqlite", database); err != nil {
		t.Fatalf("export failed: %v, output: %s", err, errOut)
	}

	t.Run("per image counts", func(t *testing.T) {
		out, errOut, err := executeCommand("query", database)
		if err != nil {
			t.Fatalf("query failed: %v, output: %s", err, errOut)
		}
		if !strings.Contains(out, "val2017/000000000042.jpg\t1") || !strings.Contains(out, "val2017/000000000007.jpg\t1") {
			t.Errorf("unexpected output: %s", out)
		}
	})

	t.Run("captions by hops", func(t *testing.T) {
		out, errOut, err := executeCommand("query", database, "hops", "2")
		if err != nil {
			t.Fatalf("query failed: %v, output: %s", err, errOut)
		}
		if !strings.Contains(out, "the second person") || strings.Contains(out, "a cat") {
			t.Errorf("unexpected output: %s", out)
		}
	})

	t.Run("unknown query", func(t *testing.T) {
		if _, _, err := executeCommand("query", database, "nope"); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestPreviewCmd(t *testing.T) {
	configPath, dir := setupProject(t)
	output := filepath.Join(dir, "preview.png")

	if _, errOut, err := executeCommand("preview", "--config", configPath, "0", output); err != nil {
		t.Fatalf("preview failed: %v, output: %s", err, errOut)
	}
	img, err := imaging.Open(output)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 200 {
		t.Errorf("preview bounds = %v", img.Bounds())
	}

	if _, _, err := executeCommand("preview", "--config", configPath, "5", output); err == nil {
		t.Error("expected an error for an index out of range")
	}
}
