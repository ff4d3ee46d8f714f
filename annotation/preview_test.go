package annotation

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/lewtec/refcocos/internal/domain"
)

func TestRenderPreview(t *testing.T) {
	src := imaging.New(100, 200, color.White)
	img := &domain.CandidateImage{
		ImageID: 42, Width: 100, Height: 200,
		Categories: []domain.CandidateCategory{
			{Name: "Person", Count: 1, Instances: []domain.Box{{10, 10, 20, 20}}},
		},
	}
	annotations := []domain.Annotation{
		{Solution: &domain.Box{50, 50, 80, 120}},
		{Categories: domain.Categories{EmptyCase: true}},
	}

	preview := RenderPreview(src, img, annotations)
	if preview.Bounds().Dx() != 100 || preview.Bounds().Dy() != 200 {
		t.Fatalf("bounds = %v", preview.Bounds())
	}

	candidate := preview.RGBAAt(10, 20)
	if candidate.B > 100 || candidate.R < 200 {
		t.Errorf("candidate edge pixel = %v", candidate)
	}
	solution := preview.RGBAAt(50, 80)
	if solution.G > 100 || solution.R < 150 {
		t.Errorf("solution edge pixel = %v", solution)
	}
	inside := preview.RGBAAt(65, 85)
	if inside != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("pixel inside the box = %v, want white", inside)
	}
}

func TestJPEGEncoder(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "img.png")
	writeTestImage(t, filename, 8, 4)

	uri, err := JPEGEncoder{Quality: 80}.EncodeDataURI(filename)
	if err != nil {
		t.Fatalf("EncodeDataURI() error = %v", err)
	}
	if len(uri) <= len("data:image/jpeg;base64,") {
		t.Errorf("EncodeDataURI() = %q", uri)
	}

	if _, err := (JPEGEncoder{Quality: 80}).EncodeDataURI(filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Error("EncodeDataURI() of a missing file error = nil")
	}
}
