package repository

import (
	"testing"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/osfs"

	"github.com/lewtec/refcocos/internal/domain"
)

// SetupTestFS creates an in-memory filesystem for testing
func SetupTestFS(t *testing.T) billy.Filesystem {
	t.Helper()
	return memfs.New()
}

// SetupTestDir creates a filesystem rooted at a fresh temporary directory,
// returning it together with the directory path
func SetupTestDir(t *testing.T) (billy.Filesystem, string) {
	t.Helper()
	dir := t.TempDir()
	return osfs.New(dir), dir
}

// MustWriteFile writes content to name and fails the test if it errors
func MustWriteFile(t *testing.T, fs billy.Filesystem, name string, content string) {
	t.Helper()
	f, err := fs.Create(name)
	if err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	if _, err := f.Write([]byte(content)); err != nil {
		f.Close()
		t.Fatalf("failed to write %s: %v", name, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close %s: %v", name, err)
	}
}

// MustReadFile reads name and fails the test if it errors
func MustReadFile(t *testing.T, fs billy.Filesystem, name string) []byte {
	t.Helper()
	data, err := readFile(fs, name)
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return data
}

// TestImages returns a small catalog: image 42 with a Person category of
// three instances, and image 7 with two dogs
func TestImages() []domain.CandidateImage {
	return []domain.CandidateImage{
		{
			ImageID:  42,
			FileName: "000000000042.jpg",
			Width:    100,
			Height:   200,
			Path:     "images/000000000042.jpg",
			Categories: []domain.CandidateCategory{
				{Name: "Person", Count: 3, Instances: []domain.Box{{10, 10, 20, 20}, {30, 40, 10, 20}, {60, 100, 30, 50}}},
			},
		},
		{
			ImageID:  7,
			FileName: "000000000007.jpg",
			Width:    640,
			Height:   480,
			Path:     "images/000000000007.jpg",
			Categories: []domain.CandidateCategory{
				{Name: "Dog", Count: 2, Instances: []domain.Box{{0, 0, 50, 50}, {100, 100, 50, 50}}},
			},
		},
	}
}
