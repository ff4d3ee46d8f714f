package annotation

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// HashFile returns the hex sha256 of a file, used to report and compare
// the state of the annotation store
func HashFile(filepath string) (string, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	hasher := sha256.New()
	_, err = io.Copy(hasher, f)
	if err != nil {
		return "", err
	}
	hash := fmt.Sprintf("%x", hasher.Sum(nil))
	return hash, nil
}
