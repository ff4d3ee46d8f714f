package annotation

import (
	"bytes"
	"encoding/base64"
	"image"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// ImageEncoder turns an image on disk into bytes the browser can display
type ImageEncoder interface {
	// EncodeDataURI returns the image as a data: URI
	EncodeDataURI(filepath string) (string, error)
}

// JPEGEncoder re-encodes every image as JPEG, whatever its source format
type JPEGEncoder struct {
	Quality int
}

func DecodeImage(filepath string) (image.Image, error) {
	return imaging.Open(filepath, imaging.AutoOrientation(true))
}

func (e JPEGEncoder) Encode(w io.Writer, filepath string) error {
	img, err := DecodeImage(filepath)
	if err != nil {
		return err
	}
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(e.Quality))
}

func (e JPEGEncoder) EncodeDataURI(filepath string) (string, error) {
	var buf bytes.Buffer
	if err := e.Encode(&buf, filepath); err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
