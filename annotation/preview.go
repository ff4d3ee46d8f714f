package annotation

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/llgcode/draw2d/draw2dimg"

	"github.com/lewtec/refcocos/internal/domain"
	"github.com/lewtec/refcocos/internal/geometry"
)

var (
	CandidateColor = color.RGBA{255, 215, 0, 255}
	SolutionColor  = color.RGBA{220, 20, 60, 255}
)

// RenderPreview draws every candidate box of img in yellow and every saved
// solution in red over a copy of src
func RenderPreview(src image.Image, img *domain.CandidateImage, annotations []domain.Annotation) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)

	gc := draw2dimg.NewGraphicContext(dst)
	gc.SetLineWidth(2)

	gc.SetStrokeColor(CandidateColor)
	for _, category := range img.Categories {
		for _, instance := range category.Instances {
			strokeBox(gc, geometry.ToCornerForm(instance))
		}
	}

	gc.SetStrokeColor(SolutionColor)
	for _, ann := range annotations {
		if ann.Solution == nil {
			continue
		}
		strokeBox(gc, *ann.Solution)
	}
	return dst
}

func strokeBox(gc *draw2dimg.GraphicContext, b domain.Box) {
	gc.MoveTo(b[0], b[1])
	gc.LineTo(b[2], b[1])
	gc.LineTo(b[2], b[3])
	gc.LineTo(b[0], b[3])
	gc.Close()
	gc.Stroke()
}
