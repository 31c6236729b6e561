package image

import (
	"image"
	"image/draw"
)

// Overlap returns the top-left region shared by both images.
func Overlap(a image.Image, b image.Image) (int, int) {
	return min(a.Bounds().Dx(), b.Bounds().Dx()), min(a.Bounds().Dy(), b.Bounds().Dy())
}

// ToNRGBA copies img into a new zero-origin NRGBA image.
func ToNRGBA(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	if src, ok := img.(*image.NRGBA); ok {
		for y := 0; y < bounds.Dy(); y++ {
			srcOffset := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], src.Pix[srcOffset:srcOffset+dst.Stride])
		}
		return dst
	}
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}

// Crop copies the top-left width x height rectangle of img into a new image.
// The rectangle is clamped to the image bounds.
func Crop(img *image.NRGBA, width int, height int) *image.NRGBA {
	bounds := img.Bounds()
	width = max(0, min(width, bounds.Dx()))
	height = max(0, min(height, bounds.Dy()))

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	rowBytes := width * 4
	for y := 0; y < height; y++ {
		srcOffset := img.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+rowBytes], img.Pix[srcOffset:srcOffset+rowBytes])
	}
	return dst
}
