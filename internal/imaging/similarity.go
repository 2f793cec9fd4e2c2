// Package imaging compares extracted slide frames so near-identical pages can be dropped.
package imaging

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	"golang.org/x/image/draw"
)

// Thumbnail size used for comparisons, 16:9
const (
	thumbWidth  = 64
	thumbHeight = 36
)

// Thumbnail is a small grayscale rendition of a frame
type Thumbnail struct {
	gray *image.Gray
}

// NewThumbnail scales img down to the comparison size
func NewThumbnail(img image.Image) *Thumbnail {
	dst := image.NewGray(image.Rect(0, 0, thumbWidth, thumbHeight))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return &Thumbnail{gray: dst}
}

// LoadThumbnail decodes an image file and scales it down
func LoadThumbnail(path string) (*Thumbnail, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %s: %w", path, err)
	}
	return NewThumbnail(img), nil
}

// MeanDifference is the mean absolute gray level difference (0-255) of two thumbnails
func (t *Thumbnail) MeanDifference(other *Thumbnail) float64 {
	var sum float64
	for y := 0; y < thumbHeight; y++ {
		for x := 0; x < thumbWidth; x++ {
			a := t.gray.GrayAt(x, y).Y
			b := other.gray.GrayAt(x, y).Y
			sum += math.Abs(float64(a) - float64(b))
		}
	}
	return sum / float64(thumbWidth*thumbHeight)
}

// DuplicateFilter keeps frames that differ enough from the last kept frame
type DuplicateFilter struct {
	threshold float64
	last      *Thumbnail
}

// NewDuplicateFilter creates a filter; a threshold <= 0 keeps every frame
func NewDuplicateFilter(threshold float64) *DuplicateFilter {
	return &DuplicateFilter{threshold: threshold}
}

// Keep reports whether the frame at path is a new page
func (f *DuplicateFilter) Keep(path string) (bool, error) {
	if f.threshold <= 0 {
		return true, nil
	}

	thumb, err := LoadThumbnail(path)
	if err != nil {
		return false, err
	}

	if f.last != nil && f.last.MeanDifference(thumb) < f.threshold {
		return false, nil
	}
	f.last = thumb
	return true, nil
}

// Solid returns a uniform image, handy for fixtures
func Solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}
