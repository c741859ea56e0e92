package cmd

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"

	"golang.org/x/image/draw"

	"github.com/kozaktomas/face-attendance/internal/vision"
)

var (
	matchedColor   = color.RGBA{0, 200, 0, 255}
	unmatchedColor = color.RGBA{255, 0, 0, 255}
)

// maxAnnotatedSize bounds the longer side of annotated output images.
const maxAnnotatedSize = 1600

// scaleToFit shrinks img to fit within maxSize and returns the scale applied.
func scaleToFit(img image.Image, maxSize int) (*image.RGBA, float64) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	scale := 1.0
	if longest := max(width, height); longest > maxSize {
		scale = float64(maxSize) / float64(longest)
	}

	dst := image.NewRGBA(image.Rect(0, 0, int(float64(width)*scale), int(float64(height)*scale)))
	if scale == 1 {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	}
	return dst, scale
}

func drawHLine(dst *image.RGBA, x1, x2, y int, c color.RGBA) {
	b := dst.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	for x := max(x1, b.Min.X); x <= x2 && x < b.Max.X; x++ {
		dst.SetRGBA(x, y, c)
	}
}

func drawVLine(dst *image.RGBA, y1, y2, x int, c color.RGBA) {
	b := dst.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	for y := max(y1, b.Min.Y); y <= y2 && y < b.Max.Y; y++ {
		dst.SetRGBA(x, y, c)
	}
}

// drawBox outlines bbox (x1, y1, x2, y2 in source pixels) on dst.
func drawBox(dst *image.RGBA, bbox [4]float64, scale float64, lineWidth int, c color.RGBA) {
	x1 := int(bbox[0] * scale)
	y1 := int(bbox[1] * scale)
	x2 := int(bbox[2] * scale)
	y2 := int(bbox[3] * scale)
	for w := range lineWidth {
		drawHLine(dst, x1, x2, y1+w, c)
		drawHLine(dst, x1, x2, y2-w, c)
		drawVLine(dst, y1, y2, x1+w, c)
		drawVLine(dst, y1, y2, x2-w, c)
	}
}

// annotateFaces draws every face box on the photo, green when matched.
func annotateFaces(photo []byte, boxes [][4]float64, matched []bool) (image.Image, error) {
	if _, err := vision.DecodeImage(photo); err != nil {
		return nil, err
	}
	src, _, err := image.Decode(bytes.NewReader(photo))
	if err != nil {
		return nil, fmt.Errorf("decoding photo: %w", err)
	}

	dst, scale := scaleToFit(src, maxAnnotatedSize)
	lineWidth := max(2, dst.Bounds().Dx()/400)
	for i, bbox := range boxes {
		c := unmatchedColor
		if i < len(matched) && matched[i] {
			c = matchedColor
		}
		drawBox(dst, bbox, scale, lineWidth, c)
	}
	return dst, nil
}

func saveJPEG(path string, img image.Image) error {
	f, err := os.Create(path) //nolint:gosec // path is from the command line
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}
