package annotate

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"desap-backend/internal/inference"
)

const lineWidth = 2

var boxColor = color.RGBA{R: 230, G: 46, B: 46, A: 255}

// Renderer draws stored detections onto the raw image locally.
type Renderer struct {
	// Quality is the JPEG encode quality; zero means jpeg.DefaultQuality.
	Quality int
}

// Render decodes the image, draws one labeled rectangle per detection, and
// re-encodes in the source format. Inputs are never mutated; identical inputs
// produce identical output bytes.
func (r Renderer) Render(ctx context.Context, raw []byte, pred inference.Prediction) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)

	for _, d := range pred.Detections {
		box := boxRect(d).Intersect(bounds)
		if box.Empty() {
			continue
		}
		drawOutline(canvas, box)
		drawLabel(canvas, box, fmt.Sprintf("%s %.2f", d.Class, d.Confidence))
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, canvas)
	default:
		quality := r.Quality
		if quality <= 0 {
			quality = jpeg.DefaultQuality
		}
		err = jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: quality})
	}
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// boxRect converts a centre-anchored detection to pixel bounds.
func boxRect(d inference.Detection) image.Rectangle {
	x0 := int(d.X - d.Width/2)
	y0 := int(d.Y - d.Height/2)
	x1 := int(d.X + d.Width/2)
	y1 := int(d.Y + d.Height/2)
	return image.Rect(x0, y0, x1, y1)
}

func drawOutline(canvas *image.RGBA, box image.Rectangle) {
	for t := 0; t < lineWidth; t++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			setPixel(canvas, x, box.Min.Y+t)
			setPixel(canvas, x, box.Max.Y-1-t)
		}
		for y := box.Min.Y; y < box.Max.Y; y++ {
			setPixel(canvas, box.Min.X+t, y)
			setPixel(canvas, box.Max.X-1-t, y)
		}
	}
}

func setPixel(canvas *image.RGBA, x, y int) {
	if image.Pt(x, y).In(canvas.Bounds()) {
		canvas.SetRGBA(x, y, boxColor)
	}
}

func drawLabel(canvas *image.RGBA, box image.Rectangle, label string) {
	face := basicfont.Face7x13
	y := box.Min.Y - 3
	if y-face.Ascent < canvas.Bounds().Min.Y {
		y = box.Min.Y + face.Height
	}
	d := font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(boxColor),
		Face: face,
		Dot:  fixed.P(box.Min.X, y),
	}
	d.DrawString(label)
}
