package annotate

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"desap-backend/internal/inference"
)

func testImagePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func testPrediction() inference.Prediction {
	return inference.Prediction{
		Image: inference.Dimensions{Width: 120, Height: 100},
		Detections: []inference.Detection{
			{Class: "larvae", Confidence: 0.91, X: 60, Y: 50, Width: 40, Height: 30},
		},
		Time: 0.2,
	}
}

func TestRenderDrawsBoxesAndKeepsDimensions(t *testing.T) {
	raw := testImagePNG(t, 120, 100)
	pred := testPrediction()

	out, err := Renderer{}.Render(context.Background(), raw, pred)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	decoded, format, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "png" {
		t.Fatalf("expected png output for png input, got %s", format)
	}
	if got := decoded.Bounds(); got.Dx() != 120 || got.Dy() != 100 {
		t.Fatalf("output dimensions changed: %v", got)
	}

	// Box centre (60,50) size 40x30 puts the top edge at y=35.
	r, g, b, _ := decoded.At(60, 35).RGBA()
	if r>>8 == 200 && g>>8 == 200 && b>>8 == 200 {
		t.Fatalf("expected box outline pixel at (60,35) to differ from background")
	}
}

func TestRenderIsDeterministicAndPure(t *testing.T) {
	raw := testImagePNG(t, 120, 100)
	rawCopy := append([]byte(nil), raw...)
	pred := testPrediction()

	first, err := Renderer{}.Render(context.Background(), raw, pred)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	second, err := Renderer{}.Render(context.Background(), raw, pred)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("expected deterministic output for identical inputs")
	}
	if !bytes.Equal(raw, rawCopy) {
		t.Fatalf("input bytes were mutated")
	}
}

func TestRenderHandlesOutOfBoundsBoxes(t *testing.T) {
	raw := testImagePNG(t, 50, 50)
	pred := inference.Prediction{
		Image: inference.Dimensions{Width: 50, Height: 50},
		Detections: []inference.Detection{
			{Class: "larvae", Confidence: 0.5, X: 200, Y: 200, Width: 20, Height: 20},
		},
	}

	if _, err := (Renderer{}).Render(context.Background(), raw, pred); err != nil {
		t.Fatalf("Render with out-of-bounds box: %v", err)
	}
}

func TestRenderRejectsGarbage(t *testing.T) {
	if _, err := (Renderer{}).Render(context.Background(), []byte("not an image"), testPrediction()); err == nil {
		t.Fatalf("expected decode error")
	}
}
