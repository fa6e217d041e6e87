package main

// Render an annotated copy of a breeding-site image from a stored
// predictions payload:
//   go run ./cmd/annotatedemo -image site.jpg -predictions pred.json -out ./out/annotated.jpg

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"desap-backend/internal/annotate"
	"desap-backend/internal/inference"
)

func main() {
	imagePath := flag.String("image", "", "path to the source image")
	predPath := flag.String("predictions", "", "path to the detection JSON payload")
	outPath := flag.String("out", "./out/annotated.jpg", "output path for the annotated image")
	flag.Parse()

	if *imagePath == "" || *predPath == "" {
		fmt.Fprintln(os.Stderr, "usage: annotatedemo -image <file> -predictions <file> [-out <file>]")
		os.Exit(2)
	}

	raw, err := os.ReadFile(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read image: %v\n", err)
		os.Exit(1)
	}

	payload, err := os.ReadFile(*predPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read predictions: %v\n", err)
		os.Exit(1)
	}

	var pred inference.Prediction
	if err := json.Unmarshal(payload, &pred); err != nil {
		fmt.Fprintf(os.Stderr, "parse predictions: %v\n", err)
		os.Exit(1)
	}
	if err := pred.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid predictions: %v\n", err)
		os.Exit(1)
	}

	renderer := &annotate.Renderer{}
	annotated, err := renderer.Render(context.Background(), raw, pred)
	if err != nil {
		fmt.Fprintf(os.Stderr, "render failed: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*outPath, annotated, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OK: wrote %s (%d detections)\n", *outPath, len(pred.Detections))
}
