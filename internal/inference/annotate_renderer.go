package inference

import (
	"context"
	"net/http"
)

// AnnotateRenderer renders annotated images by delegating to the detection
// service's annotate endpoint instead of drawing locally.
type AnnotateRenderer struct {
	Client Client
}

func (r *AnnotateRenderer) Render(ctx context.Context, image []byte, pred Prediction) ([]byte, error) {
	return r.Client.Annotate(ctx, image, http.DetectContentType(image), pred)
}
