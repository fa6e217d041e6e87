package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"desap-backend/internal/inference"
)

const (
	detectPath   = "/detect/larvae"
	annotatePath = "/calculate/larvae"
)

// Client implements inference.Client against the remote detection API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a detection client for the given service base URL.
func NewClient(baseURL, apiKey string) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("DETECTION_URL is required")
	}
	timeout := 60 * time.Second
	if raw := strings.TrimSpace(os.Getenv("DETECTION_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Detect uploads the image and returns the validated prediction payload.
func (c *Client) Detect(ctx context.Context, image []byte, contentType string) (inference.Prediction, error) {
	body, formType, err := buildForm(image, contentType, nil)
	if err != nil {
		return inference.Prediction{}, err
	}

	raw, err := c.post(ctx, detectPath, formType, body)
	if err != nil {
		return inference.Prediction{}, err
	}

	var pred inference.Prediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return inference.Prediction{}, fmt.Errorf("%w: %v", inference.ErrMalformedResponse, err)
	}
	if err := pred.Validate(); err != nil {
		return inference.Prediction{}, err
	}
	return pred, nil
}

// Annotate uploads the image together with its stored predictions and returns
// the annotated image bytes.
func (c *Client) Annotate(ctx context.Context, image []byte, contentType string, pred inference.Prediction) ([]byte, error) {
	predJSON, err := json.Marshal(pred)
	if err != nil {
		return nil, err
	}

	body, formType, err := buildForm(image, contentType, predJSON)
	if err != nil {
		return nil, err
	}

	annotated, err := c.post(ctx, annotatePath, formType, body)
	if err != nil {
		return nil, err
	}
	if len(annotated) == 0 {
		return nil, fmt.Errorf("detection service returned empty annotated image")
	}
	return annotated, nil
}

func (c *Client) post(ctx context.Context, path, formType string, body io.Reader) ([]byte, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", formType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, fmt.Errorf("detection request timeout: %w", err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detection service status %d: %s", resp.StatusCode, truncate(payload, 200))
	}
	return payload, nil
}

func buildForm(image []byte, contentType string, predictions []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("image", fileNameFor(contentType))
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", err
	}

	if predictions != nil {
		if err := w.WriteField("predictions", string(predictions)); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func fileNameFor(contentType string) string {
	if strings.Contains(contentType, "png") {
		return "image.png"
	}
	return "image.jpeg"
}

func truncate(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max]
	}
	return s
}

var _ inference.Client = (*Client)(nil)
