// Package detector talks to the face detection sidecar. The sidecar runs
// the actual vision model and returns one fixed-length embedding per
// detected face, in detection order. Detection order is significant: the
// recognition pipeline processes faces in the order reported here.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/ngxtan/rollcall/internal/database"
)

const (
	defaultDetectorURL = "http://localhost:8000"

	// maxUploadDimension is the longest image side sent to the sidecar.
	// Larger uploads are downscaled first; detection quality does not
	// improve past this size and transfer time does.
	maxUploadDimension = 1600
)

// Face is one detected face with its embedding.
type Face struct {
	Index     int       `json:"face_index"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2] pixel coordinates
	DetScore  float64   `json:"det_score"`
}

// detectResponse is the sidecar's reply to /detect.
type detectResponse struct {
	FacesCount int    `json:"faces_count"`
	Faces      []Face `json:"faces"`
	Model      string `json:"model"`
}

// Client calls the detector sidecar.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a detector client. An empty baseURL falls back to the
// local development default.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultDetectorURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Detect submits an image and returns the detected faces in detector
// order. Zero faces is a valid result, not an error.
func (c *Client) Detect(ctx context.Context, imageData []byte) ([]Face, error) {
	prepared, err := PrepareImage(imageData, maxUploadDimension)
	if err != nil {
		return nil, fmt.Errorf("preparing image: %w", err)
	}

	body, err := c.postMultipartImage(ctx, "/detect", prepared)
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing detector response: %w", err)
	}

	for i := range resp.Faces {
		if len(resp.Faces[i].Embedding) != database.FaceEmbeddingDim {
			return nil, fmt.Errorf("detector returned %d-dim embedding for face %d, want %d",
				len(resp.Faces[i].Embedding), i, database.FaceEmbeddingDim)
		}
	}

	return resp.Faces, nil
}

// postMultipartImage builds a multipart form with the image data and posts
// it to the given endpoint. The part carries an explicit Content-Type from
// magic byte detection so strict sidecars accept it.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("writing image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading detector response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detector error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// detectMIMEType detects the MIME type from image magic bytes.
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// WebP: RIFF....WEBP
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
