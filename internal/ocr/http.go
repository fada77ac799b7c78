package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/allergyscan/pkg/errors"
)

const errorBodyReadLimit int64 = 1024

var errEndpointRequired = errors.New("ocr endpoint is required")

// HTTPClient calls a text-recognition service that accepts {"image": base64} and answers
// {"text": string|null}.
type HTTPClient struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*HTTPClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithAPIKey sends the key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *HTTPClient) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// NewHTTPClient builds the OCR client for endpoint.
func NewHTTPClient(endpoint string, opts ...Option) (*HTTPClient, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, errEndpointRequired
	}
	client := &HTTPClient{
		endpoint:   trimmed,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type recognizeRequest struct {
	Image string `json:"image"`
}

type recognizeResponse struct {
	Text *string `json:"text"`
}

// Recognize extracts text from image.
func (c *HTTPClient) Recognize(ctx context.Context, image []byte) (Result, error) {
	if c == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeDependency, "ocr client not configured")
	}
	if len(image) == 0 {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "image is required")
	}

	payload, err := json.Marshal(recognizeRequest{Image: base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal ocr request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build ocr request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute ocr request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "ocr request failed")
	}

	var apiResp recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeMalformed, err, "decode ocr response")
	}
	if apiResp.Text == nil {
		return Result{}, nil
	}
	return NewResult(*apiResp.Text), nil
}
