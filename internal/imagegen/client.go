package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"visual-spec-compiler/internal/models"
	"visual-spec-compiler/internal/storage"
)

const (
	DefaultTimeout = 60 * time.Second

	textToImagePath = "/text-to-image"
	maxErrorBody = 4 << 10
	// A success body may inline the image as a base64 data URL.
	maxResponseBody = storage.MaxImageBytes*4/3 + 1<<20
)

// Result is the normalized outcome of a generation call.
type Result struct {
	Success    bool   `json:"success"`
	ImageURL   string `json:"image_url"`
	InternalID string `json:"internal_id"`
}

// Generator turns a Spec into an image. Client calls the real provider, Stub
// does not touch the network.
type Generator interface {
	Generate(ctx context.Context, spec models.Spec) (*Result, error)
}

// Client calls the FIBO text-to-image API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	maxBody    int64
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("image provider base URL is required")
	}
	if apiKey == "" {
		return nil, errors.New("image provider API key is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		maxBody:    maxResponseBody,
	}, nil
}

// providerResponse accepts the shapes the provider has used for a finished
// synchronous request.
type providerResponse struct {
	ImageURL     string `json:"image_url"`
	ImageDataURL string `json:"image_data_url"`
	RequestID    string `json:"request_id"`
	InternalID   string `json:"internal_id"`
	Result       *struct {
		ImageURL string `json:"image_url"`
	} `json:"result"`
}

func (r providerResponse) imageURL() string {
	switch {
	case r.Result != nil && r.Result.ImageURL != "":
		return r.Result.ImageURL
	case r.ImageURL != "":
		return r.ImageURL
	}
	return r.ImageDataURL
}

func (r providerResponse) id() string {
	if r.RequestID != "" {
		return r.RequestID
	}
	return r.InternalID
}

func (c *Client) Generate(ctx context.Context, spec models.Spec) (*Result, error) {
	body, err := json.Marshal(ToProviderPayload(spec))
	if err != nil {
		return nil, fmt.Errorf("encode provider payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+textToImagePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	c.logger.InfoContext(ctx, "image provider responded",
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if int64(len(raw)) > c.maxBody {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: fmt.Sprintf("response body exceeds %d bytes", c.maxBody)}
	}

	var parsed providerResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: "malformed response body"}
	}
	url := parsed.imageURL()
	if url == "" {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: "response has no image url"}
	}

	return &Result{
		Success:    true,
		ImageURL:   url,
		InternalID: parsed.id(),
	}, nil
}
