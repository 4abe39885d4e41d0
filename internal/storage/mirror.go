package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"
)

const (
	// MaxImageBytes caps how much of a provider image is copied.
	MaxImageBytes = 20 << 20
	MirrorTimeout = 30 * time.Second
)

// Mirror copies a provider-hosted image into our own Storage, so history
// URLs keep working after the provider's links expire.
type Mirror struct {
	Storage    Storage
	HTTPClient *http.Client
}

func NewMirror(s Storage) *Mirror {
	return &Mirror{
		Storage:    s,
		HTTPClient: &http.Client{Timeout: MirrorTimeout},
	}
}

// Copy fetches src (http(s) or a base64 data: URL) and uploads it as name.
// The returned URL points into Storage.
func (m *Mirror) Copy(ctx context.Context, src, name string) (string, error) {
	var (
		body        []byte
		contentType string
		err         error
	)
	if strings.HasPrefix(src, "data:") {
		body, contentType, err = decodeDataURL(src)
	} else {
		body, contentType, err = m.download(ctx, src)
	}
	if err != nil {
		return "", err
	}

	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("mirror: unexpected content type %q", contentType)
	}

	return m.Storage.Upload(ctx, bytes.NewReader(body), name+imageExt(contentType, src), contentType)
}

func (m *Mirror) download(ctx context.Context, src string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", fmt.Errorf("mirror: build request: %w", err)
	}

	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("mirror: fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("mirror: bad status: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("mirror: read image: %w", err)
	}
	if len(body) > MaxImageBytes {
		return nil, "", fmt.Errorf("mirror: image larger than %d bytes", MaxImageBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	return body, contentType, nil
}

// decodeDataURL handles data:<type>;base64,<payload>.
func decodeDataURL(src string) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, "", errors.New("mirror: only base64 data urls are supported")
	}
	body, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("mirror: decode data url: %w", err)
	}
	if len(body) > MaxImageBytes {
		return nil, "", fmt.Errorf("mirror: image larger than %d bytes", MaxImageBytes)
	}
	contentType := strings.TrimSuffix(meta, ";base64")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	return body, contentType, nil
}

func imageExt(contentType, src string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	switch strings.TrimSpace(mediaType) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	if !strings.HasPrefix(src, "data:") {
		if ext := path.Ext(strings.SplitN(src, "?", 2)[0]); ext != "" {
			return ext
		}
	}
	return ".img"
}
