package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client talks to the Gemini Files + generateContent APIs over plain HTTP.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// FileHandle identifies an uploaded file on the backend.
type FileHandle struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// NewClient builds a reusable client. Uploads of large agenda packets can be
// slow, so the timeout is generous.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// UploadFile pushes a PDF through the two-phase resumable protocol: a start
// request posting file metadata returns an upload URL, then the body is
// streamed to that URL with an explicit offset and a finalize command. The
// reader is consumed exactly once; the file is never buffered in memory.
func (c *Client) UploadFile(ctx context.Context, r io.Reader, size int64, displayName, mimeType string) (FileHandle, error) {
	uploadURL, err := c.startUpload(ctx, size, displayName, mimeType)
	if err != nil {
		return FileHandle{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, r)
	if err != nil {
		return FileHandle{}, fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Length", strconv.FormatInt(size, 10))
	req.Header.Set("X-Goog-Upload-Offset", "0")
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	resp, err := c.http.Do(req)
	if err != nil {
		return FileHandle{}, fmt.Errorf("upload file body: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return FileHandle{}, fmt.Errorf("upload returned %s", resp.Status)
	}

	var parsed struct {
		File FileHandle `json:"file"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return FileHandle{}, fmt.Errorf("decode upload response: %w", err)
	}
	if parsed.File.URI == "" {
		return FileHandle{}, fmt.Errorf("upload response missing file uri")
	}

	return parsed.File, nil
}

func (c *Client) startUpload(ctx context.Context, size int64, displayName, mimeType string) (string, error) {
	meta, err := json.Marshal(map[string]any{
		"file": map[string]string{
			"display_name": displayName,
			"mimeType":     mimeType,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal upload metadata: %w", err)
	}

	url := fmt.Sprintf("%s/upload/v1beta/files?key=%s", c.baseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(meta))
	if err != nil {
		return "", fmt.Errorf("build start request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.FormatInt(size, 10))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("start upload session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("start upload returned %s", resp.Status)
	}

	uploadURL := resp.Header.Get("x-goog-upload-url")
	if uploadURL == "" {
		return "", fmt.Errorf("start upload response missing x-goog-upload-url header")
	}

	return uploadURL, nil
}

// GenerateContent invokes the model with an uploaded file and a prompt,
// returning the raw response text.
func (c *Client) GenerateContent(ctx context.Context, file FileHandle, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{
				"parts": []map[string]any{
					{"file_data": map[string]string{
						"mime_type": "application/pdf",
						"file_uri":  file.URI,
					}},
					{"text": prompt},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate payload: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("generate returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return "", fmt.Errorf("generate response has no candidates")
	}

	var text strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	return text.String(), nil
}

// DeleteFile removes an uploaded file. The backend expires files on its own
// after 48 hours, so callers treat failures here as best-effort.
func (c *Client) DeleteFile(ctx context.Context, name string) error {
	url := fmt.Sprintf("%s/v1beta/%s?key=%s", c.baseURL, name, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete file %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("delete file %s returned %s", name, resp.Status)
	}

	return nil
}
