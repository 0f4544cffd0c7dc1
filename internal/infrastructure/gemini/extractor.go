package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"AppealScanner/internal/domain"
	"AppealScanner/internal/ports"
)

// Extractor implements ports.Extractor on top of the Gemini client: upload the
// PDF, prompt with the active-appeal snapshot, parse the JSON array, then
// delete the remote file best-effort.
type Extractor struct {
	client *Client
	logger *slog.Logger
}

var _ ports.Extractor = (*Extractor)(nil)

// NewExtractor wires a Gemini client.
func NewExtractor(client *Client, logger *slog.Logger) *Extractor {
	return &Extractor{client: client, logger: logger}
}

// Extract runs one meeting's PDF through the backend. An unparseable response
// is logged with the raw text and returned as ErrMalformedExtraction so the
// meeting stays pending for a retry.
func (e *Extractor) Extract(ctx context.Context, req ports.ExtractionRequest) ([]domain.ExtractedItem, error) {
	file, err := e.client.UploadFile(ctx, req.PDF, req.PDFSize, req.DisplayName, "application/pdf")
	if err != nil {
		return nil, fmt.Errorf("upload pdf: %w", err)
	}
	defer func() {
		if delErr := e.client.DeleteFile(ctx, file.Name); delErr != nil {
			e.warn("could not delete uploaded file", "file", file.Name, "error", delErr)
		}
	}()

	raw, err := e.client.GenerateContent(ctx, file, BuildPrompt(req.ActiveAppeals))
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	var items []domain.ExtractedItem
	if err := json.Unmarshal([]byte(stripFences(raw)), &items); err != nil {
		e.warn("extraction response is not valid JSON", "document", req.DisplayName, "error", err, "raw", raw)
		return nil, fmt.Errorf("%w: %v", ports.ErrMalformedExtraction, err)
	}

	return items, nil
}

func (e *Extractor) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
