// Package parser provides PDF text extraction adapters.
// Clean Architecture: Adapters implementing ports.TextExtractor.
package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned when a PDF parses but yields no text at all
// (typically a scanned document without a text layer).
var ErrNoText = errors.New("pdf has no extractable text")

// NativePDFExtractor extracts the plain text layer of a PDF in process.
// Layout fidelity is not a goal: pages are joined with newlines.
type NativePDFExtractor struct{}

// NewNativePDFExtractor creates a new in-process PDF extractor.
func NewNativePDFExtractor() *NativePDFExtractor {
	return &NativePDFExtractor{}
}

// Extract returns the text of every readable page. Pages that fail to
// decode are skipped.
func (e *NativePDFExtractor) Extract(ctx context.Context, data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty pdf")
	}
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var sb strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}

	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrNoText
	}
	return sb.String(), nil
}
