// Package pdfdoc turns uploaded PDF bytes into plain text for the tutor prompt.
package pdfdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultMaxBytes bounds a single upload.
const DefaultMaxBytes = 32 << 20

// PageSeparator is placed between pages in the extracted text.
const PageSeparator = "\n\n-----\n\n"

var (
	ErrEmptyInput = errors.New("empty input")
	ErrNotPDF     = errors.New("input is not a PDF")
	ErrTooLarge   = errors.New("input exceeds size limit")
	ErrNoText     = errors.New("no extractable text")
)

// Document is the text extracted from one PDF.
type Document struct {
	Name           string
	Text           string
	Pages          int
	ExtractedPages int
}

// Extractor reads PDF bytes with github.com/ledongthuc/pdf.
type Extractor struct {
	maxBytes int64
	logger   *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxBytes overrides DefaultMaxBytes. n <= 0 disables the limit.
func WithMaxBytes(n int64) Option {
	return func(e *Extractor) { e.maxBytes = n }
}

// WithLogger sets the logger used for per-page warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		maxBytes: DefaultMaxBytes,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the text of every readable page, in page order.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (doc Document, err error) {
	doc.Name = filename
	if len(data) == 0 {
		return doc, ErrEmptyInput
	}
	if e.maxBytes > 0 && int64(len(data)) > e.maxBytes {
		return doc, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(data), e.maxBytes)
	}
	if !looksLikePDF(data) {
		return doc, ErrNotPDF
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			doc = Document{Name: filename}
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return doc, fmt.Errorf("open pdf: %w", err)
	}

	doc.Pages = reader.NumPage()
	pages := make([]string, 0, doc.Pages)
	for i := 1; i <= doc.Pages; i++ {
		if err := ctx.Err(); err != nil {
			return Document{Name: filename}, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("pdf page text extraction failed", "file", filename, "page", i, "error", err)
			continue
		}
		text = cleanPageText(text)
		if text == "" {
			continue
		}
		pages = append(pages, text)
	}

	doc.ExtractedPages = len(pages)
	doc.Text = strings.Join(pages, PageSeparator)
	if strings.TrimSpace(doc.Text) == "" {
		return doc, ErrNoText
	}
	return doc, nil
}

// SupportedFormats mirrors the upload filter of the UI.
func (e *Extractor) SupportedFormats() []string {
	return []string{"pdf"}
}

func looksLikePDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}
