// Package extract turns uploaded file bytes into plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"os/exec"
	"strings"
	"unicode/utf8"

	"workspace-rag/internal/rag"
)

// MIME types accepted by the extractor.
const (
	MIMEPlainText = "text/plain"
	MIMEPDF       = "application/pdf"
)

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found: install poppler-utils")

// CommandRunner runs an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

var _ rag.Extractor = (*Extractor)(nil)

// Extractor handles plain text in-process and delegates PDFs to pdftotext.
type Extractor struct {
	pdftotext string
	runner    CommandRunner
}

// New returns an extractor using the pdftotext binary at path, or the one on
// PATH when path is empty.
func New(path string) *Extractor {
	return NewWithRunner(path, execRunner{})
}

// NewWithRunner is New with a custom command runner.
func NewWithRunner(path string, runner CommandRunner) *Extractor {
	if path == "" {
		path = "pdftotext"
	}
	return &Extractor{pdftotext: path, runner: runner}
}

// Extract returns the text of data and its document type tag.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) (string, string, error) {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "", "", fmt.Errorf("%w: invalid MIME type %q", rag.ErrUnsupportedInput, mimeType)
	}

	switch mediaType {
	case MIMEPlainText:
		text := string(data)
		if !utf8.ValidString(text) {
			text = strings.ToValidUTF8(text, "�")
		}
		return text, rag.DocumentTypeText, nil
	case MIMEPDF:
		text, err := e.pdfText(ctx, data)
		if err != nil {
			return "", "", err
		}
		return text, rag.DocumentTypePDF, nil
	default:
		return "", "", fmt.Errorf("%w: unsupported file type %q, upload a PDF or plain text file",
			rag.ErrUnsupportedInput, mediaType)
	}
}

func (e *Extractor) pdfText(ctx context.Context, data []byte) (string, error) {
	if _, ok := e.runner.(execRunner); ok {
		if _, err := exec.LookPath(e.pdftotext); err != nil {
			return "", ErrPDFToolNotFound
		}
	}

	f, err := os.CreateTemp("", "upload-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	out, err := e.runner.Run(ctx, e.pdftotext, "-layout", "-enc", "UTF-8", f.Name(), "-")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: could not read PDF: %v", rag.ErrUnsupportedInput, err)
	}
	return strings.ToValidUTF8(string(out), "�"), nil
}
