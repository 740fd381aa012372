package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const maxTextRunes = 48000

// ErrorKind classifies extraction failures so callers can distinguish a
// missing file from an unreadable or unsupported one without parsing text.
type ErrorKind string

const (
	KindNotFound    ErrorKind = "not_found"
	KindNotAFile    ErrorKind = "not_a_file"
	KindUnsupported ErrorKind = "unsupported_kind"
	KindUnreadable  ErrorKind = "unreadable"
)

type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Path, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

type Result struct {
	Text      string
	Method    string
	Truncated bool
}

// Extractor converts a local document into plain text, resolving the
// backend by file extension. Partial page-text loss is a success; a file
// that cannot be opened at all is a typed error, never empty text.
type Extractor struct {
	pdfToTextPath string
}

func NewExtractor() *Extractor {
	return &Extractor{pdfToTextPath: "pdftotext"}
}

// SupportedExtensions lists the extensions Extract can handle, lowercase
// with the leading dot.
func SupportedExtensions() []string {
	return []string{".txt", ".md", ".html", ".htm", ".pdf", ".docx"}
}

func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions() {
		if ext == s {
			return true
		}
	}
	return false
}

func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, &Error{Kind: KindNotFound, Path: path, Err: err}
		}
		return Result{}, &Error{Kind: KindUnreadable, Path: path, Err: err}
	}
	if info.IsDir() {
		return Result{}, &Error{Kind: KindNotAFile, Path: path}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return e.extractPlain(path)
	case ".html", ".htm":
		return e.extractHTML(path)
	case ".pdf":
		return e.extractPDF(ctx, path)
	case ".docx":
		return e.extractDocx(path)
	default:
		return Result{}, &Error{Kind: KindUnsupported, Path: path}
	}
}

func (e *Extractor) extractPlain(path string) (Result, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return Result{}, &Error{Kind: KindUnreadable, Path: path, Err: err}
	}
	return truncateResult(string(blob), "plain"), nil
}

func truncateResult(text, method string) Result {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) <= maxTextRunes {
		return Result{Text: trimmed, Method: method}
	}
	return Result{
		Text:      string(runes[:maxTextRunes]) + "\n\n[TRUNCATED]",
		Method:    method,
		Truncated: true,
	}
}
