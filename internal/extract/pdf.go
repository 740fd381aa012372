package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"unicode"
)

const maxPDFBytes = 20 * 1024 * 1024

func (e *Extractor) extractPDF(ctx context.Context, path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, &Error{Kind: KindUnreadable, Path: path, Err: err}
	}
	if info.Size() > maxPDFBytes {
		return Result{}, &Error{Kind: KindUnreadable, Path: path, Err: fmt.Errorf("pdf too large: %d bytes", info.Size())}
	}

	if text, err := e.runPdfToText(ctx, path); err == nil && strings.TrimSpace(text) != "" {
		return truncateResult(text, "pdftotext"), nil
	}

	// pdftotext missing or produced nothing: salvage printable runs from
	// the raw bytes rather than failing outright.
	blob, err := os.ReadFile(path)
	if err != nil {
		return Result{}, &Error{Kind: KindUnreadable, Path: path, Err: err}
	}
	fallback := extractPrintableText(blob)
	if strings.TrimSpace(fallback) == "" {
		return Result{}, &Error{Kind: KindUnreadable, Path: path, Err: fmt.Errorf("no extractable text found")}
	}
	return truncateResult(fallback, "byte-fallback"), nil
}

func (e *Extractor) runPdfToText(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, e.pdfToTextPath, "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func extractPrintableText(blob []byte) string {
	var runs []string
	var b strings.Builder
	flush := func() {
		s := strings.TrimSpace(b.String())
		if len(s) >= 24 {
			runs = append(runs, s)
		}
		b.Reset()
	}
	for _, c := range blob {
		r := rune(c)
		if unicode.IsPrint(r) || r == '\n' || r == '\t' || r == '\r' {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	joined := strings.Join(runs, "\n")
	joined = strings.ReplaceAll(joined, "\x00", "")
	return strings.TrimSpace(joined)
}
