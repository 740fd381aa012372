package extract

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractPlainText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", "  A patent describing a widget.\n")
	res, err := NewExtractor().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != "A patent describing a widget." {
		t.Fatalf("unexpected text %q", res.Text)
	}
	if res.Method != "plain" || res.Truncated {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestExtractMarkdownKeptRaw(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.md", "# Claim 1\n\nA device comprising A and B.")
	res, err := NewExtractor().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(res.Text, "# Claim 1") {
		t.Fatalf("markdown should be kept verbatim, got %q", res.Text)
	}
}

func TestExtractHTMLStripsScriptAndStyle(t *testing.T) {
	dir := t.TempDir()
	doc := `<html><head><style>.x{color:red}</style></head>
<body><script>alert(1)</script><p>Gear assembly</p><p>Feedback loop</p></body></html>`
	path := writeFile(t, dir, "doc.html", doc)
	res, err := NewExtractor().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if strings.Contains(res.Text, "alert") || strings.Contains(res.Text, "color:red") {
		t.Fatalf("script/style leaked into %q", res.Text)
	}
	if !strings.Contains(res.Text, "Gear assembly") || !strings.Contains(res.Text, "Feedback loop") {
		t.Fatalf("body text missing from %q", res.Text)
	}
}

func TestExtractDocx(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write([]byte(`<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body><w:p><w:r><w:t>Claim 1: a sprocket.</w:t></w:r></w:p>
<w:p><w:r><w:t>Claim 2: a cog.</w:t></w:r></w:p></w:body></w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	res, err := NewExtractor().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(res.Text, "Claim 1: a sprocket.") || !strings.Contains(res.Text, "Claim 2: a cog.") {
		t.Fatalf("unexpected docx text %q", res.Text)
	}
}

func TestExtractDocxCorruptContainer(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.docx", "not a zip archive")
	_, err := NewExtractor().Extract(context.Background(), path)
	var ee *Error
	if !errors.As(err, &ee) || ee.Kind != KindUnreadable {
		t.Fatalf("expected unreadable error, got %v", err)
	}
}

func TestExtractMissingFile(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
	var ee *Error
	if !errors.As(err, &ee) || ee.Kind != KindNotFound {
		t.Fatalf("expected not_found error, got %v", err)
	}
}

func TestExtractUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data.bin", "binary payload")
	_, err := NewExtractor().Extract(context.Background(), path)
	var ee *Error
	if !errors.As(err, &ee) || ee.Kind != KindUnsupported {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestExtractDirectoryIsNotAFile(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested.txt")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := NewExtractor().Extract(context.Background(), sub)
	var ee *Error
	if !errors.As(err, &ee) || ee.Kind != KindNotAFile {
		t.Fatalf("expected not_a_file error, got %v", err)
	}
}

func TestTruncateLongText(t *testing.T) {
	res := truncateResult(strings.Repeat("y", maxTextRunes+100), "plain")
	if !res.Truncated {
		t.Fatal("expected truncation")
	}
	if !strings.HasSuffix(res.Text, "[TRUNCATED]") {
		t.Fatalf("missing truncation marker")
	}
}

func TestSupported(t *testing.T) {
	cases := map[string]bool{
		"a/b.PDF":  true,
		"a/b.txt":  true,
		"a/b.docx": true,
		"a/b.htm":  true,
		"a/b.doc":  false,
		"a/b.xlsx": false,
		"noext":    false,
	}
	for path, want := range cases {
		if got := Supported(path); got != want {
			t.Errorf("Supported(%q) = %v, want %v", path, got, want)
		}
	}
}
