package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// A .docx container is a zip archive; the document body lives in
// word/document.xml as WordprocessingML. Paragraph boundaries (w:p) become
// newlines, text runs (w:t) are concatenated.
func (e *Extractor) extractDocx(path string) (Result, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return Result{}, &Error{Kind: KindUnreadable, Path: path, Err: err}
	}
	defer r.Close()

	var doc *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return Result{}, &Error{Kind: KindUnreadable, Path: path, Err: fmt.Errorf("word/document.xml missing")}
	}

	rc, err := doc.Open()
	if err != nil {
		return Result{}, &Error{Kind: KindUnreadable, Path: path, Err: err}
	}
	defer rc.Close()

	text, err := docxBodyText(rc)
	if err != nil {
		return Result{}, &Error{Kind: KindUnreadable, Path: path, Err: err}
	}
	return truncateResult(text, "docx"), nil
}

func docxBodyText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
