// Package document extracts plain text from uploaded resume files.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

const (
	MimeText = "text/plain"
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var (
	ErrUnsupported = errors.New("unsupported document type")
	ErrNoText      = errors.New("document contains no text")
)

var extensions = map[string]string{
	".txt":  MimeText,
	".md":   MimeText,
	".text": MimeText,
	".pdf":  MimePDF,
	".docx": MimeDOCX,
}

// Kind resolves the document type from the MIME type, falling back to the
// file extension of name.
func Kind(name, mimeType string) (string, error) {
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		switch mt {
		case MimeText, MimePDF, MimeDOCX:
			return mt, nil
		}
	}

	if kind, ok := extensions[strings.ToLower(filepath.Ext(name))]; ok {
		return kind, nil
	}

	return "", fmt.Errorf("%w: name=%q mime=%q", ErrUnsupported, name, mimeType)
}

// Extract returns the text content of data.
func Extract(name, mimeType string, data []byte) (string, error) {
	kind, err := Kind(name, mimeType)
	if err != nil {
		return "", err
	}

	var text string
	switch kind {
	case MimeText:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: text file is not valid utf-8", ErrUnsupported)
		}
		text = string(data)
	case MimePDF:
		text, err = extractPDF(data)
	case MimeDOCX:
		text, err = extractDOCX(data)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// ReadFile reads and extracts a document from disk.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return Extract(filepath.Base(path), "", data)
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read pdf page %d: %w", i, err)
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	defer doc.Close()

	return stripXML(doc.Editable().GetContent()), nil
}

// stripXML removes the WordprocessingML markup returned by the docx library,
// turning paragraph ends into newlines and decoding entities.
func stripXML(content string) string {
	content = strings.ReplaceAll(content, "</w:p>", "\n")
	content = strings.ReplaceAll(content, "<w:tab/>", "\t")

	var b strings.Builder
	inTag := false
	for _, r := range content {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return html.UnescapeString(b.String())
}
