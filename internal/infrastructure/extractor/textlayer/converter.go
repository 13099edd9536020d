package textlayer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MimePDF  = "application/pdf"
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// DefaultMaxChars keeps converted documents within a typical prompt budget.
const DefaultMaxChars = 200_000

// Converter renders documents with a text layer as plain text for models that cannot read them inline.
type Converter struct {
	maxChars int
}

func New(maxChars int) *Converter {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Converter{maxChars: maxChars}
}

func (c *Converter) CanConvert(mimeType string) bool {
	switch mimeType {
	case MimePDF, MimeXLSX:
		return true
	}
	return strings.HasPrefix(mimeType, "text/")
}

func (c *Converter) ConvertToText(ctx context.Context, fileName, mimeType string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		text string
		err  error
	)
	switch {
	case mimeType == MimePDF:
		text, err = pdfText(content)
	case mimeType == MimeXLSX:
		text, err = xlsxText(content)
	case strings.HasPrefix(mimeType, "text/"):
		if !utf8.Valid(content) {
			return "", fmt.Errorf("text document %s is not valid UTF-8", fileName)
		}
		text = string(content)
	default:
		return "", fmt.Errorf("no text layer for %s (%s)", fileName, mimeType)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("document %s has no extractable text", fileName)
	}
	return truncate(text, c.maxChars), nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
