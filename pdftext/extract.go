// Package pdftext extracts plain text from PDF content.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// ErrCorrupt marks content that is not a readable PDF. This is permanent:
// the same bytes will fail the same way on every retry.
var ErrCorrupt = errors.New("pdftext: corrupt or unreadable pdf")

// Extract returns the plain text of a PDF. The underlying parser panics on
// some malformed files, so extraction is fenced and any panic is reported
// as ErrCorrupt.
func Extract(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCorrupt, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return buf.String(), nil
}

// ExtractPages returns the text of each page separately, for callers that
// only need to look at a single page.
func ExtractPages(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCorrupt, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	total := reader.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrCorrupt, i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
