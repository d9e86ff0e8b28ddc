// Package pdfmeta extracts metadata from uploaded PDF files.
package pdfmeta

import (
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// PageCount parses the PDF and returns its page count.
// The parser panics on some malformed files, so recover and report an error.
func PageCount(ra io.ReaderAt, size int64) (count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			count = 0
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(ra, size)
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	return reader.NumPage(), nil
}
