package pdftext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractRejectsGarbage(t *testing.T) {
	_, err := Extract([]byte("this is not a pdf at all"))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestExtractRejectsTruncatedPDF(t *testing.T) {
	_, err := Extract([]byte("%PDF-1.5\n%âãÏÓ\n1 0 obj"))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestExtractRejectsEmptyInput(t *testing.T) {
	_, err := Extract(nil)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = ExtractPages(nil)
	assert.ErrorIs(t, err, ErrCorrupt)
}
