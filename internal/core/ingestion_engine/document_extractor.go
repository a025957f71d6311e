package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/models"
)

var _ core.DocumentExtractor = (*DocconvExtractor)(nil)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DocconvExtractor implements core.DocumentExtractor using sajari/docconv for
// binary formats and a lossy UTF-8 decode for plain text.
type DocconvExtractor struct {
	convertPDF  func(data []byte) (string, error)
	convertDocx func(data []byte) (string, error)
}

func NewDocconvExtractor() *DocconvExtractor {
	return &DocconvExtractor{
		convertPDF: func(data []byte) (string, error) {
			// docconv spools the buffer to a temp file for pdftotext and removes it on return.
			text, _, err := docconv.ConvertPDF(bytes.NewReader(data))
			return text, err
		},
		convertDocx: func(data []byte) (string, error) {
			text, _, err := docconv.ConvertDocx(bytes.NewReader(data))
			return text, err
		},
	}
}

// Extract returns the plain text of data. Parser failures, including panics
// inside the parser, come back as *ExtractionError.
func (e *DocconvExtractor) Extract(ctx context.Context, data []byte, kind models.FileKind) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch kind {
	case models.FileKindTXT, models.FileKindMD:
		return decodeText(data), nil
	case models.FileKindPDF:
		return e.convert(kind, e.convertPDF, data)
	case models.FileKindDOCX:
		return e.convert(kind, e.convertDocx, data)
	default:
		return "", &ExtractionError{Kind: kind, Err: ErrUnsupportedFileKind}
	}
}

func (e *DocconvExtractor) convert(kind models.FileKind, fn func([]byte) (string, error), data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &ExtractionError{Kind: kind, Err: fmt.Errorf("parser panic: %v", r)}
		}
	}()

	text, err = fn(data)
	if err != nil {
		return "", &ExtractionError{Kind: kind, Err: err}
	}
	return text, nil
}

// decodeText reads data as UTF-8, replacing invalid sequences with U+FFFD.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}
