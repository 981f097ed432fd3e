package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	MimePDF = "application/pdf"

	// DefaultLanguage is the Tesseract model used when none is configured.
	DefaultLanguage = "por"
)

var (
	// ErrUnsupported is returned for mime types that are neither PDF nor image.
	ErrUnsupported = errors.New("extraction not supported for mime type")
	// ErrOCRUnavailable is returned for images when no OCR engine is configured.
	ErrOCRUnavailable = errors.New("ocr engine unavailable")
	ErrEmptyInput     = errors.New("empty input")
)

// Recognizer runs optical character recognition over an encoded image.
// Implementations are blocking and are not interrupted once started.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, language string) (string, error)
}

// Extractor converts uploaded bytes into plain text, specialised by mime type.
type Extractor struct {
	OCR      Recognizer
	Language string
}

// New builds an Extractor. A nil recognizer disables image extraction.
func New(ocr Recognizer, language string) *Extractor {
	if strings.TrimSpace(language) == "" {
		language = DefaultLanguage
	}
	return &Extractor{OCR: ocr, Language: language}
}

// Supported reports whether extraction should be attempted for mimeType.
func Supported(mimeType string) bool {
	clean := NormalizeMimeType(mimeType)
	return clean == MimePDF || strings.HasPrefix(clean, "image/")
}

// Kind returns the metrics label for mimeType: "pdf", "image" or "other".
func Kind(mimeType string) string {
	clean := NormalizeMimeType(mimeType)
	switch {
	case clean == MimePDF:
		return "pdf"
	case strings.HasPrefix(clean, "image/"):
		return "image"
	default:
		return "other"
	}
}

// NormalizeMimeType lower-cases the media type and drops parameters.
func NormalizeMimeType(mimeType string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
}

// Extract returns the trimmed text of data.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrEmptyInput
	}
	clean := NormalizeMimeType(mimeType)
	switch {
	case clean == MimePDF:
		return extractPDF(data)
	case strings.HasPrefix(clean, "image/"):
		if e == nil || e.OCR == nil {
			return "", ErrOCRUnavailable
		}
		text, err := e.OCR.Recognize(ctx, data, e.Language)
		if err != nil {
			return "", fmt.Errorf("ocr %s: %w", clean, err)
		}
		return strings.TrimSpace(text), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, clean)
	}
}

// extractPDF reads pages in declared order. Runs within a page are joined with
// single spaces and pages with a newline.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pages = append(pages, strings.Join(strings.Fields(strings.Join(pageRuns(page.Content().Text), " ")), " "))
	}
	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}

// runGap is the horizontal distance, as a fraction of the font size, past
// the end of a glyph that still counts as the same run.
const runGap = 0.25

// pageRuns groups positioned glyphs into runs. A run ends on a line break
// glyph, a baseline change or a horizontal jump beyond runGap.
func pageRuns(glyphs []pdf.Text) []string {
	var (
		runs []string
		cur  strings.Builder
		prev *pdf.Text
	)
	flush := func() {
		if cur.Len() > 0 {
			runs = append(runs, cur.String())
			cur.Reset()
		}
	}
	for i := range glyphs {
		g := &glyphs[i]
		if g.S == "\n" {
			flush()
			prev = nil
			continue
		}
		if prev != nil {
			gap := runGap * prev.FontSize
			if gap < 1 {
				gap = 1
			}
			if math.Abs(g.Y-prev.Y) > 0.5 || g.X > prev.X+prev.W+gap {
				flush()
			}
		}
		cur.WriteString(g.S)
		prev = g
	}
	flush()
	return runs
}
