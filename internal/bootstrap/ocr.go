//go:build !noocr

package bootstrap

import (
	"tcontas-backend/internal/extract"
	"tcontas-backend/internal/extract/tesseract"
)

func newRecognizer() extract.Recognizer {
	return tesseract.New()
}
