//go:build noocr

package bootstrap

import "tcontas-backend/internal/extract"

// Built without Tesseract: image uploads are stored with extraction reported as failed.
func newRecognizer() extract.Recognizer {
	return nil
}
