//go:build !noocr

// Package tesseract provides the OCR Recognizer backed by the Tesseract engine.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Recognizer runs Tesseract through gosseract. A new client is created per call
// so concurrent uploads never share engine state.
type Recognizer struct{}

func New() *Recognizer {
	return &Recognizer{}
}

// Recognize blocks until Tesseract finishes. The context is only checked before starting.
func (r *Recognizer) Recognize(ctx context.Context, image []byte, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer client.Close()

	if lang := strings.TrimSpace(language); lang != "" {
		if err := client.SetLanguage(strings.Split(lang, "+")...); err != nil {
			return "", fmt.Errorf("set language %s: %w", lang, err)
		}
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("load image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return strings.TrimSpace(text), nil
}
