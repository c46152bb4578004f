// Package tesseract implements ocr.Engine on top of the gosseract client.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/book-expert/tara-service/internal/core"
	"github.com/book-expert/tara-service/internal/imageasset"
	"github.com/otiai10/gosseract/v2"
)

// Engine recognizes text lines with Tesseract.
type Engine struct {
	clientFactory func() *gosseract.Client
}

// NewEngine constructs a Tesseract-backed engine.
func NewEngine() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

// Recognize returns one recognition per non-blank text line, in reading order.
// A fresh client is used per call; gosseract clients are not safe for reuse
// across goroutines.
func (e *Engine) Recognize(ctx context.Context, img *core.ImageAsset, languages []string) ([]core.Recognition, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	data, err := imageasset.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	client := e.clientFactory()
	defer client.Close()

	if len(languages) > 0 {
		err = client.SetLanguage(languages...)
		if err != nil {
			return nil, fmt.Errorf("failed to set languages %v: %w", languages, err)
		}
	}

	err = client.SetImageFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("failed to recognize text: %w", err)
	}

	recognitions := make([]core.Recognition, 0, len(boxes))

	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}

		recognitions = append(recognitions, core.Recognition{
			Box:        box.Box,
			Text:       text,
			Confidence: box.Confidence / 100.0,
		})
	}

	return recognitions, nil
}
