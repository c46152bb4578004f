// Package ocr adapts a text detection engine to the pipeline's TextDetector contract.
package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/tara-service/internal/core"
)

// Engine is the external detection capability: it reports recognized spans in
// its own order for the given language hints.
type Engine interface {
	Recognize(ctx context.Context, img *core.ImageAsset, languages []string) ([]core.Recognition, error)
}

// Detector flattens engine recognitions into one string.
type Detector struct {
	engine    Engine
	languages []string
	log       *logger.Logger
}

// NewDetector creates a detector for the given language hints.
func NewDetector(engine Engine, languages []string, log *logger.Logger) *Detector {
	return &Detector{
		engine:    engine,
		languages: append([]string(nil), languages...),
		log:       log,
	}
}

// Detect runs the engine and joins the recognized strings with single spaces,
// keeping engine order and every span regardless of confidence. No spans yields "".
func (d *Detector) Detect(ctx context.Context, img *core.ImageAsset) (string, error) {
	recognitions, err := d.engine.Recognize(ctx, img, d.languages)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrDetection, err)
	}

	d.log.Info("Detection returned %d spans for %dx%d %s image",
		len(recognitions), img.Width, img.Height, img.Format)

	return Join(recognitions), nil
}

// Join projects out the text of each recognition and space-joins them.
func Join(recognitions []core.Recognition) string {
	if len(recognitions) == 0 {
		return ""
	}

	texts := make([]string, len(recognitions))
	for i, recognition := range recognitions {
		texts[i] = recognition.Text
	}

	return strings.Join(texts, " ")
}
