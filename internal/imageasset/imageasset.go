// Package imageasset decodes uploaded raster images into core.ImageAsset values.
package imageasset

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/book-expert/tara-service/internal/core"
	"github.com/disintegration/imaging"
)

// ErrEmptyUpload is returned when the upload carries no bytes.
var ErrEmptyUpload = errors.New("image data is empty")

// Decode validates and decodes raw upload bytes. EXIF orientation is applied so
// photos of boards taken on a phone are read upright.
func Decode(data []byte) (*core.ImageAsset, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidImage, ErrEmptyUpload)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read image header: %w", core.ErrInvalidImage, err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s image: %w", core.ErrInvalidImage, format, err)
	}

	bounds := img.Bounds()

	return &core.ImageAsset{
		Data:   data,
		Image:  img,
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// EncodePNG re-encodes the decoded pixel buffer losslessly. Engines that take
// encoded bytes receive the oriented image rather than the original upload.
func EncodePNG(asset *core.ImageAsset) ([]byte, error) {
	var buf bytes.Buffer

	err := imaging.Encode(&buf, asset.Image, imaging.PNG)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image as png: %w", err)
	}

	return buf.Bytes(), nil
}
