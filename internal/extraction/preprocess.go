package extraction

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// MaxDimension bounds the longest side of an uploaded receipt image.
const MaxDimension = 1600

// Preprocess prepares a receipt photo for OCR: it decodes JPEG or PNG,
// converts to grayscale, boosts contrast, downscales to MaxDimension and
// re-encodes as JPEG.
func Preprocess(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode receipt image: %w", err)
	}

	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 30)
	out := imaging.Fit(gray, MaxDimension, MaxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode receipt image: %w", err)
	}
	return buf.Bytes(), nil
}
