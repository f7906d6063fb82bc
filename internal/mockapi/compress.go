package mockapi

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
)

// jpegQuality matches what the production worker encodes with.
const jpegQuality = 70

// compressImage halves the image height (width follows the aspect ratio) and
// re-encodes it in its original format.
func compressImage(data []byte) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	height := uint(img.Bounds().Dy() / 2)
	if height == 0 {
		height = 1
	}
	small := resize.Resize(0, height, img, resize.Lanczos3)

	var out bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&out, small, &jpeg.Options{Quality: jpegQuality})
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(&out, small)
	default:
		return nil, "", fmt.Errorf("unsupported image format: %s", format)
	}
	if err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", format, err)
	}
	return out.Bytes(), format, nil
}

// artifactName derives a unique, URL safe name for the compressed output.
func artifactName(filename string) string {
	base := filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '-'
	}, stem)
	if stem == "" {
		stem = "image"
	}
	return fmt.Sprintf("compressed_%s-%s%s", stem, uuid.NewString()[:8], ext)
}

// isImageName reports whether the extension is one the service accepts.
func isImageName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
