package tiles

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
)

// Supported compress formats. Gif decodes but is not an encode target.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatJPG  = "jpg"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

// imageSize decodes just enough of the blob to learn its pixel dimensions.
func imageSize(data []byte) (width, height int, err error) {
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return config.Width, config.Height, nil
}

// encodeImage re-encodes the blob in the named format. quality in [0.0, 1.0]
// applies to jpeg only; nil means the encoder default.
func encodeImage(data []byte, format string, quality *float64) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch format {
	case FormatPNG:
		err = png.Encode(&buf, img)
	case FormatJPEG, FormatJPG:
		options := &jpeg.Options{Quality: jpeg.DefaultQuality}
		if quality != nil {
			options.Quality = int(*quality * 100)
			if options.Quality < 1 {
				options.Quality = 1
			}
		}
		err = jpeg.Encode(&buf, img, options)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
