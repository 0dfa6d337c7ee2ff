package convert

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/HugoSmits86/nativewebp"
	_ "golang.org/x/image/webp" // registers the WebP decoder with image.Decode

	"github.com/tendant/simple-fragments/pkg/fragments/mediatype"
)

// ImageCodec re-encodes raster image bytes to a target format.
type ImageCodec interface {
	Encode(data []byte, target mediatype.MediaType) ([]byte, error)
}

// RasterCodec decodes PNG, JPEG, GIF and WebP and encodes any of them
// with each encoder's default settings. No resizing is applied.
type RasterCodec struct{}

// NewRasterCodec returns the default ImageCodec.
func NewRasterCodec() *RasterCodec {
	return &RasterCodec{}
}

// Encode decodes data and writes it out as target.
func (c *RasterCodec) Encode(data []byte, target mediatype.MediaType) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	var buf bytes.Buffer
	switch target {
	case mediatype.ImagePNG:
		err = png.Encode(&buf, img)
	case mediatype.ImageJPEG:
		err = jpeg.Encode(&buf, img, nil)
	case mediatype.ImageGIF:
		err = gif.Encode(&buf, img, nil)
	case mediatype.ImageWebP:
		err = nativewebp.Encode(&buf, img, nil)
	default:
		return nil, fmt.Errorf("%w: %s is not a raster format", ErrUnsupported, target)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", target, err)
	}
	return buf.Bytes(), nil
}
