// Package convert transforms fragment bytes between media types allowed
// by the mediatype conversion table.
package convert

import (
	"fmt"

	"github.com/tendant/simple-fragments/pkg/fragments/mediatype"
)

// Result is the output of a conversion.
type Result struct {
	Data []byte
	Type mediatype.MediaType
	Kind Kind
}

// Engine dispatches conversions to a markup renderer and an image codec.
// It is safe for concurrent use when its collaborators are.
type Engine struct {
	renderer Renderer
	images   ImageCodec
}

// Option configures an Engine.
type Option func(*Engine)

// WithRenderer replaces the Markdown renderer.
func WithRenderer(r Renderer) Option {
	return func(e *Engine) {
		e.renderer = r
	}
}

// WithImageCodec replaces the raster image codec.
func WithImageCodec(c ImageCodec) Option {
	return func(e *Engine) {
		e.images = c
	}
}

// New creates an Engine with goldmark and the raster codec unless
// overridden.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.renderer == nil {
		e.renderer = NewMarkdownRenderer()
	}
	if e.images == nil {
		e.images = NewRasterCodec()
	}
	return e
}

// Convert resolves ext (".html", "png", ...) to a media type and converts
// data from source to it.
func (e *Engine) Convert(data []byte, source mediatype.MediaType, ext string) (*Result, error) {
	target, ok := mediatype.FromExtension(ext)
	if !ok {
		return nil, fmt.Errorf("%w: unknown extension %q", ErrUnsupported, ext)
	}
	return e.ConvertTo(data, source, target)
}

// ConvertTo converts data from source to target. Nothing is invoked when
// the pair is not in the conversion table.
func (e *Engine) ConvertTo(data []byte, source, target mediatype.MediaType) (*Result, error) {
	kind, err := Plan(source, target)
	if err != nil {
		return nil, err
	}

	res := &Result{Type: target, Kind: kind}
	switch kind {
	case Identity, Relabel:
		res.Data = data
	case RenderMarkdown:
		res.Data, err = e.renderer.Render(data)
	case ExtractText:
		res.Data, err = extractText(data)
	case EncodeImage:
		res.Data, err = e.images.Encode(data, target)
	case Unimplemented:
		return nil, fmt.Errorf("%w: %s to %s", ErrNotImplemented, source, target)
	}
	if err != nil {
		return nil, fmt.Errorf("convert %s to %s: %w", source, target, err)
	}
	return res, nil
}
