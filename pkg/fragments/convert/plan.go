package convert

import (
	"errors"
	"fmt"

	"github.com/tendant/simple-fragments/pkg/fragments/mediatype"
)

var (
	// ErrUnsupported indicates the requested target is not a legal
	// conversion of the source type.
	ErrUnsupported = errors.New("unsupported conversion")

	// ErrNotImplemented indicates the conversion table allows the pair but
	// no transformation exists for it.
	ErrNotImplemented = errors.New("conversion not implemented")
)

// Kind identifies the transformation applied for a (source, target) pair.
type Kind int

const (
	// Unimplemented is a pair the table allows with no transformation.
	Unimplemented Kind = iota
	// Identity returns the source bytes unchanged.
	Identity
	// RenderMarkdown renders Markdown to HTML.
	RenderMarkdown
	// ExtractText strips markup from HTML, keeping its text.
	ExtractText
	// Relabel serves textual source bytes as text/plain unchanged.
	Relabel
	// EncodeImage re-encodes raster data to another image format.
	EncodeImage
)

func (k Kind) String() string {
	switch k {
	case Identity:
		return "identity"
	case RenderMarkdown:
		return "render-markdown"
	case ExtractText:
		return "extract-text"
	case Relabel:
		return "relabel"
	case EncodeImage:
		return "encode-image"
	default:
		return "unimplemented"
	}
}

// Plan decides how source is converted to target. It returns
// ErrUnsupported when target is not in source's format list.
func Plan(source, target mediatype.MediaType) (Kind, error) {
	if !mediatype.CanConvert(source, target) {
		return Unimplemented, fmt.Errorf("%w: %s to %s", ErrUnsupported, source, target)
	}
	return planPair(source, target), nil
}

// planPair matches a pair already known to be legal.
func planPair(source, target mediatype.MediaType) Kind {
	switch {
	case source == target:
		return Identity
	case source == mediatype.TextMarkdown && target == mediatype.TextHTML:
		return RenderMarkdown
	case source == mediatype.TextHTML && target == mediatype.TextPlain:
		return ExtractText
	case source == mediatype.TextMarkdown && target == mediatype.TextPlain,
		source == mediatype.ApplicationJSON && target == mediatype.TextPlain:
		return Relabel
	case source.IsImage() && target.IsImage():
		return EncodeImage
	default:
		return Unimplemented
	}
}
