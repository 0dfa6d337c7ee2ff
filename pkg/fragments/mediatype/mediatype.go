// Package mediatype is the registry of content types a fragment may hold
// and the closed table of conversions allowed between them.
package mediatype

import (
	"errors"
	"mime"
	"strings"
)

// MediaType is one of the base MIME types the fragment store accepts.
type MediaType int

// Supported media types. Unknown is the zero value and never valid.
const (
	Unknown MediaType = iota
	TextPlain
	TextMarkdown
	TextHTML
	ApplicationJSON
	ImagePNG
	ImageJPEG
	ImageWebP
	ImageGIF

	numMediaTypes
)

// ErrEmptyType is returned by BaseType for a blank Content-Type value.
var ErrEmptyType = errors.New("content type is empty")

var names = [numMediaTypes]string{
	Unknown:         "",
	TextPlain:       "text/plain",
	TextMarkdown:    "text/markdown",
	TextHTML:        "text/html",
	ApplicationJSON: "application/json",
	ImagePNG:        "image/png",
	ImageJPEG:       "image/jpeg",
	ImageWebP:       "image/webp",
	ImageGIF:        "image/gif",
}

var extensions = [numMediaTypes]string{
	TextPlain:       ".txt",
	TextMarkdown:    ".md",
	TextHTML:        ".html",
	ApplicationJSON: ".json",
	ImagePNG:        ".png",
	ImageJPEG:       ".jpg",
	ImageWebP:       ".webp",
	ImageGIF:        ".gif",
}

var images = []MediaType{ImageGIF, ImageJPEG, ImagePNG, ImageWebP}

// targets is the conversion table. Every supported type has at least
// itself as a legal target; TestFormatsForIsTotal guards that.
var targets = [numMediaTypes][]MediaType{
	TextPlain:       {TextPlain},
	TextMarkdown:    {TextPlain, TextMarkdown, TextHTML},
	TextHTML:        {TextPlain, TextHTML},
	ApplicationJSON: {TextPlain, ApplicationJSON},
	ImagePNG:        images,
	ImageJPEG:       images,
	ImageWebP:       images,
	ImageGIF:        images,
}

// String returns the canonical MIME string, or "" for Unknown.
func (t MediaType) String() string {
	if t <= Unknown || t >= numMediaTypes {
		return ""
	}
	return names[t]
}

// Valid reports whether t is one of the supported types.
func (t MediaType) Valid() bool {
	return t > Unknown && t < numMediaTypes
}

// IsText reports whether t is a text/* type.
func (t MediaType) IsText() bool {
	return strings.HasPrefix(t.String(), "text/")
}

// IsImage reports whether t is an image/* type.
func (t MediaType) IsImage() bool {
	return strings.HasPrefix(t.String(), "image/")
}

// Extension returns the canonical file extension (with leading dot).
func (t MediaType) Extension() string {
	if !t.Valid() {
		return ""
	}
	return extensions[t]
}

// All returns every supported media type in declaration order.
func All() []MediaType {
	all := make([]MediaType, 0, numMediaTypes-1)
	for t := Unknown + 1; t < numMediaTypes; t++ {
		all = append(all, t)
	}
	return all
}

// IsSupported reports whether candidate contains one of the supported base
// types. Full Content-Type header values such as
// "text/plain; charset=utf-8" are accepted as-is.
func IsSupported(candidate string) bool {
	return contained(candidate) != Unknown
}

// Parse maps an exact base type (no parameters) to its MediaType.
func Parse(base string) (MediaType, bool) {
	base = strings.ToLower(strings.TrimSpace(base))
	for t := Unknown + 1; t < numMediaTypes; t++ {
		if names[t] == base {
			return t, true
		}
	}
	return Unknown, false
}

// Resolve maps a Content-Type value to a MediaType: exact match on the
// parsed base type first, then the first supported type it contains.
func Resolve(contentType string) MediaType {
	if base, err := BaseType(contentType); err == nil {
		if t, ok := Parse(base); ok {
			return t
		}
	}
	return contained(contentType)
}

// BaseType strips parameters from a Content-Type value and lower-cases it.
func BaseType(contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		return "", ErrEmptyType
	}
	base, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", err
	}
	return base, nil
}

// FormatsFor returns the legal conversion targets for t, or nil when t is
// not supported.
func FormatsFor(t MediaType) []MediaType {
	if !t.Valid() {
		return nil
	}
	out := make([]MediaType, len(targets[t]))
	copy(out, targets[t])
	return out
}

// CanConvert reports whether target is a legal conversion of source.
func CanConvert(source, target MediaType) bool {
	if !source.Valid() {
		return false
	}
	for _, t := range targets[source] {
		if t == target {
			return true
		}
	}
	return false
}

// Strings renders a list of media types as MIME strings.
func Strings(types []MediaType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}

func contained(candidate string) MediaType {
	candidate = strings.ToLower(candidate)
	for t := Unknown + 1; t < numMediaTypes; t++ {
		if strings.Contains(candidate, names[t]) {
			return t
		}
	}
	return Unknown
}
