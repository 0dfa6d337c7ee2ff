package convert

import (
	"bytes"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer turns markup source into HTML.
type Renderer interface {
	Render(src []byte) ([]byte, error)
}

// MarkdownRenderer renders CommonMark plus GFM extensions. Raw HTML in the
// source is passed through untouched; no sanitization is performed.
type MarkdownRenderer struct {
	once sync.Once
	md   goldmark.Markdown
}

// NewMarkdownRenderer returns a goldmark-backed Renderer.
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{}
}

func (r *MarkdownRenderer) markdown() goldmark.Markdown {
	r.once.Do(func() {
		r.md = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		)
	})
	return r.md
}

// Render converts Markdown source to UTF-8 HTML.
func (r *MarkdownRenderer) Render(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.markdown().Convert(src, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
