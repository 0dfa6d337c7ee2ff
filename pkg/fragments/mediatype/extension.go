package mediatype

import "strings"

var byExtension = map[string]MediaType{
	".txt":      TextPlain,
	".md":       TextMarkdown,
	".markdown": TextMarkdown,
	".html":     TextHTML,
	".htm":      TextHTML,
	".json":     ApplicationJSON,
	".png":      ImagePNG,
	".jpg":      ImageJPEG,
	".jpeg":     ImageJPEG,
	".webp":     ImageWebP,
	".gif":      ImageGIF,
}

// FromExtension looks up the media type for a file extension. The leading
// dot is optional and the match is case-insensitive.
func FromExtension(ext string) (MediaType, bool) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return Unknown, false
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	t, ok := byExtension[ext]
	return t, ok
}
