package constants

import "strings"

// DocumentExtensions holds the file extensions the directory source reads as documents.
var DocumentExtensions = map[string]struct{}{
	"txt":  {},
	"text": {},
	"md":   {},
	"html": {},
	"htm":  {},
}

// ImageExtensions holds the extensions attached to a document as images.
var ImageExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
}

// ImageDirSuffix is appended to a document stem to find its image directory.
const ImageDirSuffix = "_images"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsHTMLExt reports whether ext names an HTML document.
func IsHTMLExt(ext string) bool {
	switch NormalizeExt(ext) {
	case "html", "htm":
		return true
	}
	return false
}
