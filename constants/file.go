package constants

import "strings"

const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// AllowedExtensions holds the accepted document extensions (lowercased, sans '.').
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// DefaultFilename is used when the caller does not send a filename header.
const DefaultFilename = "uploaded_file"

// PlaceholderExt is what filepath.Ext yields for DefaultFilename-derived names
// like "scan.uploaded_file"; it carries no type information.
const PlaceholderExt = ".uploaded_file"

// PDFMagic is the header every PDF payload must start with.
const PDFMagic = "%PDF"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns PDF or IMAGE for a known extension, "" otherwise.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png":
		return IMAGE
	default:
		return ""
	}
}

// ExtFromContentType infers a dotted extension from a content type by substring,
// so "application/pdf", "image/jpeg; charset=binary" and "IMAGE/PNG" all resolve.
func ExtFromContentType(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "pdf"):
		return ".pdf"
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "jpg"):
		return ".jpg"
	case strings.Contains(ct, "png"):
		return ".png"
	default:
		return ""
	}
}
