package constants

import "strings"

// AllowedExtensions holds the image extensions accepted for plate recognition.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"bmp":  {},
	"heic": {},
	"heif": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsHEICExt reports whether ext needs conversion before decoding.
func IsHEICExt(ext string) bool {
	ext = NormalizeExt(ext)
	return ext == "heic" || ext == "heif"
}

// Output layout under the configured output root.
const (
	ResultsDir = "results"
	ReportsDir = "reports"

	// TimestampLayout is used in every generated file name.
	TimestampLayout = "20060102_150405"
)
