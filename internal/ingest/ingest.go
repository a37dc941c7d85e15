// Package ingest discovers image files and fingerprints their content.
package ingest

// FileResult is the per-file discovery outcome.
type FileResult struct {
	Path    string
	Hash    []byte
	HashHex string
	Size    int64
	Err     string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Failed    uint32
}

// ScanOptions narrows a directory scan. Empty Extensions means every
// supported image type.
type ScanOptions struct {
	Extensions []string
	SkipHidden bool
}
