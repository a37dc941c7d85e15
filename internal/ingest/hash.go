package ingest

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// HashFile returns the sha256 of the file content and its size.
func HashFile(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return h.Sum(nil), n, nil
}

// HashBytes fingerprints in-memory content the same way HashFile does.
func HashBytes(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
