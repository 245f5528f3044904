// Package compress wraps the brotli codec used for stored article bodies.
package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// quality 6 trades compression ratio for throughput on typical article HTML.
const quality = 6

// HTML compresses the given HTML text for storage.
func HTML(html string) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, quality)
	if _, err := w.Write([]byte(html)); err != nil {
		return nil, fmt.Errorf("compress html: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("flush compressor: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress streams a stored payload back to the original text. Round-trip
// equality with HTML is a hard contract of the storage layer.
func Decompress(data []byte) (string, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decompress payload: %w", err)
	}
	return string(out), nil
}
