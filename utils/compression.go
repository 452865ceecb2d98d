package utils

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// CompressionFloor is the minimum payload size worth compressing.
const CompressionFloor = 1024

// CompressData gzip-compresses data. Payloads below the floor are returned
// unchanged alongside false.
func CompressData(data []byte) ([]byte, bool, error) {
	if len(data) < CompressionFloor {
		return data, false, nil
	}

	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return nil, false, fmt.Errorf("failed to write to gzip writer: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, false, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), true, nil
}

// DecompressData reverses CompressData.
func DecompressData(data []byte, compressed bool) ([]byte, error) {
	if !compressed {
		return data, nil
	}

	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer reader.Close()

	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	return out, nil
}
