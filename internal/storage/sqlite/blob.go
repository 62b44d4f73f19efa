package sqlite

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
)

// encodeBlob compresses a value with gob encoding and gzip compression.
func encodeBlob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(gz).Encode(v); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeBlob decompresses and decodes a gob+gzip blob into out.
func decodeBlob(blob []byte, out interface{}) error {
	if len(blob) == 0 {
		return fmt.Errorf("empty blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return fmt.Errorf("open gzip reader: %w", err)
	}
	defer gz.Close()
	if err := gob.NewDecoder(gz).Decode(out); err != nil {
		return fmt.Errorf("decode blob: %w", err)
	}
	return nil
}
