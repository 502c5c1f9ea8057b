// Package codec compresses player response payloads. Stored
// otherplayer_resp blobs are zstd frames; everything that reads or
// writes them goes through these helpers so the framing stays in one
// place.
package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compress returns the zstd frame for data.
func Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer enc.Close()

	return enc.EncodeAll(data, nil), nil
}

// Decompress decodes a zstd frame produced by Compress.
func Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decoding zstd frame: %w", err)
	}

	return out, nil
}
