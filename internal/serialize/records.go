// Package serialize encodes Arrow result sets as compressed IPC streams.
// Used by the result cache to hold executor output in a compact form.
package serialize

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/klauspost/compress/zstd"
)

// Codec converts record batches to and from ZStandard-compressed Arrow IPC.
// Create once and reuse; safe for concurrent use from multiple goroutines.
type Codec struct {
	allocator memory.Allocator
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

// NewCodec creates a Codec using SpeedDefault compression.
// Caller must call Close() when done to release resources.
func NewCodec(allocator memory.Allocator) (*Codec, error) {
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &Codec{
		allocator: allocator,
		encoder:   encoder,
		decoder:   decoder,
	}, nil
}

// Encode writes schema and records as one IPC stream and compresses it.
func (c *Codec) Encode(schema *arrow.Schema, records []arrow.Record) ([]byte, error) {
	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(schema), ipc.WithAllocator(c.allocator))

	for _, rec := range records {
		if err := writer.Write(rec); err != nil {
			writer.Close()
			return nil, fmt.Errorf("failed to write IPC record: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close IPC writer: %w", err)
	}

	// EncodeAll is goroutine-safe
	return c.encoder.EncodeAll(buf.Bytes(), make([]byte, 0, buf.Len()/2)), nil
}

// Decode reverses Encode. The caller owns the returned records and must
// Release each of them.
func (c *Codec) Decode(data []byte) (*arrow.Schema, []arrow.Record, error) {
	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decompress: %w", err)
	}

	reader, err := ipc.NewReader(bytes.NewReader(raw), ipc.WithAllocator(c.allocator))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open IPC reader: %w", err)
	}
	defer reader.Release()

	var records []arrow.Record
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		records = append(records, rec)
	}
	if err := reader.Err(); err != nil {
		for _, rec := range records {
			rec.Release()
		}
		return nil, nil, fmt.Errorf("failed to read IPC record: %w", err)
	}

	return reader.Schema(), records, nil
}

// Close releases encoder and decoder resources.
func (c *Codec) Close() error {
	c.decoder.Close()
	return c.encoder.Close()
}
