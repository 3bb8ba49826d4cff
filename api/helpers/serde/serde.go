// Package serde encodes and decodes device records as JSON.
package serde

import (
	"sync"

	"github.com/ugorji/go/codec"
)

// resolver holds a shared JSON handle and the buffers reused across calls.
type resolver struct {
	handle codec.JsonHandle

	encoder *codec.Encoder
	decoder *codec.Decoder
	buf     []byte

	mu sync.Mutex
}

var gendecoder = newResolver()

func newResolver() *resolver {
	r := &resolver{buf: make([]byte, 0, 4096)}

	r.handle.Indent = 2
	r.handle.HTMLCharsAsIs = true
	r.handle.Canonical = true
	r.handle.TypeInfos = codec.NewTypeInfos([]string{"codec", "json"})

	r.encoder = codec.NewEncoderBytes(&r.buf, &r.handle)
	r.decoder = codec.NewDecoderBytes(nil, &r.handle)

	return r
}

// MarshalJson encodes v as indented JSON. The returned slice is owned by the caller.
func MarshalJson[T any](v T) ([]byte, error) {
	gendecoder.mu.Lock()
	defer gendecoder.mu.Unlock()

	gendecoder.buf = gendecoder.buf[:0]
	gendecoder.encoder.ResetBytes(&gendecoder.buf)
	if err := gendecoder.encoder.Encode(v); err != nil {
		return nil, err
	}

	out := make([]byte, len(gendecoder.buf))
	copy(out, gendecoder.buf)

	return out, nil
}

// UnmarshalJson decodes data into marshalTo, which must be a pointer.
func UnmarshalJson[T any](data []byte, marshalTo T) error {
	gendecoder.mu.Lock()
	defer gendecoder.mu.Unlock()

	gendecoder.decoder.ResetBytes(data)

	return gendecoder.decoder.Decode(marshalTo)
}
