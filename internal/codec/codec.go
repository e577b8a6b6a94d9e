// Package codec abstracts the wire format used to persist commit
// entries, variable snapshots, and other blobs, so the storage layers
// never depend on a specific serialization library directly.
//
// Grounded on loog-project-loog's internal/store.Codec.
package codec

import "github.com/vmihailenco/msgpack/v5"

// Codec encodes and decodes arbitrary values to and from bytes.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Default is the MessagePack codec used throughout Kishu: it supports
// arbitrary struct graphs without schema registration and is compact
// enough for frequent small commit-entry writes.
var Default Codec = msgpackCodec{}

type msgpackCodec struct{}

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackCodec) Unmarshal(b []byte, v any) error {
	return msgpack.Unmarshal(b, v)
}
