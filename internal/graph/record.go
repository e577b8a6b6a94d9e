package graph

import (
	"encoding/binary"
	"errors"
	"hash/crc32"

	"github.com/MRyutaro/kishu-vldb/internal/types"
)

// NodeSize is the fixed width, in bytes, of one on-disk commit node
// record. Every segment file is a flat array of NodeSize-byte slots,
// giving O(1) random access to any node by (segment, offset).
const NodeSize = 256

// maxIDBytes bounds the length of a commit id that can be stored in a
// fixed slot. IDs longer than this are rejected by Step/Jump.
const maxIDBytes = 96

const recordMagic uint32 = 0x4B495348 // "KISH"

// ErrIDTooLong is returned when a commit id exceeds maxIDBytes.
var ErrIDTooLong = errors.New("graph: commit id exceeds fixed slot capacity")

// ErrCorruptRecord is returned by decodeRecord when a slot's magic or
// checksum does not match, signaling a torn or corrupted write.
var ErrCorruptRecord = errors.New("graph: corrupt node record")

// Position locates a node record within the append-only segment
// store: a segment file number and a record offset within it. A
// Segment of -1 denotes "no position" (used for root parents).
type Position struct {
	Segment int32
	Offset  int32
}

// IsNone reports whether p denotes the absence of a position.
func (p Position) IsNone() bool { return p.Segment < 0 }

// NonePosition is the sentinel for "no parent" / "not yet known".
var NonePosition = Position{Segment: -1, Offset: -1}

// nodeRecord is the in-memory form of one fixed-width slot.
type nodeRecord struct {
	CommitID       types.CommitID
	ParentID       types.CommitID
	Position       Position
	ParentPosition Position
}

// encodeRecord packs a nodeRecord into a NodeSize-byte slot.
//
// Layout: magic(4) crc32(4) idLen(2) id(maxIDBytes) parentIDLen(2)
// parent(maxIDBytes) posSeg(4) posOff(4) parentPosSeg(4) parentPosOff(4)
// then zero padding to NodeSize.
func encodeRecord(rec *nodeRecord) ([]byte, error) {
	if len(rec.CommitID) > maxIDBytes {
		return nil, ErrIDTooLong
	}
	if len(rec.ParentID) > maxIDBytes {
		return nil, ErrIDTooLong
	}

	payload := make([]byte, 0, NodeSize-8)
	idLen := make([]byte, 2)
	binary.BigEndian.PutUint16(idLen, uint16(len(rec.CommitID)))
	payload = append(payload, idLen...)

	idBuf := make([]byte, maxIDBytes)
	copy(idBuf, rec.CommitID)
	payload = append(payload, idBuf...)

	parentLen := make([]byte, 2)
	binary.BigEndian.PutUint16(parentLen, uint16(len(rec.ParentID)))
	payload = append(payload, parentLen...)

	parentBuf := make([]byte, maxIDBytes)
	copy(parentBuf, rec.ParentID)
	payload = append(payload, parentBuf...)

	payload = appendInt32(payload, rec.Position.Segment)
	payload = appendInt32(payload, rec.Position.Offset)
	payload = appendInt32(payload, rec.ParentPosition.Segment)
	payload = appendInt32(payload, rec.ParentPosition.Offset)

	buf := make([]byte, NodeSize)
	binary.BigEndian.PutUint32(buf[0:4], recordMagic)
	binary.BigEndian.PutUint32(buf[4:8], crc32.ChecksumIEEE(payload))
	copy(buf[8:], payload)
	return buf, nil
}

func appendInt32(b []byte, v int32) []byte {
	tmp := make([]byte, 4)
	binary.BigEndian.PutUint32(tmp, uint32(v))
	return append(b, tmp...)
}

// decodeRecord unpacks a NodeSize-byte slot, returning ErrCorruptRecord
// if the magic or checksum does not match (a torn write, or an empty
// never-written slot).
func decodeRecord(buf []byte) (*nodeRecord, error) {
	if len(buf) != NodeSize {
		return nil, ErrCorruptRecord
	}
	magic := binary.BigEndian.Uint32(buf[0:4])
	if magic != recordMagic {
		return nil, ErrCorruptRecord
	}
	storedCRC := binary.BigEndian.Uint32(buf[4:8])
	payload := buf[8:]
	if crc32.ChecksumIEEE(payload) != storedCRC {
		return nil, ErrCorruptRecord
	}

	off := 0
	idLen := binary.BigEndian.Uint16(payload[off : off+2])
	off += 2
	id := string(payload[off : off+int(idLen)])
	off += maxIDBytes

	parentLen := binary.BigEndian.Uint16(payload[off : off+2])
	off += 2
	parentID := string(payload[off : off+int(parentLen)])
	off += maxIDBytes

	pos := Position{
		Segment: readInt32(payload[off : off+4]),
		Offset:  readInt32(payload[off+4 : off+8]),
	}
	off += 8
	parentPos := Position{
		Segment: readInt32(payload[off : off+4]),
		Offset:  readInt32(payload[off+4 : off+8]),
	}

	return &nodeRecord{
		CommitID:       types.CommitID(id),
		ParentID:       types.CommitID(parentID),
		Position:       pos,
		ParentPosition: parentPos,
	}, nil
}

func readInt32(b []byte) int32 {
	return int32(binary.BigEndian.Uint32(b))
}
