// Package wire frames cached values with the metadata needed to judge
// freshness from the stored bytes alone, so any provider (including a shared
// Redis) can hold entries.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version byte = 1
	hdrLen       = 4 + 1 + 8 + 8 + 8 + 4
)

var (
	ErrCorrupt = errors.New("querycache: corrupt entry")
	magic4     = [...]byte{'Q', 'R', 'Y', 'C'}
)

// Record is one stored fetch result.
type Record struct {
	Gen        uint64        // generation observed when the fetch started
	FetchedAt  time.Time     // settlement time of the successful fetch
	StaleAfter time.Duration // staleness window chosen by the fetch starter
	Payload    []byte        // codec output
}

// Encode lays out:
//
//	magic(4) | ver(1) | gen(u64 be) | fetchedAt(i64 be, unix nanos) |
//	staleAfter(i64 be, nanos) | vlen(u32 be) | payload(vlen)
func Encode(r Record) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(r.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], r.Gen)
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(r.FetchedAt.UnixNano()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(r.StaleAfter))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(r.Payload)))
	buf.Write(u4[:])

	buf.Write(r.Payload)
	return buf.Bytes()
}

// Decode parses b. Payload aliases b (no copy). Trailing bytes are rejected.
func Decode(b []byte) (Record, error) {
	if len(b) < hdrLen || !bytes.Equal(b[:4], magic4[:]) || b[4] != version {
		return Record{}, ErrCorrupt
	}
	off := 5

	gen := binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	fetched := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	stale := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	if stale < 0 {
		return Record{}, ErrCorrupt
	}

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen != len(b)-off {
		return Record{}, ErrCorrupt
	}

	return Record{
		Gen:        gen,
		FetchedAt:  time.Unix(0, fetched),
		StaleAfter: time.Duration(stale),
		Payload:    b[off:],
	}, nil
}

// Fresh reports whether r is still inside its staleness window at now and
// was written under generation gen.
func (r Record) Fresh(now time.Time, gen uint64) bool {
	return r.Gen == gen && now.Sub(r.FetchedAt) < r.StaleAfter
}
