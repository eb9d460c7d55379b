package proposal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// Record encoding, version 1:
//
//	version byte |
//	uvarint len + description |
//	varint approve | varint reject | varint pass |
//	active byte |
//	uvarint count + (uvarint len + principal)... |
//	uvarint len + owner |
//	crc32c(body) big-endian
//
// The trailing checksum covers everything before it, so malformed or
// corrupted bytes fail decode instead of producing a garbage record.

const codecVersion = 1

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// ErrMalformedRecord is returned when stored bytes cannot be decoded.
var ErrMalformedRecord = errors.New("malformed proposal record")

// Encode serializes a proposal to its versioned, checksummed byte form.
func Encode(pr *Proposal) []byte {
	var tmp [binary.MaxVarintLen64]byte
	out := make([]byte, 0, 64+len(pr.Description))

	out = append(out, codecVersion)
	out = appendBytes(out, tmp[:], []byte(pr.Description))
	out = append(out, tmp[:binary.PutVarint(tmp[:], int64(pr.Approve))]...)
	out = append(out, tmp[:binary.PutVarint(tmp[:], int64(pr.Reject))]...)
	out = append(out, tmp[:binary.PutVarint(tmp[:], int64(pr.Pass))]...)
	if pr.IsActive {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = append(out, tmp[:binary.PutUvarint(tmp[:], uint64(len(pr.Voted)))]...)
	for _, v := range pr.Voted {
		out = appendBytes(out, tmp[:], []byte(v))
	}
	out = appendBytes(out, tmp[:], []byte(pr.Owner))

	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc32.Checksum(out, castagnoli))
	return append(out, crcb[:]...)
}

// Decode parses bytes produced by Encode. It verifies the checksum and
// requires the body to be consumed exactly.
func Decode(b []byte) (*Proposal, error) {
	if len(b) < 1+4 {
		return nil, fmt.Errorf("%w: short record (%d bytes)", ErrMalformedRecord, len(b))
	}
	body, crcb := b[:len(b)-4], b[len(b)-4:]
	if binary.BigEndian.Uint32(crcb) != crc32.Checksum(body, castagnoli) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrMalformedRecord)
	}
	if body[0] != codecVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedRecord, body[0])
	}
	r := reader{buf: body[1:]}

	var pr Proposal
	desc, err := r.bytes()
	if err != nil {
		return nil, err
	}
	pr.Description = string(desc)
	if pr.Approve, err = r.int32(); err != nil {
		return nil, err
	}
	if pr.Reject, err = r.int32(); err != nil {
		return nil, err
	}
	if pr.Pass, err = r.int32(); err != nil {
		return nil, err
	}
	active, err := r.byte()
	if err != nil {
		return nil, err
	}
	pr.IsActive = active != 0

	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(r.buf)) {
		// A count larger than the remaining bytes can never be valid.
		return nil, fmt.Errorf("%w: voted count %d overruns record", ErrMalformedRecord, n)
	}
	for i := uint64(0); i < n; i++ {
		v, err := r.bytes()
		if err != nil {
			return nil, err
		}
		pr.Voted = append(pr.Voted, Principal(v))
	}
	owner, err := r.bytes()
	if err != nil {
		return nil, err
	}
	pr.Owner = Principal(owner)

	if len(r.buf) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedRecord, len(r.buf))
	}
	return &pr, nil
}

func appendBytes(out, tmp, b []byte) []byte {
	out = append(out, tmp[:binary.PutUvarint(tmp, uint64(len(b)))]...)
	return append(out, b...)
}

type reader struct {
	buf []byte
}

func (r *reader) byte() (byte, error) {
	if len(r.buf) == 0 {
		return 0, fmt.Errorf("%w: truncated", ErrMalformedRecord)
	}
	b := r.buf[0]
	r.buf = r.buf[1:]
	return b, nil
}

func (r *reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf)
	if n <= 0 {
		return 0, fmt.Errorf("%w: bad uvarint", ErrMalformedRecord)
	}
	r.buf = r.buf[n:]
	return v, nil
}

func (r *reader) int32() (int32, error) {
	v, n := binary.Varint(r.buf)
	if n <= 0 {
		return 0, fmt.Errorf("%w: bad varint", ErrMalformedRecord)
	}
	if v > 1<<31-1 || v < -(1<<31) {
		return 0, fmt.Errorf("%w: counter out of range", ErrMalformedRecord)
	}
	r.buf = r.buf[n:]
	return int32(v), nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(r.buf)) {
		return nil, fmt.Errorf("%w: field overruns record", ErrMalformedRecord)
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b, nil
}
