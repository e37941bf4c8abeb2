package utils

import (
	"encoding/binary"
	"errors"
	"io"
)

var errOverflow = errors.New("binary: varint overflows a 64-bit integer")

var ErrNonCanonicalEncoding = errors.New("binary: varint has non canonical encoding")

var ErrLengthTooLarge = errors.New("binary: encoded length exceeds limit")

// ReadCanonicalUvarint reads an encoded unsigned integer from r and returns it as a uint64.
// The error is ErrNonCanonicalEncoding if non-canonical bytes were read.
// The error is [io.EOF] only if no bytes were read.
// If an [io.EOF] happens after reading some but not all the bytes,
// ReadCanonicalUvarint returns [io.ErrUnexpectedEOF].
func ReadCanonicalUvarint(r io.ByteReader) (uint64, error) {
	var x uint64
	var s uint
	for i := 0; i < binary.MaxVarintLen64; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if i > 0 && err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return x, err
		}
		if i > 0 && b == 0 {
			return x, ErrNonCanonicalEncoding
		}
		if b < 0x80 {
			if i == binary.MaxVarintLen64-1 && b > 1 {
				return x, errOverflow
			}
			return x | uint64(b)<<s, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return x, errOverflow
}

// ReadLength reads a canonical uvarint used as an element count, rejecting values above limit
// so that callers can allocate from it without trusting the input
func ReadLength(r io.ByteReader, limit int) (int, error) {
	n, err := ReadCanonicalUvarint(r)
	if err != nil {
		return 0, err
	}
	if n > uint64(limit) {
		return 0, ErrLengthTooLarge
	}
	return int(n), nil
}

const (
	VarIntLen1 = uint64(1 << ((iota + 1) * 7))
	VarIntLen2
	VarIntLen3
	VarIntLen4
	VarIntLen5
	VarIntLen6
	VarIntLen7
	VarIntLen8
	VarIntLen9
)

func UVarInt64Size[T uint64 | int | uint8](v T) (n int) {
	x := uint64(v)

	switch {
	case x < VarIntLen1:
		return 1
	case x < VarIntLen2:
		return 2
	case x < VarIntLen3:
		return 3
	case x < VarIntLen4:
		return 4
	case x < VarIntLen5:
		return 5
	case x < VarIntLen6:
		return 6
	case x < VarIntLen7:
		return 7
	case x < VarIntLen8:
		return 8
	case x < VarIntLen9:
		return 9
	default:
		return binary.MaxVarintLen64
	}
}
