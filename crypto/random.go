package crypto

import (
	"encoding/binary"
	"io"
)

// RandomScalar Reads uniformly random valid scalars from randomReader, rejecting out of range or zero draws.
// Returns nil if randomReader fails.
func RandomScalar(dst *Scalar, randomReader io.Reader) *Scalar {
	var buf [PrivateKeySize]byte

	for {
		if _, err := io.ReadFull(randomReader, buf[:]); err != nil {
			return nil
		}

		if overflow := dst.SetBytes(&buf); overflow == 0 && !dst.IsZero() {
			return dst
		}
	}
}

// DeterministicScalar Hashes entropy with an incrementing counter until a valid scalar comes out
func DeterministicScalar(dst *Scalar, entropy ...[]byte) *Scalar {
	var counter uint32

	h := NewKeccak256()
	var buf [PrivateKeySize]byte
	var counterBuf [4]byte
	for {
		counter++
		binary.LittleEndian.PutUint32(counterBuf[:], counter)

		h.Reset()
		for _, e := range entropy {
			_, _ = h.Write(e)
		}
		_, _ = h.Write(counterBuf[:])
		h.Sum(buf[:0])

		if overflow := dst.SetBytes(&buf); overflow == 0 && !dst.IsZero() {
			return dst
		}
	}
}
