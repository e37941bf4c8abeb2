package utils

import (
	"io"
)

type ReaderAndByteReader interface {
	io.Reader
	io.ByteReader
}

// Serializable is implemented by every wire object: signatures, proofs, tree branches
type Serializable interface {
	AppendBinary(preAllocatedBuf []byte) (data []byte, err error)
	FromReader(reader ReaderAndByteReader) (err error)
	BufferLength() (n int)
}

// MarshalBinary encodes v into a buffer sized by its BufferLength
func MarshalBinary(v Serializable) ([]byte, error) {
	return v.AppendBinary(make([]byte, 0, v.BufferLength()))
}
