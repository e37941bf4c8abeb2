package curvetree

import (
	"io"

	"git.gammaspectra.live/WATTx/privacy/crypto"
	"git.gammaspectra.live/WATTx/privacy/utils"
)

const OutputTupleSize = crypto.PublicKeySize * 3

// OutputTuple Leaf content of the tree
type OutputTuple struct {
	// O One-time public key
	O crypto.PublicKeyBytes `json:"O"`
	// I Key image
	I crypto.PublicKeyBytes `json:"I"`
	// C Amount commitment
	C crypto.PublicKeyBytes `json:"C"`
}

// IsValid Checks all three points decode to curve points
func (o OutputTuple) IsValid() bool {
	for _, k := range [...]crypto.PublicKeyBytes{o.O, o.I, o.C} {
		if _, err := k.Point(); err != nil {
			return false
		}
	}
	return true
}

// FieldElements Flattens into [O.x, O.y, I.x, I.y, C.x, C.y], each coordinate reduced modulo the group order
func (o OutputTuple) FieldElements() (elements [ElementsPerOutput]crypto.Scalar, err error) {
	for i, k := range [...]crypto.PublicKeyBytes{o.O, o.I, o.C} {
		p, err := k.Point()
		if err != nil {
			return elements, err
		}
		if elements[i*2], elements[i*2+1], err = crypto.PointCoordinates(p); err != nil {
			return elements, err
		}
	}
	return elements, nil
}

func (o OutputTuple) BufferLength() int {
	return OutputTupleSize
}

func (o OutputTuple) AppendBinary(preAllocatedBuf []byte) (data []byte, err error) {
	data = append(preAllocatedBuf, o.O[:]...)
	data = append(data, o.I[:]...)
	data = append(data, o.C[:]...)
	return data, nil
}

func (o OutputTuple) MarshalBinary() (data []byte, err error) {
	return o.AppendBinary(make([]byte, 0, OutputTupleSize))
}

func (o *OutputTuple) FromReader(reader utils.ReaderAndByteReader) (err error) {
	if _, err = io.ReadFull(reader, o.O[:]); err != nil {
		return err
	}
	if _, err = io.ReadFull(reader, o.I[:]); err != nil {
		return err
	}
	if _, err = io.ReadFull(reader, o.C[:]); err != nil {
		return err
	}
	return nil
}

func (o *OutputTuple) UnmarshalBinary(data []byte) error {
	if len(data) != OutputTupleSize {
		return io.ErrUnexpectedEOF
	}
	copy(o.O[:], data)
	copy(o.I[:], data[crypto.PublicKeySize:])
	copy(o.C[:], data[crypto.PublicKeySize*2:])
	return nil
}
