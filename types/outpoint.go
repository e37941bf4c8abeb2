package types

import (
	"encoding/binary"
	"errors"
	"io"
	"strconv"
)

const OutPointSize = HashSize + 4

// OutPoint references a single output of a transaction
type OutPoint struct {
	TxId  Hash   `json:"txid"`
	Index uint32 `json:"index"`
}

func (o OutPoint) String() string {
	return o.TxId.String() + ":" + strconv.FormatUint(uint64(o.Index), 10)
}

func (o OutPoint) AppendBinary(preAllocatedBuf []byte) []byte {
	buf := append(preAllocatedBuf, o.TxId[:]...)
	return binary.LittleEndian.AppendUint32(buf, o.Index)
}

func (o *OutPoint) FromReader(reader io.Reader) error {
	var buf [OutPointSize]byte
	if _, err := io.ReadFull(reader, buf[:]); err != nil {
		return err
	}
	copy(o.TxId[:], buf[:HashSize])
	o.Index = binary.LittleEndian.Uint32(buf[HashSize:])
	return nil
}

func OutPointFromBytes(buf []byte) (o OutPoint, err error) {
	if len(buf) != OutPointSize {
		return o, errors.New("wrong outpoint size")
	}
	copy(o.TxId[:], buf[:HashSize])
	o.Index = binary.LittleEndian.Uint32(buf[HashSize:])
	return o, nil
}
