package types

import (
	"bytes"
	"testing"

	"git.gammaspectra.live/WATTx/privacy/utils"
)

func TestHashJSON(t *testing.T) {
	h := MustHashFromString("0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20")

	buf, err := utils.MarshalJSON(h)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf) != `"0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"` {
		t.Fatalf("unexpected encoding %s", buf)
	}

	var decoded Hash
	if err = utils.UnmarshalJSON(buf, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded != h {
		t.Fatalf("expected %s, got %s", h, decoded)
	}

	if err = decoded.UnmarshalJSON([]byte(`"0102"`)); err == nil {
		t.Fatal("expected size error")
	}
}

func TestHashCompare(t *testing.T) {
	a := Hash{1}
	b := Hash{2}
	if a.Compare(b) != -1 || b.Compare(a) != 1 || a.Compare(a) != 0 {
		t.Fatal("unexpected ordering")
	}
}

func TestOutPoint(t *testing.T) {
	o := OutPoint{TxId: Hash{0xaa, 0xbb}, Index: 7}

	buf := o.AppendBinary(nil)
	if len(buf) != OutPointSize {
		t.Fatalf("expected %d bytes, got %d", OutPointSize, len(buf))
	}

	var decoded OutPoint
	if err := decoded.FromReader(bytes.NewReader(buf)); err != nil {
		t.Fatal(err)
	}
	if decoded != o {
		t.Fatalf("expected %s, got %s", o, decoded)
	}

	if _, err := OutPointFromBytes(buf[1:]); err == nil {
		t.Fatal("expected size error")
	}
}
