package curvetree

import (
	"bytes"
	"errors"
	"testing"

	"git.gammaspectra.live/WATTx/privacy/crypto"
)

var testContext = crypto.MustNewContext(crypto.CurveTreeDomain, crypto.DefaultHashToPointCacheSize)

var testHasher = func() *PedersenHash {
	h, err := NewPedersenHash(testContext)
	if err != nil {
		panic(err)
	}
	return h
}()

func testOutput(t testing.TB, rng *crypto.DeterministicTestGenerator) (o OutputTuple) {
	for _, k := range []*crypto.PublicKeyBytes{&o.O, &o.I, &o.C} {
		kp, err := crypto.NewRandomKeyPair(rng)
		if err != nil {
			t.Fatal(err)
		}
		*k = kp.PublicKey
	}
	return o
}

func testOutputs(t testing.TB, rng *crypto.DeterministicTestGenerator, n int) []OutputTuple {
	outputs := make([]OutputTuple, n)
	for i := range outputs {
		outputs[i] = testOutput(t, rng)
	}
	return outputs
}

func TestCalculateDepth(t *testing.T) {
	for _, e := range []struct {
		count uint64
		depth uint32
	}{
		{0, 0},
		{1, 1},
		{BranchWidth, 1},
		{BranchWidth + 1, 2},
		{BranchWidth * BranchWidth, 2},
		{BranchWidth*BranchWidth + 1, 3},
		{BranchWidth * BranchWidth * BranchWidth, 3},
		{BranchWidth*BranchWidth*BranchWidth + 1, 4},
	} {
		if d := CalculateDepth(e.count); d != e.depth {
			t.Errorf("CalculateDepth(%d) = %d, expected %d", e.count, d, e.depth)
		}
	}

	if CalculateDepth(^uint64(0)) > MaxDepth {
		t.Fatal("depth of any uint64 count must fit")
	}
}

func TestTreeIndex(t *testing.T) {
	i := TreeIndex{Layer: 2, Index: BranchWidth*5 + 7}
	if p := i.Parent(); p.Layer != 3 || p.Index != 5 {
		t.Fatalf("unexpected parent %s", p)
	}
	if i.ChildOffset() != 7 {
		t.Fatalf("unexpected child offset %d", i.ChildOffset())
	}
}

func TestPedersenHash(t *testing.T) {
	rng := crypto.NewDeterministicTestGenerator()

	elements := make([]crypto.Scalar, LeafLayerWidth)
	for i := range elements {
		crypto.RandomScalar(&elements[i], rng)
	}

	t.Run("Empty", func(t *testing.T) {
		h, err := testHasher.Hash(nil)
		if err != nil {
			t.Fatal(err)
		}
		if h != testHasher.Init() {
			t.Fatal("hash of no elements must be init")
		}
	})

	t.Run("Capacity", func(t *testing.T) {
		if _, err := testHasher.Hash(elements); err != nil {
			t.Fatal(err)
		}
		if _, err := testHasher.Hash(append(elements, elements[0])); !errors.Is(err, ErrTooManyElements) {
			t.Fatalf("expected ErrTooManyElements, got %v", err)
		}
	})

	t.Run("Positional", func(t *testing.T) {
		a, _ := testHasher.Hash(elements[:2])
		b, _ := testHasher.Hash([]crypto.Scalar{elements[1], elements[0]})
		if a == b {
			t.Fatal("swapping elements must change the hash")
		}
	})

	t.Run("TrailingZero", func(t *testing.T) {
		a, _ := testHasher.Hash(elements[:3])
		b, _ := testHasher.Hash(append(append([]crypto.Scalar{}, elements[:3]...), crypto.Scalar{}))
		if a != b {
			t.Fatal("zero elements contribute nothing")
		}
	})

	t.Run("Update", func(t *testing.T) {
		partial, err := testHasher.Hash(elements[:12])
		if err != nil {
			t.Fatal(err)
		}
		full, err := testHasher.Hash(elements[:18])
		if err != nil {
			t.Fatal(err)
		}
		updated, err := testHasher.Update(partial, 12, elements[12:18])
		if err != nil {
			t.Fatal(err)
		}
		if updated != full {
			t.Fatal("incremental update does not match full hash")
		}

		if _, err = testHasher.Update(partial, LeafLayerWidth-1, elements[:2]); !errors.Is(err, ErrTooManyElements) {
			t.Fatalf("expected ErrTooManyElements, got %v", err)
		}
	})

	t.Run("Domain", func(t *testing.T) {
		other, err := NewPedersenHash(crypto.MustNewContext(crypto.RingDomain, 0))
		if err != nil {
			t.Fatal(err)
		}
		a, _ := testHasher.Hash(elements[:6])
		b, _ := other.Hash(elements[:6])
		if a == b {
			t.Fatal("hashers of different domains must differ")
		}
	})
}

func TestOutputTuple(t *testing.T) {
	rng := crypto.NewDeterministicTestGenerator()
	o := testOutput(t, rng)

	if !o.IsValid() {
		t.Fatal("expected valid output")
	}

	elements, err := o.FieldElements()
	if err != nil {
		t.Fatal(err)
	}
	p, _ := o.I.Point()
	x, y, _ := crypto.PointCoordinates(p)
	if !elements[2].Equals(&x) || !elements[3].Equals(&y) {
		t.Fatal("unexpected key image coordinates")
	}

	data, err := o.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != OutputTupleSize {
		t.Fatalf("unexpected size %d", len(data))
	}
	var decoded OutputTuple
	if err = decoded.FromReader(bytes.NewReader(data)); err != nil {
		t.Fatal(err)
	}
	if decoded != o {
		t.Fatal("roundtrip mismatch")
	}

	invalid := o
	invalid.C[0] = 0x04
	if invalid.IsValid() {
		t.Fatal("expected invalid output")
	}
	if _, err = invalid.FieldElements(); err == nil {
		t.Fatal("expected error")
	}

	invalid = o
	invalid.I = crypto.ZeroPublicKeyBytes
	if invalid.IsValid() {
		t.Fatal("expected invalid output")
	}
}
