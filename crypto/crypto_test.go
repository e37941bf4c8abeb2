package crypto

import (
	"bytes"
	"errors"
	"testing"
)

var testContext = MustNewContext(RingDomain, DefaultHashToPointCacheSize)

func TestGenerators(t *testing.T) {
	ctx, err := NewContext(ConfidentialDomain, 0)
	if err != nil {
		t.Fatal(err)
	}

	var g Point
	ScalarBaseMult(&g, new(Scalar).SetInt(1))

	h, err := EncodeCompressedPoint(ctx.GeneratorH())
	if err != nil {
		t.Fatal(err)
	}
	u, err := EncodeCompressedPoint(ctx.GeneratorU())
	if err != nil {
		t.Fatal(err)
	}
	gBytes, _ := EncodeCompressedPoint(&g)

	if h == u || h == gBytes || u == gBytes {
		t.Fatal("generators must be distinct")
	}

	// other domains derive other generators
	h2, _ := EncodeCompressedPoint(testContext.GeneratorH())
	if h == h2 {
		t.Fatal("generator H must depend on the domain")
	}

	ctx2, err := NewContext(ConfidentialDomain, 16)
	if err != nil {
		t.Fatal(err)
	}
	h3, _ := EncodeCompressedPoint(ctx2.GeneratorH())
	if h != h3 {
		t.Fatal("generator H must be deterministic")
	}
}

func TestPointEncoding(t *testing.T) {
	rng := NewDeterministicTestGenerator()

	for range 32 {
		kp, err := NewRandomKeyPair(rng)
		if err != nil {
			t.Fatal(err)
		}
		p, err := kp.PublicKey.Point()
		if err != nil {
			t.Fatal(err)
		}
		encoded, err := EncodeCompressedPoint(p)
		if err != nil {
			t.Fatal(err)
		}
		if encoded != kp.PublicKey {
			t.Fatalf("expected %s, got %s", kp.PublicKey, encoded)
		}

		var neg, sum Point
		NegatePoint(&neg, p)
		AddPoints(&sum, p, &neg)
		if !IsInfinity(&sum) {
			t.Fatal("P + -P must be infinity")
		}
		if _, err = EncodeCompressedPoint(&sum); !errors.Is(err, ErrPointAtInfinity) {
			t.Fatalf("expected ErrPointAtInfinity, got %v", err)
		}
	}

	var invalid PublicKeyBytes
	invalid[0] = 0x04
	if _, err := invalid.Point(); !errors.Is(err, ErrInvalidPoint) {
		t.Fatalf("expected ErrInvalidPoint, got %v", err)
	}
}

func TestScalarParsing(t *testing.T) {
	if _, err := ScalarFromBytes(make([]byte, PrivateKeySize)); err == nil {
		t.Fatal("zero must not be a valid scalar")
	}
	if s, err := ScalarFromCanonicalBytes(make([]byte, PrivateKeySize)); err != nil || !s.IsZero() {
		t.Fatal("zero must be a canonical scalar")
	}
	if _, err := ScalarFromBytes(bytes.Repeat([]byte{0xff}, PrivateKeySize)); err == nil {
		t.Fatal("overflowing scalar must be rejected")
	}
	if _, err := ScalarFromBytes(make([]byte, 31)); err == nil {
		t.Fatal("short scalar must be rejected")
	}

	var a, b, c Scalar
	ScalarFromUint64(&a, 100)
	ScalarFromUint64(&b, 58)
	ScalarSubtract(&c, &a, &b)
	if !c.Equals(ScalarFromUint64(new(Scalar), 42)) {
		t.Fatal("100 - 58 != 42")
	}

	var inv, one Scalar
	ScalarInvert(&inv, &c)
	one.Mul2(&inv, &c)
	if !one.Equals(new(Scalar).SetInt(1)) {
		t.Fatal("x * x^-1 != 1")
	}
}

func TestHashToPoint(t *testing.T) {
	rng := NewDeterministicTestGenerator()

	for range 64 {
		kp, err := NewRandomKeyPair(rng)
		if err != nil {
			t.Fatal(err)
		}

		var a, b Point
		if _, err = testContext.HashToPoint(&a, kp.PublicKey); err != nil {
			t.Fatal(err)
		}
		// second call is served from the cache
		if _, err = testContext.HashToPoint(&b, kp.PublicKey); err != nil {
			t.Fatal(err)
		}
		if !PointEqual(&a, &b) {
			t.Fatal("hash to point must be deterministic")
		}

		uncached, err := NewContext(RingDomain, 0)
		if err != nil {
			t.Fatal(err)
		}
		if _, err = uncached.HashToPoint(&b, kp.PublicKey); err != nil {
			t.Fatal(err)
		}
		if !PointEqual(&a, &b) {
			t.Fatal("cached and uncached results differ")
		}
	}
}

func TestKeyImageDeterminism(t *testing.T) {
	rng := NewDeterministicTestGenerator()

	kp, err := NewRandomKeyPair(rng)
	if err != nil {
		t.Fatal(err)
	}

	image1, err := testContext.GenerateKeyImage(&kp.PrivateKey, kp.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	image2, err := testContext.GetKeyImage(kp)
	if err != nil {
		t.Fatal(err)
	}

	if image1 != image2 {
		t.Fatalf("expected %s, got %s", image1, image2)
	}
	if !image1.IsValid() {
		t.Fatal("key image must be valid")
	}

	other, err := NewRandomKeyPair(rng)
	if err != nil {
		t.Fatal(err)
	}
	image3, err := testContext.GetKeyImage(other)
	if err != nil {
		t.Fatal(err)
	}
	if image3 == image1 {
		t.Fatal("different keys must have different key images")
	}

	if _, err = testContext.GenerateKeyImage(new(Scalar), kp.PublicKey); err == nil {
		t.Fatal("zero private key must be rejected")
	}
}

func TestRandomScalar(t *testing.T) {
	rng := NewDeterministicTestGenerator()
	var a, b Scalar
	if RandomScalar(&a, rng) == nil || RandomScalar(&b, rng) == nil {
		t.Fatal("expected scalars")
	}
	if a.Equals(&b) {
		t.Fatal("consecutive random scalars must differ")
	}

	rng2 := NewDeterministicTestGenerator()
	var c Scalar
	RandomScalar(&c, rng2)
	if !a.Equals(&c) {
		t.Fatal("test generator must be reproducible")
	}

	if RandomScalar(&a, bytes.NewReader(nil)) != nil {
		t.Fatal("expected nil on read failure")
	}

	t.Logf("rng permutations: %d", rng.Permutations())
}

func TestDeterministicScalar(t *testing.T) {
	var a, b Scalar
	DeterministicScalar(&a, []byte("seed"), []byte{1})
	DeterministicScalar(&b, []byte("seed"), []byte{1})
	if !a.Equals(&b) || a.IsZero() {
		t.Fatal("deterministic scalar mismatch")
	}
	DeterministicScalar(&b, []byte("seed"), []byte{2})
	if a.Equals(&b) {
		t.Fatal("different entropy must give different scalars")
	}
}
