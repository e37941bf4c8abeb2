package bulletproofs

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"git.gammaspectra.live/WATTx/privacy/crypto"
	"git.gammaspectra.live/WATTx/privacy/crypto/ringct"
)

var testContext = crypto.MustNewContext(crypto.ConfidentialDomain, 0)

var testGenerators = func() *Generators {
	g, err := NewGenerators(testContext)
	if err != nil {
		panic(err)
	}
	return g
}()

func TestGenerators(t *testing.T) {
	if len(testGenerators.G) != CommitmentBits || len(testGenerators.H) != CommitmentBits {
		t.Fatal("wrong amount of generators")
	}

	seen := make(map[crypto.PublicKeyBytes]struct{})
	for _, v := range []PointVector{testGenerators.G, testGenerators.H, {testGenerators.AmountH, testGenerators.U}} {
		for i := range v {
			b, err := crypto.EncodeCompressedPoint(&v[i])
			if err != nil {
				t.Fatal(err)
			}
			if _, ok := seen[b]; ok {
				t.Fatalf("duplicate generator %s", b)
			}
			seen[b] = struct{}{}
		}
	}

	// derivation is deterministic
	g2, err := NewGenerators(testContext)
	if err != nil {
		t.Fatal(err)
	}
	for i := range g2.G {
		if !crypto.PointEqual(&g2.G[i], &testGenerators.G[i]) || !crypto.PointEqual(&g2.H[i], &testGenerators.H[i]) {
			t.Fatalf("generator %d differs", i)
		}
	}
}

func TestChallengeProducts(t *testing.T) {
	rng := crypto.NewDeterministicTestGenerator()

	challenges := make([][2]crypto.Scalar, 3)
	for i := range challenges {
		crypto.RandomScalar(&challenges[i][0], rng)
		crypto.ScalarInvert(&challenges[i][1], &challenges[i][0])
	}

	products := ChallengeProducts(challenges)
	if len(products) != 8 {
		t.Fatalf("expected 8 products, got %d", len(products))
	}

	for i := range products {
		var expected crypto.Scalar
		expected.SetInt(1)
		for j := range challenges {
			bit := (i >> (len(challenges) - 1 - j)) & 1
			if bit == 1 {
				expected.Mul(&challenges[j][0])
			} else {
				expected.Mul(&challenges[j][1])
			}
		}
		if !expected.Equals(&products[i]) {
			t.Fatalf("product %d mismatch", i)
		}

		var inverse crypto.Scalar
		inverse.Mul2(&products[i], &products[len(products)-1-i])
		if !inverse.Equals(&one) {
			t.Fatalf("product %d is not the inverse of its mirror", i)
		}
	}
}

func TestDecompose(t *testing.T) {
	for _, amount := range []uint64{0, 1, 0xdeadbeef, math.MaxUint64} {
		bits := Decompose(amount)
		if len(bits) != CommitmentBits {
			t.Fatalf("expected %d bits", CommitmentBits)
		}
		var sum crypto.Scalar
		for i := range bits {
			crypto.ScalarMulAdd(&sum, &bits[i], &TwoScalarVectorPowers()[i], &sum)
		}
		if !sum.Equals(crypto.ScalarFromUint64(new(crypto.Scalar), amount)) {
			t.Fatalf("%d: decomposition does not recompose", amount)
		}
	}
}

func TestInnerProductProof(t *testing.T) {
	rng := crypto.NewDeterministicTestGenerator()

	for _, n := range []int{1, 2, 4, 8, 16, 64} {
		a, err := randomScalarVector(n, rng)
		if err != nil {
			t.Fatal(err)
		}
		b, err := randomScalarVector(n, rng)
		if err != nil {
			t.Fatal(err)
		}

		G, H := testGenerators.G[:n], testGenerators.H[:n]
		var transcript crypto.Scalar
		crypto.RandomScalar(&transcript, rng)

		proof, err := CreateInnerProductProof(testContext, transcript, G, H, &testGenerators.U, a, b)
		if err != nil {
			t.Fatal(err)
		}

		var P, tmp crypto.Point
		a.MultiplyPoints(&P, G)
		crypto.AddPoints(&P, &P, b.MultiplyPoints(&tmp, H))
		c := a.InnerProduct(b)

		if err = VerifyInnerProductProof(testContext, transcript, G, H, &testGenerators.U, &P, &c, proof); err != nil {
			t.Fatalf("n = %d: %s", n, err)
		}

		var wrongC crypto.Scalar
		wrongC.Add2(&c, &one)
		if err = VerifyInnerProductProof(testContext, transcript, G, H, &testGenerators.U, &P, &wrongC, proof); !errors.Is(err, ErrInvalidInnerProduct) {
			t.Fatalf("n = %d: expected ErrInvalidInnerProduct for wrong c, got %v", n, err)
		}

		var otherTranscript crypto.Scalar
		otherTranscript.Add2(&transcript, &one)
		if n > 1 {
			if err = VerifyInnerProductProof(testContext, otherTranscript, G, H, &testGenerators.U, &P, &c, proof); !errors.Is(err, ErrInvalidInnerProduct) {
				t.Fatalf("n = %d: expected ErrInvalidInnerProduct for wrong transcript, got %v", n, err)
			}
		}

		tampered := *proof
		tampered.A.Add(&one)
		if err = VerifyInnerProductProof(testContext, transcript, G, H, &testGenerators.U, &P, &c, &tampered); !errors.Is(err, ErrInvalidInnerProduct) {
			t.Fatalf("n = %d: expected ErrInvalidInnerProduct for tampered a, got %v", n, err)
		}

		if n > 1 {
			short := *proof
			short.L = short.L[1:]
			if err = VerifyInnerProductProof(testContext, transcript, G, H, &testGenerators.U, &P, &c, &short); !errors.Is(err, ErrIncorrectAmountOfGenerators) {
				t.Fatalf("n = %d: expected ErrIncorrectAmountOfGenerators, got %v", n, err)
			}
			uneven := *proof
			uneven.R = uneven.R[1:]
			if err = VerifyInnerProductProof(testContext, transcript, G, H, &testGenerators.U, &P, &c, &uneven); !errors.Is(err, ErrDifferingLRLengths) {
				t.Fatalf("n = %d: expected ErrDifferingLRLengths, got %v", n, err)
			}
		}
	}

	a, _ := randomScalarVector(3, rng)
	if _, err := CreateInnerProductProof(testContext, one, testGenerators.G[:3], testGenerators.H[:3], &testGenerators.U, a, a); !errors.Is(err, ErrIncorrectAmountOfGenerators) {
		t.Fatalf("expected ErrIncorrectAmountOfGenerators, got %v", err)
	}
}

func testCommitment(t testing.TB, amount uint64, rng *crypto.DeterministicTestGenerator) (*crypto.Scalar, crypto.PublicKeyBytes) {
	blinding, err := ringct.RandomBlindingFactor(rng)
	if err != nil {
		t.Fatal(err)
	}
	commitment, err := ringct.CreateCommitment(testContext, amount, blinding)
	if err != nil {
		t.Fatal(err)
	}
	return blinding, commitment
}

const expectedRangeProofSize = RangeProofHeaderSize + 1 + 6*2*crypto.PublicKeySize + 2*crypto.PrivateKeySize

func TestRangeProof(t *testing.T) {
	rng := crypto.NewDeterministicTestGenerator()

	for _, amount := range []uint64{0, 1, 100, 1_000_000, 100_000_000, math.MaxInt64, MaxAmount} {
		blinding, commitment := testCommitment(t, amount, rng)

		proof, err := testGenerators.CreateRangeProof(amount, blinding, commitment, rng)
		if err != nil {
			t.Fatalf("%d: %s", amount, err)
		}
		if len(proof) != expectedRangeProofSize {
			t.Fatalf("%d: expected %d bytes, got %d", amount, expectedRangeProofSize, len(proof))
		}
		if !testGenerators.VerifyRangeProof(commitment, proof) {
			t.Fatalf("%d: proof does not verify", amount)
		}

		_, otherCommitment := testCommitment(t, amount, rng)
		if testGenerators.VerifyRangeProof(otherCommitment, proof) {
			t.Fatalf("%d: proof verifies against another commitment", amount)
		}
	}
}

func TestRangeProofCorruption(t *testing.T) {
	rng := crypto.NewDeterministicTestGenerator()
	blinding, commitment := testCommitment(t, 123456789, rng)

	proof, err := testGenerators.CreateRangeProof(123456789, blinding, commitment, rng)
	if err != nil {
		t.Fatal(err)
	}

	fields := map[string]int{
		"tau_x": 1 + 4*crypto.PublicKeySize,
		"mu":    1 + 4*crypto.PublicKeySize + crypto.PrivateKeySize,
		"t_hat": 1 + 4*crypto.PublicKeySize + 2*crypto.PrivateKeySize,
	}
	for name, offset := range fields {
		t.Run(name, func(t *testing.T) {
			for _, i := range []int{0, 1, 16, 30, 31} {
				corrupted := bytes.Clone(proof)
				corrupted[offset+i] ^= 0x01
				if testGenerators.VerifyRangeProof(commitment, corrupted) {
					t.Fatalf("byte %d: corrupted proof verifies", i)
				}
			}
		})
	}

	t.Run("Points", func(t *testing.T) {
		for _, offset := range []int{1, 1 + crypto.PublicKeySize, 1 + 2*crypto.PublicKeySize, 1 + 3*crypto.PublicKeySize} {
			corrupted := bytes.Clone(proof)
			corrupted[offset+crypto.PublicKeySize-1] ^= 0x01
			if testGenerators.VerifyRangeProof(commitment, corrupted) {
				t.Fatalf("offset %d: corrupted proof verifies", offset)
			}
		}
	})

	t.Run("InnerProduct", func(t *testing.T) {
		for _, offset := range []int{RangeProofHeaderSize + 5, len(proof) - 1, len(proof) - crypto.PrivateKeySize - 1} {
			corrupted := bytes.Clone(proof)
			corrupted[offset] ^= 0x01
			if testGenerators.VerifyRangeProof(commitment, corrupted) {
				t.Fatalf("offset %d: corrupted proof verifies", offset)
			}
		}
	})

	t.Run("Length", func(t *testing.T) {
		if testGenerators.VerifyRangeProof(commitment, proof[:len(proof)-1]) {
			t.Fatal("truncated proof verifies")
		}
		if testGenerators.VerifyRangeProof(commitment, append(bytes.Clone(proof), 0)) {
			t.Fatal("extended proof verifies")
		}
		if testGenerators.VerifyRangeProof(commitment, proof[:RangeProofHeaderSize-1]) {
			t.Fatal("short proof verifies")
		}
		wrongVersion := bytes.Clone(proof)
		wrongVersion[0] = AggregatedRangeProofVersion
		if testGenerators.VerifyRangeProof(commitment, wrongVersion) {
			t.Fatal("wrong version verifies")
		}
	})

	if !testGenerators.VerifyRangeProof(commitment, proof) {
		t.Fatal("original proof does not verify")
	}
}

func TestRangeProofErrors(t *testing.T) {
	rng := crypto.NewDeterministicTestGenerator()
	blinding, commitment := testCommitment(t, 5, rng)

	if _, err := testGenerators.CreateRangeProof(6, blinding, commitment, rng); !errors.Is(err, ErrCommitmentMismatch) {
		t.Fatalf("expected ErrCommitmentMismatch, got %v", err)
	}
	if _, err := testGenerators.CreateRangeProof(MaxAmount+1, blinding, commitment, rng); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("expected ErrAmountTooLarge, got %v", err)
	}
	if _, err := testGenerators.CreateRangeProof(5, new(crypto.Scalar), commitment, rng); !errors.Is(err, ringct.ErrInvalidBlindingFactor) {
		t.Fatalf("expected ErrInvalidBlindingFactor, got %v", err)
	}
}

func TestLegacyProofs(t *testing.T) {
	rng := crypto.NewDeterministicTestGenerator()
	_, commitment := testCommitment(t, 5, rng)

	legacy := make([]byte, LegacyProofSize)
	legacy[LegacyProofSize-1] = 0xFF
	if !testGenerators.VerifyRangeProof(commitment, legacy) {
		t.Fatal("legacy range proof rejected")
	}
	if testGenerators.VerifyAggregatedRangeProof([]crypto.PublicKeyBytes{commitment}, legacy) {
		t.Fatal("legacy range proof accepted as aggregated")
	}

	legacy[LegacyProofSize-1] = 0xFE
	if !testGenerators.VerifyAggregatedRangeProof([]crypto.PublicKeyBytes{commitment}, legacy) {
		t.Fatal("legacy aggregated proof rejected")
	}
	if testGenerators.VerifyAggregatedRangeProof(nil, legacy) {
		t.Fatal("legacy aggregated proof accepted without commitments")
	}
	if testGenerators.VerifyAggregatedRangeProof([]crypto.PublicKeyBytes{}, legacy) {
		t.Fatal("legacy aggregated proof accepted with empty commitments")
	}
	if testGenerators.VerifyRangeProof(commitment, legacy) {
		t.Fatal("legacy aggregated proof accepted as single")
	}

	if testGenerators.VerifyRangeProof(commitment, legacy[:LegacyProofSize-1]) {
		t.Fatal("short legacy proof accepted")
	}
}

func TestAggregatedRangeProof(t *testing.T) {
	rng := crypto.NewDeterministicTestGenerator()

	amounts := []uint64{0, 42, 1 << 40}
	blindings := make([]*crypto.Scalar, len(amounts))
	commitments := make([]crypto.PublicKeyBytes, len(amounts))
	for i, amount := range amounts {
		blindings[i], commitments[i] = testCommitment(t, amount, rng)
	}

	proof, err := testGenerators.CreateAggregatedRangeProof(amounts, blindings, commitments, rng)
	if err != nil {
		t.Fatal(err)
	}
	if len(proof) != 2+len(amounts)*(2+expectedRangeProofSize) {
		t.Fatalf("unexpected aggregated size %d", len(proof))
	}
	if !testGenerators.VerifyAggregatedRangeProof(commitments, proof) {
		t.Fatal("aggregated proof does not verify")
	}

	proofs, err := SplitAggregatedRangeProof(proof)
	if err != nil {
		t.Fatal(err)
	}
	for i := range proofs {
		if !testGenerators.VerifyRangeProof(commitments[i], proofs[i]) {
			t.Fatalf("sub-proof %d does not verify", i)
		}
	}

	if testGenerators.VerifyAggregatedRangeProof(commitments[:2], proof) {
		t.Fatal("count mismatch verifies")
	}

	swapped := []crypto.PublicKeyBytes{commitments[1], commitments[0], commitments[2]}
	if testGenerators.VerifyAggregatedRangeProof(swapped, proof) {
		t.Fatal("reordered commitments verify")
	}

	// one corrupted tau_x in the last sub-proof fails the batch
	corrupted := bytes.Clone(proof)
	last := 2 + 2*(2+expectedRangeProofSize) + 2
	corrupted[last+1+4*crypto.PublicKeySize+7] ^= 0x10
	if testGenerators.VerifyAggregatedRangeProof(commitments, corrupted) {
		t.Fatal("corrupted aggregated proof verifies")
	}

	if testGenerators.VerifyAggregatedRangeProof(commitments, proof[:len(proof)-1]) {
		t.Fatal("truncated aggregated proof verifies")
	}

	if _, err = testGenerators.CreateAggregatedRangeProof(amounts, blindings[:2], commitments, rng); !errors.Is(err, ErrInvalidAggregation) {
		t.Fatalf("expected ErrInvalidAggregation, got %v", err)
	}
	if _, err = testGenerators.CreateAggregatedRangeProof(nil, nil, nil, rng); !errors.Is(err, ErrInvalidAggregation) {
		t.Fatalf("expected ErrInvalidAggregation, got %v", err)
	}
}

func BenchmarkVerifyRangeProof(b *testing.B) {
	rng := crypto.NewDeterministicTestGenerator()
	blinding, commitment := testCommitment(b, 1000, rng)
	proof, err := testGenerators.CreateRangeProof(1000, blinding, commitment, rng)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for range b.N {
		if !testGenerators.VerifyRangeProof(commitment, proof) {
			b.Fatal("invalid")
		}
	}
}
