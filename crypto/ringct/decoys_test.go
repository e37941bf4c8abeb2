package ringct

import (
	"errors"
	"math/rand/v2"
	"testing"

	"git.gammaspectra.live/WATTx/privacy/crypto"
)

type testDecoyProvider struct {
	height  int32
	outputs []DecoyCandidate
	rng     *rand.Rand
}

func newTestDecoyProvider(t testing.TB, n int, rng *crypto.DeterministicTestGenerator) *testDecoyProvider {
	keys := make([]crypto.PublicKeyBytes, 16)
	for i := range keys {
		kp, err := crypto.NewRandomKeyPair(rng)
		if err != nil {
			t.Fatal(err)
		}
		keys[i] = kp.PublicKey
	}

	p := &testDecoyProvider{
		height: int32(n/10) + 1,
		rng:    rand.New(rng),
	}
	for i := range n {
		p.outputs = append(p.outputs, DecoyCandidate{
			OutPoint:  testOutPoint(uint64(i)),
			PublicKey: keys[i%len(keys)],
			Amount:    1000,
			Height:    int32(i / 10),
			Coinbase:  i%50 == 0,
		})
	}
	return p
}

func (p *testDecoyProvider) OutputCount() uint64 {
	return uint64(len(p.outputs))
}

func (p *testDecoyProvider) Height() int32 {
	return p.height
}

func (p *testDecoyProvider) OutputByIndex(index uint64) (DecoyCandidate, bool) {
	if index >= uint64(len(p.outputs)) {
		return DecoyCandidate{}, false
	}
	return p.outputs[index], true
}

func (p *testDecoyProvider) RandomOutputs(count int, minHeight, maxHeight int32) (result []DecoyCandidate) {
	for range count * 4 {
		if len(result) >= count {
			break
		}
		c := p.outputs[p.rng.IntN(len(p.outputs))]
		if c.Height >= minHeight && c.Height <= maxHeight {
			result = append(result, c)
		}
	}
	return result
}

func testSelectorParams() DecoySelectionParams {
	params := DefaultDecoySelectionParams()
	params.MinConfirmations = 0
	return params
}

func TestSelectDecoys(t *testing.T) {
	rng := crypto.NewDeterministicTestGenerator()
	provider := newTestDecoyProvider(t, 1000, rng)

	realKey, err := crypto.NewRandomKeyPair(rng)
	if err != nil {
		t.Fatal(err)
	}
	realMember := RingMember{
		// inside the window gamma sampling favors
		OutPoint:  provider.outputs[985].OutPoint,
		PublicKey: realKey.PublicKey,
	}

	for _, useGamma := range []bool{true, false} {
		params := testSelectorParams()
		params.UseGamma = useGamma
		selector := NewDecoySelector(provider, params, rand.New(rng))

		for range 20 {
			const ringSize = 4
			decoys, err := selector.SelectDecoys(realMember.OutPoint, ringSize, 1000, realMember.PublicKey)
			if err != nil {
				t.Fatalf("gamma %v: %s", useGamma, err)
			}
			if len(decoys) != ringSize-1 {
				t.Fatalf("gamma %v: expected %d decoys, got %d", useGamma, ringSize-1, len(decoys))
			}
			seen := make(map[[32]byte]bool)
			for _, d := range decoys {
				if d.OutPoint.TxId == realMember.OutPoint.TxId {
					t.Fatalf("gamma %v: real output selected as decoy", useGamma)
				}
				if seen[d.OutPoint.TxId] {
					t.Fatalf("gamma %v: duplicate decoy %s", useGamma, d.OutPoint)
				}
				seen[d.OutPoint.TxId] = true
				if d.PublicKey == realMember.PublicKey {
					t.Fatalf("gamma %v: real key selected", useGamma)
				}
			}

			ring, err := selector.BuildRing(realMember, decoys)
			if err != nil {
				t.Fatal(err)
			}
			if len(ring.Ring) != ringSize {
				t.Fatalf("expected ring of %d, got %d", ringSize, len(ring.Ring))
			}
			if *ring.SignerRingMember() != realMember {
				t.Fatal("real member not at signer index")
			}
		}
	}
}

func TestSelectDecoysExcludesCoinbase(t *testing.T) {
	rng := crypto.NewDeterministicTestGenerator()
	provider := newTestDecoyProvider(t, 200, rng)
	for i := range provider.outputs {
		provider.outputs[i].Coinbase = i%2 == 0
	}

	selector := NewDecoySelector(provider, testSelectorParams(), rand.New(rng))

	for range 10 {
		decoys, err := selector.SelectDecoys(testOutPoint(100000), 3, 0, crypto.ZeroPublicKeyBytes)
		if err != nil {
			t.Fatal(err)
		}
		for _, d := range decoys {
			if d.OutPoint.Index%2 == 0 {
				// testOutPoint assigns Index = i % 4, so even indices are coinbase here
				t.Fatalf("coinbase output %s selected", d.OutPoint)
			}
		}
	}
}

func TestSelectDecoysFailures(t *testing.T) {
	rng := crypto.NewDeterministicTestGenerator()

	selector := NewDecoySelector(nil, testSelectorParams(), rand.New(rng))
	if _, err := selector.SelectDecoys(testOutPoint(0), 4, 0, crypto.ZeroPublicKeyBytes); !errors.Is(err, ErrNoDecoyProvider) {
		t.Fatalf("expected ErrNoDecoyProvider, got %v", err)
	}

	selector.Provider = newTestDecoyProvider(t, 3, rng)
	if _, err := selector.SelectDecoys(testOutPoint(0), 4, 0, crypto.ZeroPublicKeyBytes); !errors.Is(err, ErrNotEnoughOutputs) {
		t.Fatalf("expected ErrNotEnoughOutputs, got %v", err)
	}
	if _, err := selector.SelectDecoys(testOutPoint(0), 1, 0, crypto.ZeroPublicKeyBytes); !errors.Is(err, ErrInvalidRing) {
		t.Fatalf("expected ErrInvalidRing, got %v", err)
	}

	// every output is too young
	provider := newTestDecoyProvider(t, 500, rng)
	params := testSelectorParams()
	params.MinConfirmations = 1000
	selector = NewDecoySelector(provider, params, rand.New(rng))
	if _, err := selector.SelectDecoys(testOutPoint(100000), 4, 0, crypto.ZeroPublicKeyBytes); !errors.Is(err, ErrNotEnoughDecoys) {
		t.Fatalf("expected ErrNotEnoughDecoys, got %v", err)
	}

	// all outputs share one transaction
	provider = newTestDecoyProvider(t, 500, rng)
	for i := range provider.outputs {
		provider.outputs[i].OutPoint.TxId = provider.outputs[0].OutPoint.TxId
	}
	selector = NewDecoySelector(provider, testSelectorParams(), rand.New(rng))
	if _, err := selector.SelectDecoys(testOutPoint(100000), 4, 0, crypto.ZeroPublicKeyBytes); !errors.Is(err, ErrNotEnoughDecoys) {
		t.Fatalf("expected ErrNotEnoughDecoys, got %v", err)
	}
}

func TestDefaultDecoyRand(t *testing.T) {
	a := NewDecoySelector(nil, testSelectorParams(), nil)
	b := NewDecoySelector(nil, testSelectorParams(), nil)
	if a.Rand == nil || b.Rand == nil {
		t.Fatal("default rng not set")
	}

	var same int
	for range 8 {
		if a.Rand.Uint64() == b.Rand.Uint64() {
			same++
		}
	}
	if same == 8 {
		t.Fatal("default generators share a seed")
	}

	rng := crypto.NewDeterministicTestGenerator()
	ring, _ := testRing(t, 11, rng)
	seen := make(map[int]bool)
	for range 200 {
		decoys, err := a.BuildRing(ring[0], ring[1:])
		if err != nil {
			t.Fatal(err)
		}
		if decoys.SignerRingMember().PublicKey != ring[0].PublicKey {
			t.Fatalf("signer not at index %d", decoys.SignerIndex)
		}
		seen[decoys.SignerIndex] = true
	}
	if len(seen) < 6 {
		t.Fatalf("signer positions poorly spread: %d distinct of 11", len(seen))
	}
}

func TestSampleGamma(t *testing.T) {
	selector := NewDecoySelector(nil, DefaultDecoySelectionParams(), rand.New(crypto.NewDeterministicTestGenerator()))

	var sum uint64
	const samples = 2000
	for range samples {
		v := selector.sampleGamma(19.28, 1, 1_000_000)
		if v > 1_000_000 {
			t.Fatalf("sample %d out of range", v)
		}
		sum += v
	}
	// mean of gamma(k, 1) is k, truncation lowers it by about half a unit
	mean := float64(sum) / samples
	if mean < 17 || mean > 20 {
		t.Fatalf("unexpected mean %f", mean)
	}

	for range 100 {
		if v := selector.sampleGamma(19.28, 1, 5); v > 5 {
			t.Fatalf("sample %d above clamp", v)
		}
	}
}
