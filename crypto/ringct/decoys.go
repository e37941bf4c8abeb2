package ringct

import (
	cryptorand "crypto/rand"
	"errors"
	"math"
	"math/rand/v2"

	"git.gammaspectra.live/WATTx/privacy/crypto"
	"git.gammaspectra.live/WATTx/privacy/types"
	"git.gammaspectra.live/WATTx/privacy/utils"
)

var ErrNoDecoyProvider = errors.New("no decoy provider")
var ErrNotEnoughOutputs = errors.New("not enough outputs on chain")
var ErrNotEnoughDecoys = errors.New("not enough decoys found")

// DecoyCandidate An output as reported by the chain
type DecoyCandidate struct {
	OutPoint   types.OutPoint
	PublicKey  crypto.PublicKeyBytes
	Commitment crypto.PublicKeyBytes
	Amount     uint64
	Height     int32
	Coinbase   bool
}

func (c DecoyCandidate) RingMember() RingMember {
	return RingMember{
		OutPoint:   c.OutPoint,
		PublicKey:  c.PublicKey,
		Commitment: c.Commitment,
	}
}

// DecoyProvider Read access to the output set
type DecoyProvider interface {
	OutputCount() uint64
	Height() int32
	OutputByIndex(index uint64) (DecoyCandidate, bool)
	// RandomOutputs Returns up to count uniformly chosen outputs created within [minHeight, maxHeight]
	RandomOutputs(count int, minHeight, maxHeight int32) []DecoyCandidate
}

type DecoySelectionParams struct {
	MinConfirmations int32 `json:"min_confirmations"`
	// MaxConfirmations 0 means unlimited
	MaxConfirmations int32 `json:"max_confirmations"`
	// AmountSimilarity 0 wants exact amounts, 1 accepts any amount
	AmountSimilarity float64 `json:"amount_similarity"`
	UseGamma         bool    `json:"use_gamma"`
	GammaShape       float64 `json:"gamma_shape"`
	GammaScale       float64 `json:"gamma_scale"`
	ExcludeCoinbase  bool    `json:"exclude_coinbase"`
}

func DefaultDecoySelectionParams() DecoySelectionParams {
	return DecoySelectionParams{
		MinConfirmations: 10,
		MaxConfirmations: 0,
		AmountSimilarity: 0.5,
		UseGamma:         true,
		GammaShape:       19.28,
		GammaScale:       1.0,
		ExcludeCoinbase:  true,
	}
}

// DecoySelector Picks decoys for a real output from Provider
type DecoySelector struct {
	Provider DecoyProvider
	Params   DecoySelectionParams
	Rand     *rand.Rand
}

// NewSecureRand ChaCha8 generator seeded from the system CSPRNG.
// Decoy picks and the signer position must not be predictable from previous outputs.
func NewSecureRand() *rand.Rand {
	var seed [32]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		utils.Panicf("decoy rng seed: %s", err)
	}
	return rand.New(rand.NewChaCha8(seed))
}

// NewDecoySelector A nil rng uses NewSecureRand
func NewDecoySelector(provider DecoyProvider, params DecoySelectionParams, rng *rand.Rand) *DecoySelector {
	if rng == nil {
		rng = NewSecureRand()
	}
	return &DecoySelector{
		Provider: provider,
		Params:   params,
		Rand:     rng,
	}
}

// sampleGamma Marsaglia and Tsang, clamped to [0, maxValue]
func (s *DecoySelector) sampleGamma(shape, scale float64, maxValue uint64) uint64 {
	if shape < 1 {
		shape = 1
	}
	if scale <= 0 {
		scale = 1
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)

	clamp := func(v float64) uint64 {
		if v < 0 {
			return 0
		}
		if v > float64(maxValue) {
			return maxValue
		}
		return uint64(v)
	}

	for {
		var x, v float64
		for {
			x = s.Rand.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := s.Rand.Float64()
		if u < 1-0.0331*(x*x)*(x*x) {
			return clamp(d * v * scale)
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return clamp(d * v * scale)
		}
	}
}

type decoyFilter struct {
	params     DecoySelectionParams
	minHeight  int32
	maxHeight  int32
	realPubKey crypto.PublicKeyBytes
	seen       map[types.Hash]struct{}
}

func (f *decoyFilter) accept(c DecoyCandidate) bool {
	if c.Height < f.minHeight || c.Height > f.maxHeight {
		return false
	}
	if _, ok := f.seen[c.OutPoint.TxId]; ok {
		return false
	}
	if f.params.ExcludeCoinbase && c.Coinbase {
		return false
	}
	if !f.realPubKey.IsZero() && c.PublicKey == f.realPubKey {
		return false
	}
	return c.PublicKey.IsValid()
}

// SelectDecoys Returns exactly ringSize - 1 decoys for realOutput, none of them sharing its transaction
func (s *DecoySelector) SelectDecoys(realOutput types.OutPoint, ringSize int, realAmount uint64, realPubKey crypto.PublicKeyBytes) ([]RingMember, error) {
	if ringSize < MinRingSize {
		return nil, ErrInvalidRing
	}
	if s.Provider == nil {
		return nil, ErrNoDecoyProvider
	}

	totalOutputs := s.Provider.OutputCount()
	height := s.Provider.Height()
	if totalOutputs < uint64(ringSize) {
		return nil, ErrNotEnoughOutputs
	}

	needed := ringSize - 1

	f := &decoyFilter{
		params:     s.Params,
		realPubKey: realPubKey,
		seen:       make(map[types.Hash]struct{}, ringSize),
	}
	f.seen[realOutput.TxId] = struct{}{}

	f.minHeight = height - s.Params.MaxConfirmations
	if s.Params.MaxConfirmations == 0 || f.minHeight < 0 {
		f.minHeight = 0
	}
	f.maxHeight = height - s.Params.MinConfirmations

	decoys := make([]RingMember, 0, needed)

	if s.Params.UseGamma {
		maxAttempts := needed * 10
		for attempts := 0; len(decoys) < needed && attempts < maxAttempts; attempts++ {
			age := s.sampleGamma(s.Params.GammaShape, s.Params.GammaScale, totalOutputs)
			var index uint64
			if age < totalOutputs {
				index = totalOutputs - 1 - age
			}

			candidate, ok := s.Provider.OutputByIndex(index)
			if !ok || !f.accept(candidate) {
				continue
			}

			if s.Params.AmountSimilarity < 1 && realAmount > 0 {
				ratio := float64(candidate.Amount) / float64(realAmount)
				if ratio < 1 {
					ratio = 1 / ratio
				}
				maxRatio := 1 + 10*s.Params.AmountSimilarity
				// dissimilar amounts are kept one time in five
				if ratio > maxRatio && s.Rand.Uint64N(101) > 20 {
					continue
				}
			}

			f.seen[candidate.OutPoint.TxId] = struct{}{}
			decoys = append(decoys, candidate.RingMember())
		}
	} else {
		for _, candidate := range s.Provider.RandomOutputs(needed*2, f.minHeight, f.maxHeight) {
			if len(decoys) >= needed {
				break
			}
			if !f.accept(candidate) {
				continue
			}
			f.seen[candidate.OutPoint.TxId] = struct{}{}
			decoys = append(decoys, candidate.RingMember())
		}
	}

	if len(decoys) < needed {
		utils.Debugf("Decoys", "found %d of %d decoys for %s", len(decoys), needed, realOutput)
		return nil, ErrNotEnoughDecoys
	}
	return decoys, nil
}

// Decoys A ring together with the position of the signer
type Decoys struct {
	Ring        Ring
	SignerIndex int
}

func (d Decoys) SignerRingMember() *RingMember {
	return &d.Ring[d.SignerIndex]
}

// BuildRing Places realMember at a uniformly random position among decoys
func (s *DecoySelector) BuildRing(realMember RingMember, decoys []RingMember) (Decoys, error) {
	ringSize := len(decoys) + 1
	realIndex := s.Rand.IntN(ringSize)

	ring := make(Ring, 0, ringSize)
	ring = append(ring, decoys[:realIndex]...)
	ring = append(ring, realMember)
	ring = append(ring, decoys[realIndex:]...)

	if err := ring.Validate(); err != nil {
		return Decoys{}, err
	}
	return Decoys{
		Ring:        ring,
		SignerIndex: realIndex,
	}, nil
}

// SelectRing Selects decoys for realMember and builds the shuffled ring
func (s *DecoySelector) SelectRing(realMember RingMember, ringSize int, realAmount uint64) (Decoys, error) {
	decoys, err := s.SelectDecoys(realMember.OutPoint, ringSize, realAmount, realMember.PublicKey)
	if err != nil {
		return Decoys{}, err
	}
	return s.BuildRing(realMember, decoys)
}
