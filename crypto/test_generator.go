package crypto

import (
	"encoding/binary"

	"git.gammaspectra.live/WATTx/privacy/types"
)

// DeterministicTestGenerator A reproducible io.Reader for tests, a Keccak-256 counter mode stream
type DeterministicTestGenerator struct {
	seed         types.Hash
	block        types.Hash
	offset       int
	permutations int
}

var testGeneratorSeed = []byte("WATTx deterministic test generator")

func NewDeterministicTestGenerator() *DeterministicTestGenerator {
	return NewDeterministicTestGeneratorFromSeed(testGeneratorSeed)
}

func NewDeterministicTestGeneratorFromSeed(seed []byte) *DeterministicTestGenerator {
	g := &DeterministicTestGenerator{
		seed: Keccak256(seed),
	}
	g.offset = len(g.block)
	return g
}

func (g *DeterministicTestGenerator) next() {
	var counter [8]byte
	binary.LittleEndian.PutUint64(counter[:], uint64(g.permutations))
	g.block = Keccak256Var(g.seed[:], counter[:])
	g.offset = 0
	g.permutations++
}

func (g *DeterministicTestGenerator) Read(buf []byte) (n int, err error) {
	for n < len(buf) {
		if g.offset == len(g.block) {
			g.next()
		}
		c := copy(buf[n:], g.block[g.offset:])
		g.offset += c
		n += c
	}
	return n, nil
}

// Skip Discards n permutations
func (g *DeterministicTestGenerator) Skip(n int) {
	for range n {
		g.next()
	}
	g.offset = len(g.block)
}

func (g *DeterministicTestGenerator) Permutations() int {
	return g.permutations
}

// Uint64 Next 8 bytes of the stream as a little endian integer
func (g *DeterministicTestGenerator) Uint64() uint64 {
	var buf [8]byte
	_, _ = g.Read(buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}
