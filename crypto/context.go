package crypto

import (
	"fmt"

	"git.gammaspectra.live/WATTx/privacy/utils"
)

// Context Holds the domain separated generators and caches used by one protocol.
// Contexts are immutable after creation and safe for concurrent use.
type Context struct {
	domain []byte

	h Point
	u Point

	hashToPointCache utils.Cache[PublicKeyBytes, Point]
}

// NewContext Derives the generators for domain. A cacheSize of zero disables hash-to-point caching.
func NewContext(domain string, cacheSize int) (*Context, error) {
	c := &Context{
		domain: []byte(domain),
	}
	if cacheSize > 0 {
		c.hashToPointCache = utils.NewLRUCache[PublicKeyBytes, Point](cacheSize)
	} else {
		c.hashToPointCache = utils.NewNilCache[PublicKeyBytes, Point]()
	}

	if _, err := c.DerivePoint(&c.h, "GeneratorH"); err != nil {
		return nil, fmt.Errorf("generator H: %w", err)
	}
	if _, err := c.DerivePoint(&c.u, "GeneratorU"); err != nil {
		return nil, fmt.Errorf("generator U: %w", err)
	}
	return c, nil
}

// MustNewContext As NewContext, panicking on failure. Meant for package level initialization of fixed domains.
func MustNewContext(domain string, cacheSize int) *Context {
	c, err := NewContext(domain, cacheSize)
	if err != nil {
		utils.Panicf("crypto context %s: %s", domain, err)
	}
	return c
}

func (c *Context) Domain() string {
	return string(c.domain)
}

// GeneratorH Second generator, with unknown discrete logarithm relative to G. Used for amounts.
func (c *Context) GeneratorH() *Point {
	var p Point
	p.Set(&c.h)
	return &p
}

// GeneratorU Third generator, used by the inner-product argument
func (c *Context) GeneratorU() *Point {
	var p Point
	p.Set(&c.u)
	return &p
}

// HashToScalar H(domain || label || data...) reduced modulo the group order
func (c *Context) HashToScalar(dst *Scalar, label string, data ...[]byte) *Scalar {
	h := NewKeccak256()
	_, _ = h.Write(c.domain)
	_, _ = h.Write([]byte(label))
	for _, d := range data {
		_, _ = h.Write(d)
	}
	var buf [32]byte
	h.Sum(buf[:0])
	dst.SetBytes(&buf)
	return dst
}

// DerivePoint Try-and-increment hash to curve over H(domain || label || data... || counter).
// The hash is taken as the x coordinate and its last bit selects the parity.
func (c *Context) DerivePoint(dst *Point, label string, data ...[]byte) (*Point, error) {
	h := NewKeccak256()
	var candidate PublicKeyBytes
	var buf [32]byte
	for counter := 0; counter < MaxHashToPointAttempts; counter++ {
		h.Reset()
		_, _ = h.Write(c.domain)
		_, _ = h.Write([]byte(label))
		for _, d := range data {
			_, _ = h.Write(d)
		}
		_, _ = h.Write([]byte{byte(counter)})
		h.Sum(buf[:0])

		candidate[0] = 0x02 | (buf[31] & 1)
		copy(candidate[1:], buf[:])
		if p, err := DecodeCompressedPoint(dst, candidate); err == nil {
			return p, nil
		}
	}
	return nil, ErrHashToPointExhausted
}

// HashToPoint Hp(P), the point key images are built on. Results are cached.
func (c *Context) HashToPoint(dst *Point, pub PublicKeyBytes) (*Point, error) {
	if p, ok := c.hashToPointCache.Get(pub); ok {
		dst.Set(&p)
		return dst, nil
	}
	if _, err := c.DerivePoint(dst, "HashToPoint", pub[:]); err != nil {
		return nil, err
	}
	c.hashToPointCache.Set(pub, *dst)
	return dst, nil
}
