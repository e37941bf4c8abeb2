package crypto

import (
	"errors"

	"git.gammaspectra.live/WATTx/privacy/types"
)

var ErrHashToPointExhausted = errors.New("hash to point exhausted all attempts")
var ErrInvalidKeyImage = errors.New("invalid key image")

// KeyImage I = x * Hp(P). Deterministic per output, so spending the same output twice is detectable.
//
//nolint:recvcheck
type KeyImage [PublicKeySize]byte

var ZeroKeyImage KeyImage

// IsValid Checks the compressed encoding prefix
func (k KeyImage) IsValid() bool {
	return k[0] == 0x02 || k[0] == 0x03
}

func (k KeyImage) IsNull() bool {
	return !k.IsValid()
}

func (k KeyImage) Point() (*Point, error) {
	return DecodeCompressedPoint(new(Point), PublicKeyBytes(k))
}

func (k KeyImage) Slice() []byte {
	return k[:]
}

func (k KeyImage) String() string {
	return types.Bytes(k[:]).String()
}

func (k KeyImage) MarshalJSON() ([]byte, error) {
	return types.AppendHexJSON(make([]byte, 0, PublicKeySize*2+2), k[:]), nil
}

func (k *KeyImage) UnmarshalJSON(b []byte) error {
	return types.DecodeHexJSON(k[:], b)
}

func KeyImageFromSlice(buf []byte) (k KeyImage, err error) {
	if len(buf) != PublicKeySize {
		return k, ErrInvalidKeyImage
	}
	copy(k[:], buf)
	return k, nil
}

// GenerateKeyImage I = privateKey * Hp(publicKey)
func (c *Context) GenerateKeyImage(privateKey *Scalar, publicKey PublicKeyBytes) (KeyImage, error) {
	if privateKey.IsZero() {
		return ZeroKeyImage, ErrInvalidScalar
	}
	var hp, image Point
	if _, err := c.HashToPoint(&hp, publicKey); err != nil {
		return ZeroKeyImage, err
	}
	buf, err := EncodeCompressedPoint(ScalarMult(&image, privateKey, &hp))
	if err != nil {
		return ZeroKeyImage, err
	}
	return KeyImage(buf), nil
}

func (c *Context) GetKeyImage(pair *KeyPair) (KeyImage, error) {
	return c.GenerateKeyImage(&pair.PrivateKey, pair.PublicKey)
}
