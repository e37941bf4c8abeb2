package crypto

import (
	"errors"
	"io"
)

type KeyPair struct {
	PrivateKey Scalar
	PublicKey  PublicKeyBytes
}

func NewKeyPairFromPrivate(privateKey *Scalar) (*KeyPair, error) {
	if privateKey.IsZero() {
		return nil, ErrInvalidScalar
	}
	var p Point
	pub, err := EncodeCompressedPoint(ScalarBaseMult(&p, privateKey))
	if err != nil {
		return nil, err
	}
	kp := &KeyPair{PublicKey: pub}
	kp.PrivateKey.Set(privateKey)
	return kp, nil
}

func NewRandomKeyPair(randomReader io.Reader) (*KeyPair, error) {
	var k Scalar
	if RandomScalar(&k, randomReader) == nil {
		return nil, errors.New("could not read randomness")
	}
	return NewKeyPairFromPrivate(&k)
}

// Matches Reports whether PublicKey is privateKey * G
func (k *KeyPair) Matches(publicKey PublicKeyBytes) bool {
	return k.PublicKey == publicKey
}

// PublicKeyFromPrivate privateKey * G, serialized
func PublicKeyFromPrivate(privateKey *Scalar) (PublicKeyBytes, error) {
	var p Point
	return EncodeCompressedPoint(ScalarBaseMult(&p, privateKey))
}
