package bulletproofs

import (
	"git.gammaspectra.live/WATTx/privacy/crypto"
)

var one = *new(crypto.Scalar).SetInt(1)
var two = *new(crypto.Scalar).SetInt(2)

var twoScalarVectorPowers = AppendScalarVectorPowers(nil, &two, CommitmentBits)

// TwoScalarVectorPowers 2^0 ... 2^(n-1). Must not be modified.
func TwoScalarVectorPowers() ScalarVector {
	return twoScalarVectorPowers
}

// AppendScalarVectorPowers Appends x^0 ... x^(size-1) to out
func AppendScalarVectorPowers(out ScalarVector, x *crypto.Scalar, size int) ScalarVector {
	if size == 0 {
		return out
	}
	n := len(out)
	out = append(out, one, *x)
	var tmp crypto.Scalar
	for i := 2; i < size; i++ {
		out = append(out, *tmp.Mul2(&out[i-1+n], x))
	}
	return out[:size+n]
}

type ScalarVector []crypto.Scalar

func (v ScalarVector) Split() (a, b ScalarVector) {
	if len(v) <= 1 || len(v)%2 != 0 {
		panic("unreachable")
	}

	return v[:len(v)/2], v[len(v)/2:]
}

func (v ScalarVector) Sum() (out crypto.Scalar) {
	for i := range v {
		out.Add(&v[i])
	}
	return out
}

func (v ScalarVector) Copy(out ScalarVector) ScalarVector {
	out = append(out, v...)
	return out
}

// InnerProduct Returns sum(v * o)
func (v ScalarVector) InnerProduct(o ScalarVector) (out crypto.Scalar) {
	if len(o) != len(v) {
		panic("len mismatch")
	}
	for i := range v {
		crypto.ScalarMulAdd(&out, &v[i], &o[i], &out)
	}
	return out
}

func (v ScalarVector) Add(s *crypto.Scalar) ScalarVector {
	for i := range v {
		v[i].Add(s)
	}
	return v
}

func (v ScalarVector) Subtract(s *crypto.Scalar) ScalarVector {
	for i := range v {
		crypto.ScalarSubtract(&v[i], &v[i], s)
	}
	return v
}

func (v ScalarVector) Multiply(s *crypto.Scalar) ScalarVector {
	for i := range v {
		v[i].Mul(s)
	}
	return v
}

func (v ScalarVector) AddVec(o ScalarVector) ScalarVector {
	if len(o) != len(v) {
		panic("len mismatch")
	}
	for i := range v {
		v[i].Add(&o[i])
	}
	return v
}

// AddVecMultiply v += o * s
func (v ScalarVector) AddVecMultiply(o ScalarVector, s *crypto.Scalar) ScalarVector {
	if len(o) != len(v) {
		panic("len mismatch")
	}
	for i := range v {
		crypto.ScalarMulAdd(&v[i], &o[i], s, &v[i])
	}
	return v
}

func (v ScalarVector) SubtractVec(o ScalarVector) ScalarVector {
	if len(o) != len(v) {
		panic("len mismatch")
	}
	for i := range v {
		crypto.ScalarSubtract(&v[i], &v[i], &o[i])
	}
	return v
}

func (v ScalarVector) MultiplyVec(o ScalarVector) ScalarVector {
	if len(o) != len(v) {
		panic("len mismatch")
	}
	for i := range v {
		v[i].Mul(&o[i])
	}
	return v
}

// MultiplyPoints Returns sum(v * points)
func (v ScalarVector) MultiplyPoints(dst *crypto.Point, points PointVector) *crypto.Point {
	if len(points) != len(v) {
		panic("len mismatch")
	}
	var sum, tmp crypto.Point
	for i := range v {
		if v[i].IsZero() {
			continue
		}
		crypto.AddPoints(&sum, &sum, crypto.ScalarMult(&tmp, &v[i], &points[i]))
	}
	dst.Set(&sum)
	return dst
}

type PointVector []crypto.Point

func (v PointVector) Split() (a, b PointVector) {
	if len(v) <= 1 || len(v)%2 != 0 {
		panic("unreachable")
	}

	return v[:len(v)/2], v[len(v)/2:]
}

func (v PointVector) Copy(out PointVector) PointVector {
	out = append(out, v...)
	return out
}

// Sum Returns the sum of all points
func (v PointVector) Sum(dst *crypto.Point) *crypto.Point {
	var sum crypto.Point
	for i := range v {
		crypto.AddPoints(&sum, &sum, &v[i])
	}
	dst.Set(&sum)
	return dst
}

func (v PointVector) MultiplyVec(o ScalarVector) PointVector {
	if len(o) != len(v) {
		panic("len mismatch")
	}
	for i := range v {
		crypto.ScalarMult(&v[i], &o[i], &v[i])
	}
	return v
}

func (v PointVector) MultiplyScalars(dst *crypto.Point, scalars ScalarVector) *crypto.Point {
	return scalars.MultiplyPoints(dst, v)
}
