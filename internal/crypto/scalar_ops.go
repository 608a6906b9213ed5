package crypto

import "github.com/gtank/ristretto255"

func zeroScalar() *Scalar { return ristretto255.NewScalar().Zero() }

func oneScalar() *Scalar {
	var one [64]byte
	one[0] = 1
	return ristretto255.NewScalar().FromUniformBytes(one[:])
}

func subScalars(a, b *Scalar) *Scalar {
	return ristretto255.NewScalar().Subtract(a, b)
}

func negateScalar(a *Scalar) *Scalar {
	return subScalars(zeroScalar(), a)
}

func invertScalar(a *Scalar) *Scalar {
	return ristretto255.NewScalar().Invert(a)
}

// powScalar returns base^exp via square-and-multiply.
func powScalar(base *Scalar, exp int) *Scalar {
	result := oneScalar()
	b := base
	for exp > 0 {
		if exp&1 == 1 {
			result = mulScalars(result, b)
		}
		b = mulScalars(b, b)
		exp >>= 1
	}
	return result
}

// powersOfScalar returns [1, x, x^2, ..., x^(n-1)].
func powersOfScalar(x *Scalar, n int) []*Scalar {
	out := make([]*Scalar, n)
	out[0] = oneScalar()
	for i := 1; i < n; i++ {
		out[i] = mulScalars(out[i-1], x)
	}
	return out
}

func bitsOfUint64(v uint64, n int) []*Scalar {
	out := make([]*Scalar, n)
	for i := 0; i < n; i++ {
		if (v>>uint(i))&1 == 1 {
			out[i] = oneScalar()
		} else {
			out[i] = zeroScalar()
		}
	}
	return out
}

func scalarVecSub(a, b []*Scalar) []*Scalar {
	out := make([]*Scalar, len(a))
	for i := range a {
		out[i] = subScalars(a[i], b[i])
	}
	return out
}

func scalarVecAdd(a, b []*Scalar) []*Scalar {
	out := make([]*Scalar, len(a))
	for i := range a {
		out[i] = addScalars(a[i], b[i])
	}
	return out
}

func scalarVecHadamard(a, b []*Scalar) []*Scalar {
	out := make([]*Scalar, len(a))
	for i := range a {
		out[i] = mulScalars(a[i], b[i])
	}
	return out
}

func scalarVecScale(a []*Scalar, s *Scalar) []*Scalar {
	out := make([]*Scalar, len(a))
	for i := range a {
		out[i] = mulScalars(a[i], s)
	}
	return out
}

func scalarVecAddConst(a []*Scalar, c *Scalar) []*Scalar {
	out := make([]*Scalar, len(a))
	for i := range a {
		out[i] = addScalars(a[i], c)
	}
	return out
}

func innerProduct(a, b []*Scalar) *Scalar {
	acc := zeroScalar()
	for i := range a {
		acc = addScalars(acc, mulScalars(a[i], b[i]))
	}
	return acc
}

// multiScalarMult computes sum(scalars[i] * points[i]).
func multiScalarMult(scalars []*Scalar, points []*Point) *Point {
	acc := ristretto255.NewElement().Zero()
	for i := range scalars {
		acc = addPoints(acc, scalarMult(scalars[i], points[i]))
	}
	return acc
}

func invertVector(v []*Scalar) []*Scalar {
	out := make([]*Scalar, len(v))
	for i := range v {
		out[i] = invertScalar(v[i])
	}
	return out
}
