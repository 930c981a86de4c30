// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fixmath provides 16.16 fixed-point math: CORDIC vector rotation
// and polarization plus a few integer helpers. Angles are degrees in 16.16.
// No floating point is used anywhere.
package fixmath

const (
	// FractionalBits is the number of fraction bits in a 16.16 value.
	FractionalBits = 16
	One            = 1 << FractionalBits
	Epsilon        = 655 // 0.01 in 16.16

	// cosScale is 0.2715717684432241 * 2^30, the inverse CORDIC gain.
	cosScale = 0x11616E8E

	// quarter is 90 degrees in 16.16.
	quarter = 90 << FractionalBits

	maxIterations = 22
)

// arctanTable holds atan(2), atan(1), atan(1/2), ... in 16.16 degrees.
var arctanTable = [24]int64{
	4157273, 2949120, 1740967, 919879, 466945, 234379, 117304, 58666,
	29335, 14668, 7334, 3667, 1833, 917, 458, 229,
	115, 57, 29, 14, 7, 4, 2, 1,
}

// Vec2 is a 2D integer vector, typically holding 16.16 values.
type Vec2 struct {
	X, Y int64
}

func (v Vec2) Add(other Vec2) Vec2 {
	v.X += other.X
	v.Y += other.Y
	return v
}

func (v Vec2) Sub(other Vec2) Vec2 {
	v.X -= other.X
	v.Y -= other.Y
	return v
}

func (v Vec2) Mul(scalar int64) Vec2 {
	v.X *= scalar
	v.Y *= scalar
	return v
}

func (v Vec2) Negate() Vec2 {
	v.X = -v.X
	v.Y = -v.Y
	return v
}

func (v Vec2) LengthSquared() int64 {
	return v.X*v.X + v.Y*v.Y
}

// Length is computed with the integer square root. Not advisable for
// normalizing a small vector; scale it up first.
func (v Vec2) Length() int64 {
	return Sqrt32(v.LengthSquared())
}

// Rotate rotates the vector counterclockwise by theta (16.16 degrees).
func (v Vec2) Rotate(theta int64) Vec2 {
	if v.X == 0 && v.Y == 0 {
		return v
	}

	// Prenormalize for accuracy, rotate, then undo the CORDIC gain and
	// the block exponent.
	v, shiftExp := cordicNormalize(v)
	v = cordicRotate(v, theta)

	v.X = fractionMultiply(v.X, cosScale)
	v.Y = fractionMultiply(v.Y, cosScale)
	if shiftExp < 0 {
		v.X >>= uint(-shiftExp)
		v.Y >>= uint(-shiftExp)
	} else {
		v.X <<= uint(shiftExp)
		v.Y <<= uint(shiftExp)
	}
	return v
}

// UnitVector returns the vector at angle theta with unit magnitude in the
// CORDIC working scale.
func UnitVector(theta int64) Vec2 {
	return cordicRotate(Vec2{X: cosScale}, theta)
}

// Polar converts the vector to polar coordinates (16.16 degrees).
func (v Vec2) Polar() (r, theta int64) {
	if v.X == 0 && v.Y == 0 {
		return 0, 0
	}

	v, shiftExp := cordicNormalize(v)
	v = cordicPolarize(v)

	r = fractionMultiply(v.X, cosScale)
	if shiftExp < 0 {
		r >>= uint(-shiftExp)
	} else {
		r <<= uint(shiftExp)
	}
	return r, v.Y
}

// Atan2 returns the vector's angle in 16.16 degrees, in (-180, 180].
func (v Vec2) Atan2() int64 {
	if v.X == 0 && v.Y == 0 {
		return 0
	}

	v, _ = cordicNormalize(v)
	v = cordicPolarize(v)
	return v.Y
}

// Sqrt32 computes the integer square root one result bit at a time.
func Sqrt32(value int64) int64 {
	g := int64(0)
	b := int64(1) << 15
	for bshft := 15; bshft >= 0; bshft-- {
		if t := (g + g + b) << uint(bshft); value >= t {
			g += b
			value -= t
		}
		b >>= 1
	}
	return g
}

// FastDiv10 divides by 10 without a division. Error becomes significant
// above 150000.
func FastDiv10(n int32) int32 {
	return int32(int64(n) * 6554 >> 16)
}

// FastDiv10Small divides by 10 without a division or a large multiply.
// Error builds up above 630.
func FastDiv10Small(n int32) int32 {
	n = n + n<<1 + n<<4 + n<<5
	n >>= 8 // n is now n/5
	return (n + 1) >> 1
}

// cordicNormalize shifts the vector into the working range and returns the
// block exponent to undo afterwards.
func cordicNormalize(v Vec2) (Vec2, int) {
	x, y := v.X, v.Y
	signX, signY := false, false
	shiftExp := 0

	if x < 0 {
		x = -x
		signX = true
	}
	if y < 0 {
		y = -y
		signY = true
	}

	if x < y {
		for y < 1<<27 {
			x <<= 1
			y <<= 1
			shiftExp--
		}
		for y > 1<<28 {
			x >>= 1
			y >>= 1
			shiftExp++
		}
	} else {
		for x < 1<<27 {
			x <<= 1
			y <<= 1
			shiftExp--
		}
		for x > 1<<28 {
			x >>= 1
			y >>= 1
			shiftExp++
		}
	}

	if signX {
		x = -x
	}
	if signY {
		y = -y
	}
	return Vec2{X: x, Y: y}, shiftExp
}

// cordicRotate performs the raw CORDIC rotation of a normalized vector.
// The result carries the CORDIC gain.
func cordicRotate(v Vec2, theta int64) Vec2 {
	x, y := v.X, v.Y

	// Bring the angle into [-90, 90] with half-turns.
	for theta < -quarter {
		x = -x
		y = -y
		theta += 2 * quarter
	}
	for theta > quarter {
		x = -x
		y = -y
		theta -= 2 * quarter
	}

	// Initial rotation uses a left shift (tan = 2).
	arctanPtr := 0
	if theta < 0 {
		x, y = x+y<<1, y-x<<1
		theta += arctanTable[arctanPtr]
	} else {
		x, y = x-y<<1, y+x<<1
		theta -= arctanTable[arctanPtr]
	}
	arctanPtr++

	// Remaining rotations use right shifts.
	for i := 0; i < maxIterations; i++ {
		if theta < 0 {
			x, y = x+y>>uint(i), y-x>>uint(i)
			theta += arctanTable[arctanPtr]
		} else {
			x, y = x-y>>uint(i), y+x>>uint(i)
			theta -= arctanTable[arctanPtr]
		}
		arctanPtr++
	}

	return Vec2{X: x, Y: y}
}

// cordicPolarize drives a normalized vector onto the x axis, accumulating
// the angle. On return X is the radius (with gain) and Y the angle.
func cordicPolarize(v Vec2) Vec2 {
	x, y := v.X, v.Y

	// Get the vector into the right half-plane.
	var theta int64
	if x < 0 {
		x = -x
		y = -y
		theta = 2 * quarter
	}
	if y > 0 {
		theta = -theta
	}

	arctanPtr := 0
	if y < 0 {
		x, y = x-y<<1, y+x<<1
		theta -= arctanTable[arctanPtr]
	} else {
		x, y = x+y<<1, y-x<<1
		theta += arctanTable[arctanPtr]
	}
	arctanPtr++

	for i := 0; i < maxIterations; i++ {
		if y < 0 {
			x, y = x-y>>uint(i), y+x>>uint(i)
			theta -= arctanTable[arctanPtr]
		} else {
			x, y = x+y>>uint(i), y-x>>uint(i)
			theta += arctanTable[arctanPtr]
		}
		arctanPtr++
	}

	return Vec2{X: x, Y: theta}
}

// fractionMultiply multiplies a value by a 2.30 fraction such as cosScale
// (a*b >> 30), dropping precision evenly from both operands.
func fractionMultiply(a, b int64) int64 {
	return (a >> 15) * (b >> 15)
}
