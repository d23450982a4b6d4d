package math

import (
	"errors"
	"fmt"
)

// ErrInvalidRotation is returned when a packed rotation byte does not
// describe a signed permutation matrix.
var ErrInvalidRotation = errors.New("invalid packed rotation")

// Mat3 is a 3x3 integer matrix in row-major order.
// Voxel rotations are signed permutation matrices: exactly one
// entry of +1 or -1 per row and column.
type Mat3 [3][3]int32

// Identity3 returns the identity rotation.
func Identity3() Mat3 {
	return Mat3{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
}

// Mul returns m * other.
func (m Mat3) Mul(other Mat3) Mat3 {
	var result Mat3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			var sum int32
			for k := 0; k < 3; k++ {
				sum += m[row][k] * other[k][col]
			}
			result[row][col] = sum
		}
	}
	return result
}

// MulVec returns m * v.
func (m Mat3) MulVec(v IVec3) IVec3 {
	return IVec3{
		m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Transpose returns the transposed matrix. For rotations this is the inverse.
func (m Mat3) Transpose() Mat3 {
	var result Mat3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			result[col][row] = m[row][col]
		}
	}
	return result
}

// Determinant returns the determinant. Proper rotations have +1,
// reflections have -1.
func (m Mat3) Determinant() int32 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// DecodeRotation unpacks a MagicaVoxel `_r` rotation byte.
//
//	bit 0-1: column of the non-zero entry in row 0
//	bit 2-3: column of the non-zero entry in row 1
//	bit 4:   sign of row 0 (1 = negative)
//	bit 5:   sign of row 1
//	bit 6:   sign of row 2
//
// Row 2's column is whichever one rows 0 and 1 did not take.
func DecodeRotation(r uint8) (Mat3, error) {
	col0 := int(r & 3)
	col1 := int((r >> 2) & 3)
	if col0 == 3 || col1 == 3 || col0 == col1 {
		return Mat3{}, fmt.Errorf("%w: 0x%02x", ErrInvalidRotation, r)
	}
	col2 := 3 - col0 - col1

	var m Mat3
	m[0][col0] = sign(r, 4)
	m[1][col1] = sign(r, 5)
	m[2][col2] = sign(r, 6)
	return m, nil
}

// EncodeRotation packs a signed permutation matrix into a rotation byte.
func EncodeRotation(m Mat3) (uint8, error) {
	var r uint8
	for row := 0; row < 3; row++ {
		col := -1
		for c := 0; c < 3; c++ {
			if m[row][c] == 0 {
				continue
			}
			if col >= 0 || (m[row][c] != 1 && m[row][c] != -1) {
				return 0, fmt.Errorf("%w: row %d is not a signed unit", ErrInvalidRotation, row)
			}
			col = c
		}
		if col < 0 {
			return 0, fmt.Errorf("%w: row %d is empty", ErrInvalidRotation, row)
		}
		switch row {
		case 0:
			r |= uint8(col)
		case 1:
			r |= uint8(col) << 2
		}
		if m[row][col] < 0 {
			r |= 1 << (4 + row)
		}
	}

	// Reject matrices whose rows share a column.
	if decoded, err := DecodeRotation(r); err != nil || decoded != m {
		return 0, fmt.Errorf("%w: not a permutation", ErrInvalidRotation)
	}
	return r, nil
}

func sign(r uint8, bit uint) int32 {
	if r&(1<<bit) != 0 {
		return -1
	}
	return 1
}
