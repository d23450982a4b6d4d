// Package math provides integer math types for voxel-space transforms.
package math

import "fmt"

// IVec3 is a 3D integer vector in voxel units.
type IVec3 struct {
	X, Y, Z int32
}

// Add returns v + other.
func (v IVec3) Add(other IVec3) IVec3 {
	return IVec3{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

// Sub returns v - other.
func (v IVec3) Sub(other IVec3) IVec3 {
	return IVec3{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

// Neg returns -v.
func (v IVec3) Neg() IVec3 {
	return IVec3{-v.X, -v.Y, -v.Z}
}

// Min returns the component-wise minimum.
func (v IVec3) Min(other IVec3) IVec3 {
	return IVec3{min(v.X, other.X), min(v.Y, other.Y), min(v.Z, other.Z)}
}

// Max returns the component-wise maximum.
func (v IVec3) Max(other IVec3) IVec3 {
	return IVec3{max(v.X, other.X), max(v.Y, other.Y), max(v.Z, other.Z)}
}

// Array returns the components as [x, y, z].
func (v IVec3) Array() [3]int32 {
	return [3]int32{v.X, v.Y, v.Z}
}

// String returns "(x, y, z)".
func (v IVec3) String() string {
	return fmt.Sprintf("(%d, %d, %d)", v.X, v.Y, v.Z)
}

// FromArray builds an IVec3 from [x, y, z].
func FromArray(a [3]int32) IVec3 {
	return IVec3{a[0], a[1], a[2]}
}
