package math

// Transform is a voxel-space rigid transform: rotate, then translate.
type Transform struct {
	Rotation    Mat3
	Translation IVec3
}

// IdentityTransform returns a transform that leaves points unchanged.
func IdentityTransform() Transform {
	return Transform{Rotation: Identity3()}
}

// Compose returns the transform equivalent to applying child first and then t.
// Scene graphs compose parent.Compose(child) while walking down.
func (t Transform) Compose(child Transform) Transform {
	return Transform{
		Rotation:    t.Rotation.Mul(child.Rotation),
		Translation: t.Rotation.MulVec(child.Translation).Add(t.Translation),
	}
}

// Apply transforms a point.
func (t Transform) Apply(p IVec3) IVec3 {
	return t.Rotation.MulVec(p).Add(t.Translation)
}
