package mmc

import "math"

// Scatter samples a new direction by deflecting v through a
// Henyey-Greenstein-distributed angle with anisotropy g, and reports
// 1-cos(theta) for momentum-transfer bookkeeping.
func Scatter(v Vec3, g float64, rng *RNG) (newDir Vec3, oneMinusCosTheta float64) {
	cosTheta := rng.NextCosThetaHG(g)
	sinTheta := math.Sqrt(math.Max(0, 1-cosTheta*cosTheta))
	phi := rng.NextAzimuth()
	cosPhi := math.Cos(phi)
	sinPhi := math.Sin(phi)

	const axisEps = 1 - 1e-12
	var newV Vec3
	if v.Z > axisEps || v.Z < -axisEps {
		// Singular at |v_z| = 1: the in-plane rotation frame degenerates,
		// so the new direction is built directly from the polar angles
		// relative to the z axis, flipped if v was pointing -z.
		sign := 1.0
		if v.Z < 0 {
			sign = -1.0
		}
		newV = Vec3{sinTheta * cosPhi, sinTheta * sinPhi, sign * cosTheta}
	} else {
		denom := math.Sqrt(1 - v.Z*v.Z)
		newV = Vec3{
			X: sinTheta*(v.X*v.Z*cosPhi-v.Y*sinPhi)/denom + v.X*cosTheta,
			Y: sinTheta*(v.Y*v.Z*cosPhi+v.X*sinPhi)/denom + v.Y*cosTheta,
			Z: -sinTheta*cosPhi*denom + v.Z*cosTheta,
		}
	}
	return newV.Norm(), 1 - cosTheta
}
