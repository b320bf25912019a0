package mmc

import "math"

// FresnelOutcome is the result of testing a photon against an
// index-mismatched interface: the resulting direction and whether it was
// a reflection (Dir stays inside the current element) or a transmission
// (Dir crosses into the neighbor). Deciding what to do with a
// transmission that happens to cross into void is the caller's concern,
// not this function's.
type FresnelOutcome struct {
	Dir       Vec3
	Reflected bool
}

// fresnelR computes the unpolarized Fresnel reflectance given cosθi (on
// the incident side) and cosθt (on the transmitted side), for refractive
// indices n1 (incident medium) and n2 (far medium).
func fresnelR(n1, n2, cosThetaI, cosThetaT float64) float64 {
	rs := (n1*cosThetaI - n2*cosThetaT) / (n1*cosThetaI + n2*cosThetaT)
	rp := (n1*cosThetaT - n2*cosThetaI) / (n1*cosThetaT + n2*cosThetaI)
	return (rs*rs + rp*rp) / 2
}

// Reflect handles the Fresnel split at a face with n1 != n2: total
// internal reflection when k>=1, else a stochastic reflect/transmit test
// against the unpolarized reflectance R = (Rs^2+Rp^2)/2.
func Reflect(v Vec3, outwardNormal Vec3, n1, n2 float64, rng *RNG) FresnelOutcome {
	// Orient the working normal against the incident direction so the
	// textbook vector forms for reflection/refraction apply directly.
	nf := outwardNormal
	if v.Dot(nf) > 0 {
		nf = nf.Mul(-1)
	}
	cosThetaI := -v.Dot(nf)
	if cosThetaI < 0 {
		cosThetaI = 0
	}
	if cosThetaI > 1 {
		cosThetaI = 1
	}

	ratio := n1 / n2
	k := ratio * ratio * (1 - cosThetaI*cosThetaI)
	if k >= 1 {
		return FresnelOutcome{Dir: reflectAbout(v, nf), Reflected: true}
	}

	cosThetaT := math.Sqrt(1 - k)
	R := fresnelR(n1, n2, cosThetaI, cosThetaT)
	u := rng.NextReflectTest()
	if u <= R {
		return FresnelOutcome{Dir: reflectAbout(v, nf), Reflected: true}
	}
	t := v.Mul(ratio).Add(nf.Mul(ratio*cosThetaI - cosThetaT))
	return FresnelOutcome{Dir: t.Norm(), Reflected: false}
}

func reflectAbout(v, n Vec3) Vec3 {
	return v.Sub(n.Mul(2 * v.Dot(n))).Norm()
}

// SpecularLoss computes the launch-time Fresnel reflectance for a photon
// entering the mesh directly from outside. The caller is responsible for
// applying w <- w*(1-R) to the photon's weight; this function only
// returns R.
func SpecularLoss(v Vec3, outwardNormal Vec3, nOut, nIn float64) float64 {
	nf := outwardNormal
	if v.Dot(nf) > 0 {
		nf = nf.Mul(-1)
	}
	cosThetaI := clamp(-v.Dot(nf), 0, 1)
	ratio := nOut / nIn
	k := ratio * ratio * (1 - cosThetaI*cosThetaI)
	if k >= 1 {
		return 1
	}
	cosThetaT := math.Sqrt(1 - k)
	return fresnelR(nOut, nIn, cosThetaI, cosThetaT)
}
