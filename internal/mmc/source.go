package mmc

import "math"

// SourceType enumerates the launch models. Like RayTracerMethod, this is
// a closed tagged union switched at launch rather than dispatched
// through an interface.
type SourceType uint8

const (
	SourcePencil SourceType = iota
	SourceIsotropic
	SourceCone
	SourceGaussian
	SourcePlanar
	SourcePattern
	SourceFourier
	SourceFourierX
	SourceFourierX2D
	SourceArcsine
	SourceDisk
	SourceZGaussian
	SourceLine
	SourceSlit
)

// Pattern is the optional Xs x Ys intensity image used by SourcePattern.
// Decoding an actual image file format is an external loader's job; this
// is just the decoded intensity buffer.
type Pattern struct {
	Xs, Ys int
	Data   []float64 // row-major, len == Xs*Ys, values in [0,1]
}

// Source is the source descriptor: a type tag plus the two 4-vector
// parameter slots the real MMC/MCX wire format carries
// (grounded on original_source/mmc/trunk/src/mcx_utils.c, which reads
// exactly srcparam1{x,y,z,w} and srcparam2{x,y,z,w} and overloads the .w
// components per source type — e.g. stPattern reuses param1.w/param2.w
// as the pattern's Xs/Ys). The planar-footprint sources here follow the
// same overloading: Param1.{X,Y,Z} and Param2.{X,Y,Z} are the footprint
// edge vectors, and the otherwise-unused .W components carry per-type
// extras (pattern dimensions, Fourier frequencies kx/ky).
type Source struct {
	Type    SourceType
	Pos     Point3
	Dir     Vec3 // unit
	Param1  [4]float64
	Param2  [4]float64
	Focus   float64 // 0 = no focus steering
	Pattern *Pattern

	// Phase/Amplitude are the fourier/fourierX/fourierX2D family's phi
	// and A; they don't fit in the srcparam1/srcparam2 overloading since
	// .w on both vectors is already claimed by kx/ky, so they get their
	// own fields instead of a third overloaded slot. Amplitude is
	// expected to be 1 when the source isn't a fourier variant.
	Phase     float64
	Amplitude float64
}

// edge1/edge2 returns the planar footprint edge vectors for the planar-
// family sources (planar, pattern, fourier*).
func (s Source) edge1() Vec3 { return Vec3{s.Param1[0], s.Param1[1], s.Param1[2]} }
func (s Source) edge2() Vec3 { return Vec3{s.Param2[0], s.Param2[1], s.Param2[2]} }

// Launch samples (position, direction, weight) for one photon from the
// source descriptor, steers toward/away from a focal point if Focus != 0,
// and returns the sample.
func Launch(s Source, rng *RNG) (p Point3, v Vec3, w float64) {
	switch s.Type {
	case SourceIsotropic:
		p, v, w = s.Pos, sampleUniformSphere(rng), 1
	case SourceCone:
		halfAngle := s.Param1[0]
		p, v, w = s.Pos, sampleCone(s.Dir, halfAngle, rng), 1
	case SourceGaussian:
		p, v, w = s.sampleGaussian(rng), s.Dir, 1
	case SourcePlanar:
		p, v, w = s.samplePlanarFootprint(rng), s.Dir, 1
	case SourcePattern:
		p, v, w = s.samplePattern(rng), s.Dir, 1
	case SourceFourier:
		p, v, w = s.sampleFourier(rng, true, false)
	case SourceFourierX:
		p, v, w = s.sampleFourier(rng, true, true)
	case SourceFourierX2D:
		p, v, w = s.sampleFourier(rng, false, true)
	case SourceArcsine:
		p, v, w = s.Pos, sampleArcsine(rng), 1
	case SourceDisk:
		p, v, w = s.sampleDisk(rng), s.Dir, 1
	case SourceZGaussian:
		p, v, w = s.Pos, sampleZGaussian(s.Dir, s.Param1[0], rng), 1
	case SourceLine:
		p, v, w = s.sampleLine(rng, true)
	case SourceSlit:
		p, v, w = s.sampleLine(rng, false)
	default: // SourcePencil
		p, v, w = s.Pos, s.Dir, 1
	}
	if s.Focus != 0 {
		v = s.steerToFocus(p, v)
	}
	return p, v.Norm(), w
}

// steerToFocus bends v so the ray passes through (or diverges from) the
// focal point srcpos + focus*srcdir.
func (s Source) steerToFocus(p Point3, v Vec3) Vec3 {
	focal := s.Pos.Add(s.Dir.Mul(s.Focus))
	toFocal := focal.Sub(p)
	if s.Focus < 0 {
		toFocal = toFocal.Mul(-1)
	}
	return toFocal.Norm()
}

func (s Source) samplePlanarFootprint(rng *RNG) Point3 {
	u := rng.NextUniform()
	v := rng.NextUniform()
	return s.Pos.Add(s.edge1().Mul(u)).Add(s.edge2().Mul(v))
}

func (s Source) samplePattern(rng *RNG) Point3 {
	xs, ys := int(s.Param1[3]), int(s.Param2[3])
	if s.Pattern == nil || xs <= 0 || ys <= 0 {
		return s.samplePlanarFootprint(rng)
	}
	maxVal := 0.0
	for _, d := range s.Pattern.Data {
		if d > maxVal {
			maxVal = d
		}
	}
	if maxVal <= 0 {
		return s.samplePlanarFootprint(rng)
	}
	for {
		u := rng.NextUniform()
		v := rng.NextUniform()
		ix := int(u * float64(xs))
		iy := int(v * float64(ys))
		if ix >= xs {
			ix = xs - 1
		}
		if iy >= ys {
			iy = ys - 1
		}
		intensity := s.Pattern.Data[iy*xs+ix]
		if rng.NextUniform()*maxVal <= intensity {
			return s.Pos.Add(s.edge1().Mul(u)).Add(s.edge2().Mul(v))
		}
	}
}

// sampleFourier implements the fourier/fourierX/fourierX2D family: a
// planar footprint weighted by (cos(k.(u,v)+phi)*A+1)/2. planar1D
// restricts the modulation to the u axis only (fourier, fourierX); with
// planar1D false it modulates along both u and v (fourierX2D).
// outOfPlane is accepted but not used. kx/ky are packed
// into the otherwise-unused .W slots of Param1/Param2 per the
// overloading convention documented on the Source type; phi/A live in
// their own Phase/Amplitude fields since both .W slots are already
// spoken for.
func (s Source) sampleFourier(rng *RNG, planar1D, outOfPlane bool) (Point3, Vec3, float64) {
	_ = outOfPlane // reserved: fourierX's out-of-plane footprint is not modeled; treated as in-plane like fourier.
	u := rng.NextUniform()
	v := rng.NextUniform()
	kx := s.Param1[3]
	ky := s.Param2[3]
	if planar1D {
		ky = 0
	}
	amplitude := s.Amplitude
	if amplitude == 0 {
		amplitude = 1
	}
	w := (math.Cos(kx*u+ky*v+s.Phase)*amplitude + 1) / 2
	p := s.Pos.Add(s.edge1().Mul(u)).Add(s.edge2().Mul(v))
	return p, s.Dir, w
}

func (s Source) sampleGaussian(rng *RNG) Point3 {
	waist := s.Param1[0]
	rayleighCorrection := s.Param1[1]
	if rayleighCorrection < 1e-5 {
		rayleighCorrection = 0 // Open Question #2: negative/small treated as "no correction"
	}
	effectiveWaist := waist * (1 + rayleighCorrection)
	u, v := rng.NextUniform(), rng.NextUniform()
	r := effectiveWaist * math.Sqrt(-2*math.Log(u+epsUniform))
	theta := 2 * math.Pi * v
	ortho1, ortho2 := orthonormalBasis(s.Dir)
	offset := ortho1.Mul(r * math.Cos(theta)).Add(ortho2.Mul(r * math.Sin(theta)))
	return s.Pos.Add(offset)
}

func (s Source) sampleDisk(rng *RNG) Point3 {
	radius := s.Param1[0]
	u, v := rng.NextUniform(), rng.NextUniform()
	r := radius * math.Sqrt(u)
	theta := 2 * math.Pi * v
	ortho1, ortho2 := orthonormalBasis(s.Dir)
	offset := ortho1.Mul(r * math.Cos(theta)).Add(ortho2.Mul(r * math.Sin(theta)))
	return s.Pos.Add(offset)
}

// sampleLine places the photon on the segment srcpos + t*param1, t in
// [0,1]; slit keeps the fixed srcdir, line randomizes an orthogonal
// direction.
func (s Source) sampleLine(rng *RNG, randomizeDir bool) (Point3, Vec3, float64) {
	t := rng.NextUniform()
	p := s.Pos.Add(s.edge1().Mul(t))
	if !randomizeDir {
		return p, s.Dir, 1
	}
	ortho1, ortho2 := orthonormalBasis(s.Dir)
	phi := rng.NextAzimuth()
	return p, ortho1.Mul(math.Cos(phi)).Add(ortho2.Mul(math.Sin(phi))), 1
}

func sampleUniformSphere(rng *RNG) Vec3 {
	cosTheta := 2*rng.NextUniform() - 1
	sinTheta := math.Sqrt(math.Max(0, 1-cosTheta*cosTheta))
	phi := rng.NextAzimuth()
	return Vec3{sinTheta * math.Cos(phi), sinTheta * math.Sin(phi), cosTheta}
}

func sampleCone(axis Vec3, halfAngle float64, rng *RNG) Vec3 {
	cosMax := math.Cos(halfAngle)
	cosTheta := cosMax + rng.NextUniform()*(1-cosMax)
	sinTheta := math.Sqrt(math.Max(0, 1-cosTheta*cosTheta))
	phi := rng.NextAzimuth()
	ortho1, ortho2 := orthonormalBasis(axis)
	local := ortho1.Mul(sinTheta * math.Cos(phi)).Add(ortho2.Mul(sinTheta * math.Sin(phi))).Add(axis.Mul(cosTheta))
	return local.Norm()
}

// sampleArcsine draws a zenith angle uniformly in [0, pi] (so cos(zenith)
// follows the arcsine distribution) and a uniform azimuth.
func sampleArcsine(rng *RNG) Vec3 {
	u := rng.NextUniform()
	theta := math.Pi * u
	cosTheta := math.Cos(theta)
	sinTheta := math.Sin(theta)
	phi := rng.NextAzimuth()
	return Vec3{sinTheta * math.Cos(phi), sinTheta * math.Sin(phi), cosTheta}
}

func sampleZGaussian(axis Vec3, sigma float64, rng *RNG) Vec3 {
	if sigma <= 0 {
		return axis
	}
	u, v := rng.NextUniform(), rng.NextUniform()
	r := sigma * math.Sqrt(-2*math.Log(u+epsUniform))
	phi := 2 * math.Pi * v
	sinTheta := math.Sin(r)
	cosTheta := math.Cos(r)
	ortho1, ortho2 := orthonormalBasis(axis)
	local := ortho1.Mul(sinTheta * math.Cos(phi)).Add(ortho2.Mul(sinTheta * math.Sin(phi))).Add(axis.Mul(cosTheta))
	return local.Norm()
}

// orthonormalBasis returns two unit vectors orthogonal to axis and to
// each other, used by every source that samples a direction/offset in
// the plane transverse to a primary axis.
func orthonormalBasis(axis Vec3) (Vec3, Vec3) {
	a := axis.Norm()
	h := Vec3{1, 0, 0}
	if math.Abs(a.X) > 0.9 {
		h = Vec3{0, 1, 0}
	}
	u := h.Sub(a.Mul(h.Dot(a))).Norm()
	v := a.Cross(u)
	return u, v
}

// LocateElement finds the first tet among candidates that contains p
// within tolerance, returning its barycentric coordinates. It first
// narrows candidates to those whose bounding box contains p via the
// mesh's spatial index, so a void-entry march over a large mesh tests
// barycentric coordinates against a handful of nearby tets instead of
// every element in candidates.
func LocateElement(mesh *Mesh, candidates []int32, p Point3, tol float64) (e int32, b [4]float64, ok bool) {
	restricted := len(candidates) < len(mesh.Elems)-1
	var allow map[int32]bool
	if restricted {
		allow = make(map[int32]bool, len(candidates))
		for _, c := range candidates {
			allow[c] = true
		}
	}

	root := getOrBuildLocateIndex(mesh)
	hits := queryLocateIndex(root, p, nil)
	for _, c := range hits {
		if restricted && !allow[c] {
			continue
		}
		bc := mesh.Barycentric(c, p)
		allNonNeg := true
		for _, bi := range bc {
			if bi < -tol {
				allNonNeg = false
				break
			}
		}
		if allNonNeg {
			return c, bc, true
		}
	}
	return 0, [4]float64{}, false
}
