package mmc

import "math"

// SeedLen is the width in bytes of a saved RNG state, used for the
// seed-buffer record layout.
const SeedLen = 16

// RNGState is the raw xorshift128+ state, exactly SeedLen bytes wide so it
// can be saved/replayed byte-for-byte (testable property P6).
type RNGState struct {
	S0, S1 uint64
}

// RNG is a per-photon, lazily-advanced uniform stream in [0,1), backed by
// 64-bit xorshift128+. A photon's stream is fully determined by
// (userSeed, photonIndex); no two photons anywhere in a batch ever share
// a stream regardless of worker count, so each photon's history is the
// same however work is chunked across goroutines. The summed field can
// still differ in its last bits between worker counts, since the adds
// into it land in a different order.
//
// Grounded on original_source/mmc/branch/havel/src/posix_randr.c for the
// *shape* of the exposed draw functions (one uniform primitive, several
// named wrappers around it); the underlying generator itself is swapped
// from POSIX drand48 to xorshift128+.
type RNG struct {
	state RNGState
}

// Seed derives a photon-independent stream from a 32-bit user seed and the
// photon's global index. splitmix64 is used purely to decorrelate the two
// inputs into a full 128-bit state; it is never used as the sampling
// generator itself.
func Seed(userSeed uint32, photonIndex int64) RNG {
	mix := func(x uint64) uint64 {
		x += 0x9E3779B97F4A7C15
		x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
		x = (x ^ (x >> 27)) * 0x94D049BB133111EB
		return x ^ (x >> 31)
	}
	seedMaterial := uint64(userSeed)<<32 ^ uint64(uint64(photonIndex)*0x2545F4914F6CDD1D)
	s0 := mix(seedMaterial)
	s1 := mix(s0 ^ 0xD1B54A32D192ED03)
	if s0 == 0 && s1 == 0 {
		s1 = 1 // xorshift128+ is degenerate at the all-zero state
	}
	return RNG{state: RNGState{S0: s0, S1: s1}}
}

// FromState resumes a stream from a previously saved state, used by replay.
func FromState(s RNGState) RNG { return RNG{state: s} }

// State returns the current raw state for saving to a seed buffer.
func (r *RNG) State() RNGState { return r.state }

func (r *RNG) next() uint64 {
	s1 := r.state.S0
	s0 := r.state.S1
	r.state.S0 = s0
	s1 ^= s1 << 23
	s1 ^= s1 >> 17
	s1 ^= s0
	s1 ^= s0 >> 26
	r.state.S1 = s1
	return s0 + s1
}

const invMaxUint53 = 1.0 / (1 << 53)

// NextUniform draws the next uniform float64 in [0,1).
func (r *RNG) NextUniform() float64 {
	return float64(r.next()>>11) * invMaxUint53
}

// epsUniform keeps -ln(U+eps) finite when U draws exactly 0.
const epsUniform = 1e-12

// NextScatterLength draws the unitless remaining scattering path length
// -ln(U+eps), the free-flight distance between scattering events
// expressed in mean-free-path units.
func (r *RNG) NextScatterLength() float64 {
	return -math.Log(r.NextUniform() + epsUniform)
}

// NextAzimuth draws an azimuthal angle in [0, 2π).
func (r *RNG) NextAzimuth() float64 {
	return r.NextUniform() * 2 * math.Pi
}

// NextCosThetaHG samples cos(θ) from the Henyey-Greenstein phase function
// with anisotropy g.
func (r *RNG) NextCosThetaHG(g float64) float64 {
	u := r.NextUniform()
	const eps = 1e-9
	var cosTheta float64
	if math.Abs(g) > eps {
		q := (1 - g*g) / (1 - g + 2*g*u)
		cosTheta = (1 + g*g - q*q) / (2 * g)
	} else {
		cosTheta = 2*u - 1
	}
	return clamp(cosTheta, -1, 1)
}

// NextReflectTest draws the uniform used to decide reflect-vs-transmit at
// a Fresnel interface.
func (r *RNG) NextReflectTest() float64 { return r.NextUniform() }

// NextRouletteTest draws the uniform used by the Russian-roulette survival
// test.
func (r *RNG) NextRouletteTest() float64 { return r.NextUniform() }
