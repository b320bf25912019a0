package mmc

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"golang.org/x/image/draw"
)

// SaveFieldSlicePNG renders one Z slice of a Cartesian-grid accumulator's
// field at the given gate as a grayscale PNG, normalized against the
// slice's own peak and gamma-corrected the way the teacher's
// SavePNGSequence16 normalizes a voxel slice, then resampled to outW x
// outH with golang.org/x/image/draw's bilinear scaler. This is a
// development-time dump of the accumulator's public Field/Gates/Sites
// surface, not the rendering/GUI pipeline a clinical-review tool would
// need; it exists so a grid run's fluence can be eyeballed without a
// separate viewer.
func SaveFieldSlicePNG(field []float64, gates int, grid GridParams, gate, z int, gamma float64, outW, outH int, path string) error {
	if gate < 0 || gate >= gates {
		return fmt.Errorf("mmc: gate %d out of range [0,%d)", gate, gates)
	}
	if z < 0 || z >= grid.Nz {
		return fmt.Errorf("mmc: z slice %d out of range [0,%d)", z, grid.Nz)
	}
	sites := grid.Nx * grid.Ny * grid.Nz
	base := gate * sites

	sliceMax := 0.0
	for iy := 0; iy < grid.Ny; iy++ {
		for ix := 0; ix < grid.Nx; ix++ {
			if v := field[base+grid.index(ix, iy, z)]; v > sliceMax {
				sliceMax = v
			}
		}
	}
	if sliceMax == 0 {
		sliceMax = 1
	}

	src := image.NewGray(image.Rect(0, 0, grid.Nx, grid.Ny))
	for iy := 0; iy < grid.Ny; iy++ {
		row := grid.Ny - 1 - iy // flip so +y is up
		for ix := 0; ix < grid.Nx; ix++ {
			v := field[base+grid.index(ix, iy, z)] / sliceMax
			if gamma > 0 && gamma != 1 {
				v = math.Pow(v, 1/gamma)
			}
			src.SetGray(ix, row, color.Gray{Y: grayLevel(v)})
		}
	}

	if outW <= 0 {
		outW = grid.Nx
	}
	if outH <= 0 {
		outH = grid.Ny
	}
	dst := image.NewGray(image.Rect(0, 0, outW, outH))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(f, dst)
}

func grayLevel(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 255
	}
	return uint8(math.Round(v * 255))
}
