package gleval

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/glgl/math/ms1"
)

// Fragment implements a color lookup over the unit square in vectorized
// form suitable for running on GPU.
type Fragment interface {
	// Evaluate samples the fragment at each uv surface coordinate.
	// uv and dst must be of same length. Resulting colors are stored in dst.
	//
	// userData facilitates getting data to the evaluators for use in processing, such as [VecPool].
	Evaluate(uv []ms2.Vec, dst []RGBA, userData any) error
}

// RGBA is a non-premultiplied color with components in [0,1].
// Its memory layout matches a GLSL vec4 in std430.
type RGBA struct {
	R, G, B, A float32
}

// RGBAFromColor converts c to RGBA.
func RGBAFromColor(c color.Color) RGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	const inv = 1. / 255
	return RGBA{R: float32(n.R) * inv, G: float32(n.G) * inv, B: float32(n.B) * inv, A: float32(n.A) * inv}
}

// NRGBA converts the color to 8 bit non-premultiplied color, clamping out of range components.
func (c RGBA) NRGBA() color.NRGBA {
	return color.NRGBA{R: to8(c.R), G: to8(c.G), B: to8(c.B), A: to8(c.A)}
}

// RGBA implements [color.Color].
func (c RGBA) RGBA() (r, g, b, a uint32) {
	return c.NRGBA().RGBA()
}

// Lerp linearly interpolates between c and d by t.
func (c RGBA) Lerp(d RGBA, t float32) RGBA {
	return RGBA{
		R: c.R + (d.R-c.R)*t,
		G: c.G + (d.G-c.G)*t,
		B: c.B + (d.B-c.B)*t,
		A: c.A + (d.A-c.A)*t,
	}
}

// MaxDiff returns the largest absolute component difference between c and d.
func (c RGBA) MaxDiff(d RGBA) float32 {
	return math32.Max(
		math32.Max(math32.Abs(c.R-d.R), math32.Abs(c.G-d.G)),
		math32.Max(math32.Abs(c.B-d.B), math32.Abs(c.A-d.A)),
	)
}

func to8(v float32) uint8 {
	if math32.IsNaN(v) {
		return 0
	}
	return uint8(ms1.Clamp(v, 0, 1)*255 + 0.5)
}

var (
	errEmptyBuffers         = errors.New("empty buffers")
	errMismatchBufferLength = errors.New("coordinate and color buffer length mismatch")
)

// CheckBuffers returns an error if the coordinate and color buffers can not be evaluated.
func CheckBuffers(uv []ms2.Vec, dst []RGBA) error {
	if len(uv) != len(dst) {
		return errMismatchBufferLength
	} else if len(uv) == 0 {
		return errEmptyBuffers
	}
	return nil
}

// NewCPUFragment checks if the shader implements CPU evaluation and returns a [Fragment]
// ready for evaluation, taking care of setting up the [VecPool] the fragment needs.
func NewCPUFragment(root any) (*CPUFragment, error) {
	frag, err := AssertFragment(root)
	if err != nil {
		return nil, err
	}
	return &CPUFragment{Frag: frag}, nil
}

// AssertFragment asserts the argument as a Fragment and returns a descriptive error if it fails.
func AssertFragment(s any) (Fragment, error) {
	frag, ok := s.(Fragment)
	if !ok {
		return nil, fmt.Errorf("%T does not implement gleval.Fragment", s)
	}
	return frag, nil
}

// CPUFragment evaluates a fragment tree on the CPU with its own scratch [VecPool].
type CPUFragment struct {
	Frag        Fragment
	VP          VecPool
	evaluations uint64
}

// Evaluate implements [Fragment]. userData is ignored in favor of the CPUFragment's [VecPool].
func (c *CPUFragment) Evaluate(uv []ms2.Vec, dst []RGBA, userData any) error {
	if err := CheckBuffers(uv, dst); err != nil {
		return err
	}
	err := c.Frag.Evaluate(uv, dst, &c.VP)
	if err != nil {
		return err
	}
	err = c.VP.AssertAllReleased()
	if err != nil {
		return err
	}
	c.evaluations += uint64(len(uv))
	return nil
}

// Evaluations returns total evaluations performed succesfully during the fragment's lifetime.
func (c *CPUFragment) Evaluations() uint64 { return c.evaluations }

// VecPool returns the CPUFragment's [VecPool].
func (c *CPUFragment) VecPool() *VecPool { return &c.VP }
