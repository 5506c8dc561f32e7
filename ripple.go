// Package ripple implements a time-driven radial ripple distortion of images.
//
// The effect displaces the texture coordinate of every surface point along the
// direction away from the center of the unit square by the average of two
// sine waves of the distance to the center. It can be evaluated on the CPU
// through the [gleval.Fragment] interface or turned into GLSL with the glbuild package.
package ripple

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms1"
)

// Default effect parameters.
const (
	DefaultFrequency = 10.0
	DefaultAmplitude = 0.05
	DefaultSpeed     = 2.0
)

// Control ranges of the tunable parameters. The effect accepts values out of
// these ranges, they bound what interactive controls let users pick.
var (
	FrequencyRange = [2]float32{-10, 20}
	AmplitudeRange = [2]float32{-0.9, 0.1}
	SpeedRange     = [2]float32{0, 20}
)

// ErrNoImage is returned during setup when an effect has no source to sample from.
var ErrNoImage = errors.New("ripple: no image bound")

// ErrMultipleTextures is returned when a fragment tree samples more than one
// distinct texture. Every [Sampler] binds the same [UniformTexture] uniform.
var ErrMultipleTextures = errors.New("ripple: fragment tree samples more than one texture")

// Params are the effect parameters read at sample time.
// Time is supplied by a [Driver], the rest are tuned externally between frames.
type Params struct {
	// Time is the elapsed time in seconds.
	Time float32
	// Frequency is the spatial frequency of the ripple in radians per unit distance.
	Frequency float32
	// Amplitude scales the displacement. Negative values invert the ripple direction.
	Amplitude float32
	// Speed scales the contribution of Time to the ripple phase.
	Speed float32
}

// DefaultParams returns the default parameters at time zero.
func DefaultParams() Params {
	return Params{
		Frequency: DefaultFrequency,
		Amplitude: DefaultAmplitude,
		Speed:     DefaultSpeed,
	}
}

// Validate returns an error for NaN or infinite parameters.
// Zero valued parameters are valid and produce a degenerate (identity) effect.
func (p Params) Validate() error {
	var errs []error
	check := func(name string, v float32) {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("bad %s: %v", name, v))
		}
	}
	check("time", p.Time)
	check("frequency", p.Frequency)
	check("amplitude", p.Amplitude)
	check("speed", p.Speed)
	if p.Time < 0 {
		errs = append(errs, fmt.Errorf("negative time: %v", p.Time))
	}
	return errors.Join(errs...)
}

// Clamped returns p with frequency, amplitude and speed clamped to their control ranges.
func (p Params) Clamped() Params {
	p.Frequency = ms1.Clamp(p.Frequency, FrequencyRange[0], FrequencyRange[1])
	p.Amplitude = ms1.Clamp(p.Amplitude, AmplitudeRange[0], AmplitudeRange[1])
	p.Speed = ms1.Clamp(p.Speed, SpeedRange[0], SpeedRange[1])
	return p
}

func (p Params) String() string {
	return fmt.Sprintf("t=%.2fs freq=%.2f amp=%.3f speed=%.2f", p.Time, p.Frequency, p.Amplitude, p.Speed)
}

// Names of the uniforms in generated GLSL.
const (
	UniformTime      = "uTime"
	UniformFrequency = "uFrequency"
	UniformAmplitude = "uAmplitude"
	UniformSpeed     = "uSpeed"
	UniformTexture   = "uTexture"
)

// ForEachUniform calls fn with the GLSL uniform name and value of each parameter.
// GPU hosts call it once per frame to upload the parameter snapshot.
func (p Params) ForEachUniform(fn func(name string, v float32)) {
	fn(UniformTime, p.Time)
	fn(UniformFrequency, p.Frequency)
	fn(UniformAmplitude, p.Amplitude)
	fn(UniformSpeed, p.Speed)
}
