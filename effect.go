package ripple

import (
	"errors"
	"image"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/ripple/glbuild"
	"github.com/soypat/ripple/glbuild/glsllib"
	"github.com/soypat/ripple/gleval"
)

// center of the unit square, origin of the ripple.
var center = ms2.Vec{X: 0.5, Y: 0.5}

// Wave returns the ripple magnitude at distance d from the center: the
// average of two sine waves whose beat produces the interference pattern.
func Wave(d float32, p Params) float32 {
	phase := p.Time * p.Speed
	ripple1 := math32.Sin(p.Frequency*d - phase)
	ripple2 := math32.Sin(p.Frequency*1.5*d - phase*1.2)
	return 0.5 * (ripple1 + ripple2)
}

// SampleCoord returns the displaced coordinate the effect samples its source at
// for surface coordinate uv. The result is always within [0,1]x[0,1].
// The exact center has no defined direction and is not displaced.
func SampleCoord(uv ms2.Vec, p Params) ms2.Vec {
	dir := ms2.Sub(uv, center)
	d := ms2.Norm(dir)
	if d > 0 {
		unit := ms2.Scale(1/d, dir)
		offset := ms2.Scale(Wave(d, p)*p.Amplitude, unit)
		uv = ms2.Add(uv, offset)
	}
	return ms2.Vec{X: clamp01(uv.X), Y: clamp01(uv.Y)}
}

// clamp01 clamps v to [0,1]. NaN maps to 0.
func clamp01(v float32) float32 {
	if !(v > 0) {
		return 0
	} else if v > 1 {
		return 1
	}
	return v
}

// Effect is the ripple distortion applied over a source fragment, usually a [Sampler].
// Params is a plain value: the host writes a new snapshot between frames and
// every evaluation reads it as is.
type Effect struct {
	Params Params
	src    glbuild.Fragment
}

// NewEffect returns a ripple effect sampling src. A nil src returns [ErrNoImage].
func NewEffect(src glbuild.Fragment, p Params) (*Effect, error) {
	e := &Effect{Params: p}
	err := e.SetSource(src)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// NewImageEffect returns a ripple effect over img sampled with filter.
func NewImageEffect(img image.Image, filter Filter, p Params) (*Effect, error) {
	tex, err := NewTexture(img, filter)
	if err != nil {
		return nil, err
	}
	smp, err := NewSampler(tex)
	if err != nil {
		return nil, err
	}
	return NewEffect(smp, p)
}

// SetSource replaces the fragment the effect samples from.
func (e *Effect) SetSource(src glbuild.Fragment) error {
	if src == nil {
		return ErrNoImage
	}
	if _, err := gleval.AssertFragment(src); err != nil {
		return err
	}
	if _, err := SourceTexture(src); errors.Is(err, ErrMultipleTextures) {
		return err
	}
	e.src = src
	return nil
}

// Source returns the fragment the effect samples from.
func (e *Effect) Source() glbuild.Fragment { return e.src }

// Sample evaluates the effect at a single surface coordinate.
func (e *Effect) Sample(uv ms2.Vec) (gleval.RGBA, error) {
	var vp gleval.VecPool
	pos := [1]ms2.Vec{uv}
	var col [1]gleval.RGBA
	err := e.Evaluate(pos[:], col[:], &vp)
	return col[0], err
}

func (e *Effect) ForEachChild(userData any, fn func(userData any, s *glbuild.Fragment) error) error {
	return fn(userData, &e.src)
}

func (e *Effect) AppendShaderName(b []byte) []byte {
	b = append(b, "ripple_"...)
	b = e.src.AppendShaderName(b)
	return b
}

func (e *Effect) AppendShaderBody(b []byte) []byte {
	b = append(b, "vec2 st=rippleDisplace(uv,"...)
	b = append(b, UniformTime+","+UniformFrequency+","+UniformAmplitude+","+UniformSpeed+");\n"...)
	b = glbuild.AppendSampleDecl(b, "c", "st", e.src)
	b = append(b, "return c;"...)
	return b
}

func (e *Effect) AppendShaderObjects(objs []glbuild.ShaderObject) []glbuild.ShaderObject {
	p := e.Params
	t, _ := glbuild.MakeUniform1f(UniformTime, p.Time, "iTime")
	f, _ := glbuild.MakeUniform1f(UniformFrequency, p.Frequency, "")
	a, _ := glbuild.MakeUniform1f(UniformAmplitude, p.Amplitude, "")
	s, _ := glbuild.MakeUniform1f(UniformSpeed, p.Speed, "")
	return append(objs, t, f, a, s, glsllib.RippleDisplace())
}

// Samplers returns all [Sampler] nodes in the fragment tree in depth first order.
// GPU hosts use it to find the textures to upload.
func Samplers(root glbuild.Fragment) []*Sampler {
	var samplers []*Sampler
	var walk func(f glbuild.Fragment)
	walk = func(f glbuild.Fragment) {
		if s, ok := f.(*Sampler); ok {
			samplers = append(samplers, s)
		}
		f.ForEachChild(nil, func(_ any, child *glbuild.Fragment) error {
			if child != nil && *child != nil {
				walk(*child)
			}
			return nil
		})
	}
	if root != nil {
		walk(root)
	}
	return samplers
}

// SourceTexture returns the texture sampled by every [Sampler] in the tree.
// GPU hosts bind it to [UniformTexture]. It returns [ErrNoImage] if the tree has
// no samplers and [ErrMultipleTextures] if samplers disagree on the texture.
func SourceTexture(root glbuild.Fragment) (*Texture, error) {
	var tex *Texture
	for _, smp := range Samplers(root) {
		if tex != nil && smp.Texture() != tex {
			return nil, ErrMultipleTextures
		}
		tex = smp.Texture()
	}
	if tex == nil {
		return nil, ErrNoImage
	}
	return tex, nil
}
