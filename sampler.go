package ripple

import (
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/ripple/glbuild"
	"github.com/soypat/ripple/gleval"
)

// Sampler is a leaf fragment that looks up colors in a [Texture].
// In GLSL it is backed by a sampler2D uniform named [UniformTexture].
type Sampler struct {
	tex *Texture
}

// NewSampler returns a Sampler over tex. A nil tex returns [ErrNoImage].
func NewSampler(tex *Texture) (*Sampler, error) {
	if tex == nil {
		return nil, ErrNoImage
	}
	return &Sampler{tex: tex}, nil
}

// Texture returns the sampled texture.
func (s *Sampler) Texture() *Texture { return s.tex }

// SetTexture replaces the sampled texture. A nil tex returns [ErrNoImage].
func (s *Sampler) SetTexture(tex *Texture) error {
	if tex == nil {
		return ErrNoImage
	}
	s.tex = tex
	return nil
}

func (s *Sampler) ForEachChild(userData any, fn func(userData any, s *glbuild.Fragment) error) error {
	return nil
}

func (s *Sampler) AppendShaderName(b []byte) []byte {
	return append(b, "sample_"+UniformTexture...)
}

func (s *Sampler) AppendShaderBody(b []byte) []byte {
	return append(b, "return texture("+UniformTexture+",uv);"...)
}

func (s *Sampler) AppendShaderObjects(objs []glbuild.ShaderObject) []glbuild.ShaderObject {
	obj, _ := glbuild.MakeSampler2D(UniformTexture, "iChannel0")
	return append(objs, obj)
}

func (s *Sampler) Evaluate(uv []ms2.Vec, dst []gleval.RGBA, userData any) error {
	if err := gleval.CheckBuffers(uv, dst); err != nil {
		return err
	}
	for i, p := range uv {
		dst[i] = s.tex.At(p)
	}
	return nil
}
