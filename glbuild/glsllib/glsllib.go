package glsllib

import (
	_ "embed"

	"github.com/soypat/ripple/glbuild"
)

//go:embed ripple.glsl
var rippleSrc []byte

// RippleDisplace is the radial ripple coordinate displacement, clamped to the unit square:
//
//	vec2 rippleDisplace(vec2 uv, float t, float freq, float amp, float speed)
func RippleDisplace() glbuild.ShaderObject {
	obj, _ := glbuild.MakeShaderFunction(rippleSrc)
	return obj
}
