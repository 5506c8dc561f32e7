package ripple

import (
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/ripple/gleval"
)

func (e *Effect) Evaluate(uv []ms2.Vec, dst []gleval.RGBA, userData any) error {
	if err := gleval.CheckBuffers(uv, dst); err != nil {
		return err
	}
	if e.src == nil {
		return ErrNoImage
	}
	src, err := gleval.AssertFragment(e.src)
	if err != nil {
		return err
	}
	vp, err := gleval.GetVecPool(userData)
	if err != nil {
		return err
	}
	displaced := vp.V2.Acquire(len(uv))
	defer vp.V2.Release(displaced)
	p := e.Params // One snapshot for the whole batch.
	for i, c := range uv {
		displaced[i] = SampleCoord(c, p)
	}
	return src.Evaluate(displaced, dst, userData)
}
