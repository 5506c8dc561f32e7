package glrender

import (
	"errors"
	"image"
	"image/color"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/ripple/gleval"
)

type setImage = interface {
	image.Image
	Set(x, y int, c color.Color)
}

// ImageRenderer renders fragments to images, one pixel center sample per pixel.
type ImageRenderer struct {
	uv  []ms2.Vec
	col []gleval.RGBA
}

// NewImageRenderer instances a new [ImageRenderer] that evaluates fragments in batches of evalBufferSize pixels.
func NewImageRenderer(evalBufferSize int) (*ImageRenderer, error) {
	if evalBufferSize <= 64 {
		return nil, errors.New("too small evaluation buffer size")
	}
	ir := &ImageRenderer{
		uv:  make([]ms2.Vec, evalBufferSize),
		col: make([]gleval.RGBA, evalBufferSize),
	}
	return ir, nil
}

// Render maps the fragment over the unit square onto img. It uses userData as an argument to all [gleval.Fragment.Evaluate] calls.
func (ir *ImageRenderer) Render(frag gleval.Fragment, img setImage, userData any) error {
	if frag == nil {
		return errors.New("nil fragment")
	}
	imgBB := img.Bounds()
	w, h := imgBB.Dx(), imgBB.Dy()
	if w <= 0 || h <= 0 {
		return errors.New("empty image")
	}
	nrgba, _ := img.(*image.NRGBA)
	total := w * h
	for start := 0; start < total; start += len(ir.uv) {
		n := min(len(ir.uv), total-start)
		for k := 0; k < n; k++ {
			idx := start + k
			ir.uv[k] = PixelUV(idx%w, idx/w, w, h)
		}
		err := frag.Evaluate(ir.uv[:n], ir.col[:n], userData)
		if err != nil {
			return err
		}
		for k := 0; k < n; k++ {
			idx := start + k
			x, y := idx%w+imgBB.Min.X, idx/w+imgBB.Min.Y
			c := ir.col[k].NRGBA()
			if nrgba != nil {
				nrgba.SetNRGBA(x, y, c)
			} else {
				img.Set(x, y, c)
			}
		}
	}
	return nil
}
