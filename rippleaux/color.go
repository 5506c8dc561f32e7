package rippleaux

import (
	"errors"
	"image"
	"image/color"

	math "github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/math/ms1"
)

// HSV interpolation below follows Esme Lamb's (@dedelala) color manipulation
// work presented at Gophercon AU 2024.
// https://github.com/dedelala/disco/tree/main/color

// GradientImage returns a w by h demo texture. Hue runs from c0 on the left
// edge to c1 on the right edge interpolated in HSV space, and rows fade to
// white towards the top so both texture axes carry visible structure.
func GradientImage(w, h int, c0, c1 color.Color) (*image.NRGBA, error) {
	if w < 2 || h < 2 {
		return nil, errors.New("gradient image must be at least 2x2")
	}
	h0, s0, v0 := colorToHSV(c0)
	h1, s1, v1 := colorToHSV(c1)
	white := ms3.Vec{X: 1, Y: 1, Z: 1}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w; i++ {
		t := float32(i) / float32(w-1)
		r, g, b := hsvToRGB(wrapHue(interpHSV(h0, s0, v0, h1, s1, v1, t)))
		col := ms3.Vec{X: r, Y: g, Z: b}
		for j := 0; j < h; j++ {
			fade := 0.6 * ms1.SmoothStep(0.5, 1, 1-float32(j)/float32(h-1))
			c := ms3.InterpElem(col, white, ms3.Vec{X: fade, Y: fade, Z: fade})
			img.SetNRGBA(i, j, vecToNRGBA(c))
		}
	}
	return img, nil
}

// CheckerImage returns a w by h demo texture of cells by cells squares alternating
// between c0 and c1. The bottom-left cell is c0.
func CheckerImage(w, h, cells int, c0, c1 color.Color) (*image.NRGBA, error) {
	if w <= 0 || h <= 0 || cells <= 0 {
		return nil, errors.New("invalid checker image dimensions")
	}
	n0 := color.NRGBAModel.Convert(c0).(color.NRGBA)
	n1 := color.NRGBAModel.Convert(c1).(color.NRGBA)
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for j := 0; j < h; j++ {
		cy := (h - 1 - j) * cells / h
		for i := 0; i < w; i++ {
			cx := i * cells / w
			c := n0
			if (cx+cy)%2 == 1 {
				c = n1
			}
			img.SetNRGBA(i, j, c)
		}
	}
	return img, nil
}

func vecToNRGBA(c ms3.Vec) color.NRGBA {
	c = ms3.ClampElem(c, ms3.Vec{}, ms3.Vec{X: 1, Y: 1, Z: 1})
	return color.NRGBA{
		R: uint8(c.X*math.MaxUint8 + 0.5),
		G: uint8(c.Y*math.MaxUint8 + 0.5),
		B: uint8(c.Z*math.MaxUint8 + 0.5),
		A: math.MaxUint8,
	}
}

// wrapHue brings an interpolated hue back to [0,1).
func wrapHue(h, s, v float32) (float32, float32, float32) {
	if h >= 1 {
		h -= 1
	}
	return h, s, v
}

func interpHSV(h0, s0, v0, h1, s1, v1, t float32) (h, s, v float32) {
	switch {
	case h1-h0 > 0.5:
		h0 += 1.0
	case h1-h0 < -0.5:
		h1 += 1.0
	}
	h = ms1.Interp(h0, h1, t)
	s = ms1.Interp(s0, s1, t)
	v = ms1.Interp(v0, v1, t)
	return h, s, v
}

func colorToHSV(c color.Color) (h, s, v float32) {
	r0, g0, b0, _ := c.RGBA()
	return rgbToHSV(float32(r0>>8)/math.MaxUint8, float32(g0>>8)/math.MaxUint8, float32(b0>>8)/math.MaxUint8)
}

// hsvToRGB converts hue, saturation and brightness values on the range of 0.0
// to 1.0 to RGB floating point values on the range of 0.0 to 1.0
func hsvToRGB(h, s, v float32) (r, g, b float32) {
	var (
		c = s * v
		x = c * (1 - math.Abs(math.Mod(h*6, 2)-1))
		m = v - c
	)

	switch {
	case h >= 0 && h <= 1.0/6:
		r, g, b = c, x, 0
	case h > 1.0/6 && h <= 2.0/6:
		r, g, b = x, c, 0
	case h > 2.0/6 && h <= 3.0/6:
		r, g, b = 0, c, x
	case h > 3.0/6 && h <= 4.0/6:
		r, g, b = 0, x, c
	case h > 4.0/6 && h <= 5.0/6:
		r, g, b = x, 0, c
	case h > 5.0/6 && h <= 1.0:
		r, g, b = c, 0, x
	}

	r, g, b = r+m, g+m, b+m
	return r, g, b
}

// rgbToHSV converts red, green, and blue floating point values on the range
// 0.0 to 1.0 to hue, saturation and brightness values on the range 0.0 to 1.0
func rgbToHSV(r, g, b float32) (h, s, v float32) {
	var (
		xmax = max(r, g, b)
		xmin = min(r, g, b)
		c    = xmax - xmin
	)
	v = xmax
	switch {
	case c == 0:
		h = 0
	case v == r:
		h = (g - b) / (c * 6)
	case v == g:
		h = 1.0/3 + (b-r)/(c*6)
	case v == b:
		h = 2.0/3 + (r-g)/(c*6)
	}
	if h < 0 {
		h += 1
	}
	if xmax > 0 {
		s = c / xmax
	}
	return
}
