package ripple

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/ripple/gleval"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Filter selects how a [Texture] reconstructs colors between texel centers.
type Filter uint8

const (
	// FilterBilinear interpolates the four nearest texels, like GL_LINEAR.
	FilterBilinear Filter = iota
	// FilterNearest picks the texel containing the coordinate, like GL_NEAREST.
	FilterNearest
)

func (f Filter) String() string {
	switch f {
	case FilterBilinear:
		return "bilinear"
	case FilterNearest:
		return "nearest"
	}
	return fmt.Sprintf("Filter(%d)", uint8(f))
}

// ParseFilter parses a filter name as returned by [Filter.String]. "linear" is accepted as bilinear.
func ParseFilter(s string) (Filter, error) {
	switch s {
	case "bilinear", "linear", "":
		return FilterBilinear, nil
	case "nearest":
		return FilterNearest, nil
	}
	return 0, fmt.Errorf("unknown texture filter %q", s)
}

// Texture is an immutable 2D raster addressed by surface coordinates in [0,1]x[0,1].
// Coordinate (0,0) is the bottom-left corner of the image and (1,1) the top-right.
// Lookups outside the unit square clamp to the edge texels.
type Texture struct {
	img    *image.NRGBA
	filter Filter
}

// NewTexture copies img into a new texture. A nil or empty img returns [ErrNoImage].
func NewTexture(img image.Image, filter Filter) (*Texture, error) {
	if img == nil {
		return nil, ErrNoImage
	}
	if filter > FilterNearest {
		return nil, errors.New("invalid texture filter")
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image bounds %v", ErrNoImage, b)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return &Texture{img: dst, filter: filter}, nil
}

// DecodeTexture decodes an image from r and returns it as a texture.
// PNG, JPEG, GIF, BMP, TIFF and WebP are supported.
func DecodeTexture(r io.Reader, filter Filter) (*Texture, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding texture: %w", err)
	}
	tex, err := NewTexture(img, filter)
	if err != nil {
		return nil, fmt.Errorf("%s texture: %w", format, err)
	}
	return tex, nil
}

// Resized returns a copy of the texture scaled to w by h texels.
func (t *Texture) Resized(w, h int) (*Texture, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid texture size %dx%d", w, h)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	var scaler draw.Scaler = draw.CatmullRom
	if t.filter == FilterNearest {
		scaler = draw.NearestNeighbor
	}
	scaler.Scale(dst, dst.Bounds(), t.img, t.img.Bounds(), draw.Src, nil)
	return &Texture{img: dst, filter: t.filter}, nil
}

// Image returns the texture's backing image. It must not be modified.
func (t *Texture) Image() *image.NRGBA { return t.img }

// Filter returns the texture's filter.
func (t *Texture) Filter() Filter { return t.filter }

// Size returns the texture dimensions in texels.
func (t *Texture) Size() (w, h int) {
	sz := t.img.Rect.Size()
	return sz.X, sz.Y
}

// At returns the texture color at surface coordinate uv.
func (t *Texture) At(uv ms2.Vec) gleval.RGBA {
	w, h := t.Size()
	// Texel space with row 0 at the top of the image.
	// Clamp before converting to int: out of range float conversions are undefined.
	x := clampf(uv.X*float32(w), -1, float32(w))
	y := clampf((1-uv.Y)*float32(h), -1, float32(h))
	if t.filter == FilterNearest {
		return t.texel(clampi(int(math32.Floor(x)), w), clampi(int(math32.Floor(y)), h))
	}
	x -= 0.5
	y -= 0.5
	x0 := math32.Floor(x)
	y0 := math32.Floor(y)
	tx := x - x0
	ty := y - y0
	i0, j0 := int(x0), int(y0)
	c00 := t.texel(clampi(i0, w), clampi(j0, h))
	c10 := t.texel(clampi(i0+1, w), clampi(j0, h))
	c01 := t.texel(clampi(i0, w), clampi(j0+1, h))
	c11 := t.texel(clampi(i0+1, w), clampi(j0+1, h))
	return c00.Lerp(c10, tx).Lerp(c01.Lerp(c11, tx), ty)
}

func (t *Texture) texel(i, j int) gleval.RGBA {
	off := t.img.PixOffset(i, j)
	px := t.img.Pix[off : off+4 : off+4]
	const inv = 1. / 255
	return gleval.RGBA{
		R: float32(px[0]) * inv,
		G: float32(px[1]) * inv,
		B: float32(px[2]) * inv,
		A: float32(px[3]) * inv,
	}
}

// clampf clamps v to [lo, hi]. NaN maps to lo.
func clampf(v, lo, hi float32) float32 {
	if !(v > lo) {
		return lo
	} else if v > hi {
		return hi
	}
	return v
}

// clampi clamps i to [0, n-1].
func clampi(i, n int) int {
	if i < 0 {
		return 0
	} else if i >= n {
		return n - 1
	}
	return i
}
