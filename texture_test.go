package ripple_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/ripple"
	"github.com/soypat/ripple/gleval"
)

// quad returns a 2x2 image: red top-left, green top-right, blue bottom-left, white bottom-right.
func quad() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{G: 255, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{B: 255, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	return img
}

var (
	red   = gleval.RGBA{R: 1, A: 1}
	green = gleval.RGBA{G: 1, A: 1}
	blue  = gleval.RGBA{B: 1, A: 1}
	white = gleval.RGBA{R: 1, G: 1, B: 1, A: 1}
)

func TestTextureOrientation(t *testing.T) {
	for _, filter := range []ripple.Filter{ripple.FilterNearest, ripple.FilterBilinear} {
		tex, err := ripple.NewTexture(quad(), filter)
		if err != nil {
			t.Fatal(err)
		}
		for _, test := range []struct {
			uv   ms2.Vec
			want gleval.RGBA
		}{
			{uv: ms2.Vec{X: 0.25, Y: 0.75}, want: red},
			{uv: ms2.Vec{X: 0.75, Y: 0.75}, want: green},
			{uv: ms2.Vec{X: 0.25, Y: 0.25}, want: blue},
			{uv: ms2.Vec{X: 0.75, Y: 0.25}, want: white},
			// Clamp to edge.
			{uv: ms2.Vec{X: -3, Y: 4}, want: red},
			{uv: ms2.Vec{X: 0, Y: 1}, want: red},
			{uv: ms2.Vec{X: 1, Y: 0}, want: white},
		} {
			got := tex.At(test.uv)
			if got.MaxDiff(test.want) > 1e-6 {
				t.Errorf("%s at %v: got %v, want %v", filter, test.uv, got, test.want)
			}
		}
	}
}

func TestTextureFarCoordinates(t *testing.T) {
	inf := math32.Inf(1)
	nan := math32.NaN()
	for _, filter := range []ripple.Filter{ripple.FilterNearest, ripple.FilterBilinear} {
		tex, err := ripple.NewTexture(quad(), filter)
		if err != nil {
			t.Fatal(err)
		}
		for _, test := range []struct {
			uv   ms2.Vec
			want gleval.RGBA
		}{
			{uv: ms2.Vec{X: 1e20, Y: 0.25}, want: white},
			{uv: ms2.Vec{X: -1e20, Y: 0.25}, want: blue},
			{uv: ms2.Vec{X: 0.75, Y: 1e20}, want: green},
			{uv: ms2.Vec{X: inf, Y: -inf}, want: white},
			{uv: ms2.Vec{X: -inf, Y: inf}, want: red},
			{uv: ms2.Vec{X: nan, Y: nan}, want: red},
		} {
			got := tex.At(test.uv)
			if got.MaxDiff(test.want) > 1e-6 {
				t.Errorf("%s at %v: got %v, want %v", filter, test.uv, got, test.want)
			}
		}
	}
}

func TestTextureBilinear(t *testing.T) {
	tex, err := ripple.NewTexture(quad(), ripple.FilterBilinear)
	if err != nil {
		t.Fatal(err)
	}
	// Midway between the top texels.
	got := tex.At(ms2.Vec{X: 0.5, Y: 0.75})
	want := red.Lerp(green, 0.5)
	if got.MaxDiff(want) > 1e-6 {
		t.Errorf("got %v, want %v", got, want)
	}
	// Center is the average of all four.
	got = tex.At(ms2.Vec{X: 0.5, Y: 0.5})
	want = gleval.RGBA{R: 0.5, G: 0.5, B: 0.5, A: 1}
	if got.MaxDiff(want) > 1e-6 {
		t.Errorf("center: got %v, want %v", got, want)
	}
	nearest, _ := ripple.NewTexture(quad(), ripple.FilterNearest)
	if got := nearest.At(ms2.Vec{X: 0.49, Y: 0.51}); got != red {
		t.Errorf("nearest: got %v, want red", got)
	}
}

func TestTextureSubImage(t *testing.T) {
	big := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	sub := big.SubImage(image.Rect(2, 2, 4, 4)).(*image.NRGBA)
	q := quad()
	for j := 0; j < 2; j++ {
		for i := 0; i < 2; i++ {
			sub.SetNRGBA(2+i, 2+j, q.NRGBAAt(i, j))
		}
	}
	tex, err := ripple.NewTexture(sub, ripple.FilterNearest)
	if err != nil {
		t.Fatal(err)
	}
	if w, h := tex.Size(); w != 2 || h != 2 {
		t.Fatalf("size %dx%d", w, h)
	}
	if got := tex.At(ms2.Vec{X: 0.25, Y: 0.75}); got != red {
		t.Errorf("got %v, want red", got)
	}
}

func TestDecodeTexture(t *testing.T) {
	var buf bytes.Buffer
	err := png.Encode(&buf, quad())
	if err != nil {
		t.Fatal(err)
	}
	tex, err := ripple.DecodeTexture(&buf, ripple.FilterNearest)
	if err != nil {
		t.Fatal(err)
	}
	if got := tex.At(ms2.Vec{X: 0.75, Y: 0.25}); got != white {
		t.Errorf("got %v, want white", got)
	}
	_, err = ripple.DecodeTexture(strings.NewReader("not an image"), ripple.FilterNearest)
	if err == nil {
		t.Error("expected decode error")
	}
}

func TestTextureResized(t *testing.T) {
	tex, _ := ripple.NewTexture(quad(), ripple.FilterNearest)
	big, err := tex.Resized(8, 6)
	if err != nil {
		t.Fatal(err)
	}
	if w, h := big.Size(); w != 8 || h != 6 {
		t.Fatalf("size %dx%d", w, h)
	}
	if got := big.At(ms2.Vec{X: 0.1, Y: 0.9}); got != red {
		t.Errorf("got %v, want red", got)
	}
	if _, err := tex.Resized(0, 1); err == nil {
		t.Error("expected error for zero size")
	}
}

func TestParseFilter(t *testing.T) {
	for s, want := range map[string]ripple.Filter{
		"bilinear": ripple.FilterBilinear,
		"linear":   ripple.FilterBilinear,
		"nearest":  ripple.FilterNearest,
	} {
		got, err := ripple.ParseFilter(s)
		if err != nil || got != want {
			t.Errorf("ParseFilter(%q) = %v, %v", s, got, err)
		}
		if s != "linear" && got.String() != s {
			t.Errorf("String() = %q, want %q", got.String(), s)
		}
	}
	if _, err := ripple.ParseFilter("cubic"); err == nil {
		t.Error("expected error")
	}
}
