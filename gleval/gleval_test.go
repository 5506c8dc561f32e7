package gleval

import (
	"image/color"
	"math"
	"testing"

	"github.com/soypat/geometry/ms2"
)

// leaky acquires a buffer and never releases it.
type leaky struct{}

func (leaky) Evaluate(uv []ms2.Vec, dst []RGBA, userData any) error {
	vp, err := GetVecPool(userData)
	if err != nil {
		return err
	}
	vp.V2.Acquire(len(uv))
	return nil
}

type solid RGBA

func (s solid) Evaluate(uv []ms2.Vec, dst []RGBA, userData any) error {
	for i := range dst {
		dst[i] = RGBA(s)
	}
	return nil
}

func TestVecPool(t *testing.T) {
	var vp VecPool
	a := vp.V2.Acquire(16)
	b := vp.V2.Acquire(8)
	if len(a) != 16 || len(b) != 8 {
		t.Fatal("bad buffer lengths")
	}
	if err := vp.AssertAllReleased(); err == nil {
		t.Fatal("expected unreleased buffers")
	}
	if err := vp.V2.Release(a); err != nil {
		t.Fatal(err)
	}
	if err := vp.V2.Release(a); err == nil {
		t.Error("expected error on double release")
	}
	if err := vp.V2.Release(b); err != nil {
		t.Fatal(err)
	}
	c := vp.V2.Acquire(10)
	if &c[0] != &a[0] {
		t.Error("expected buffer reuse")
	}
	vp.V2.Release(c)
	if err := vp.AssertAllReleased(); err != nil {
		t.Error(err)
	}
	if err := vp.Color.Release(make([]RGBA, 1)); err == nil {
		t.Error("expected error releasing foreign buffer")
	}
}

func TestGetVecPool(t *testing.T) {
	var vp VecPool
	if got, err := GetVecPool(&vp); err != nil || got != &vp {
		t.Error("pointer userData", err)
	}
	var cpu CPUFragment
	if got, err := GetVecPool(&cpu); err != nil || got != &cpu.VP {
		t.Error("VecPool method userData", err)
	}
	if _, err := GetVecPool(nil); err == nil {
		t.Error("expected error for nil userData")
	}
	var nilvp *VecPool
	if _, err := GetVecPool(nilvp); err == nil {
		t.Error("expected error for nil *VecPool")
	}
}

func TestCPUFragment(t *testing.T) {
	want := RGBA{R: 0.25, G: 0.5, B: 1, A: 1}
	frag, err := NewCPUFragment(solid(want))
	if err != nil {
		t.Fatal(err)
	}
	uv := make([]ms2.Vec, 5)
	dst := make([]RGBA, 5)
	if err := frag.Evaluate(uv, dst, nil); err != nil {
		t.Fatal(err)
	}
	for _, c := range dst {
		if c != want {
			t.Fatalf("got %v, want %v", c, want)
		}
	}
	if frag.Evaluations() != 5 {
		t.Errorf("evaluations %d", frag.Evaluations())
	}
	if err := frag.Evaluate(uv, dst[:4], nil); err == nil {
		t.Error("expected buffer length error")
	}
	if frag.Evaluations() != 5 {
		t.Error("failed evaluation counted")
	}

	leak, _ := NewCPUFragment(leaky{})
	if err := leak.Evaluate(uv, dst, nil); err == nil {
		t.Error("expected unreleased buffer error")
	}
	if _, err := NewCPUFragment(42); err == nil {
		t.Error("expected error for non fragment")
	}
}

func TestRGBA(t *testing.T) {
	c := RGBAFromColor(color.NRGBA{R: 255, G: 0, B: 51, A: 255})
	if c.MaxDiff(RGBA{R: 1, B: 0.2, A: 1}) > 1e-6 {
		t.Errorf("conversion: %v", c)
	}
	if got := (RGBA{R: 2, G: -1, B: float32(math.NaN()), A: 0.5}).NRGBA(); got != (color.NRGBA{R: 255, G: 0, B: 0, A: 128}) {
		t.Errorf("out of range components: %v", got)
	}
	mid := RGBA{}.Lerp(RGBA{R: 1, G: 1, B: 1, A: 1}, 0.5)
	if mid != (RGBA{R: 0.5, G: 0.5, B: 0.5, A: 0.5}) {
		t.Errorf("lerp: %v", mid)
	}
}
