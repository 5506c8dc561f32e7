//go:build !tinygo && cgo && gputest

package gleval_test

import (
	"bytes"
	"image/color"
	"math/rand"
	"testing"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/ripple"
	"github.com/soypat/ripple/glbuild"
	"github.com/soypat/ripple/gleval"
	"github.com/soypat/ripple/rippleaux"
)

func TestComputeMatchesCPU(t *testing.T) {
	terminate, err := gleval.Init1x1GLFW()
	if err != nil {
		t.Fatal(err)
	}
	defer terminate()
	src, err := rippleaux.CheckerImage(64, 64, 8, color.Black, color.White)
	if err != nil {
		t.Fatal(err)
	}
	eff, err := ripple.NewImageEffect(src, ripple.FilterNearest, ripple.Params{Time: 1.25, Frequency: 14, Amplitude: 0.04, Speed: 3})
	if err != nil {
		t.Fatal(err)
	}
	prog := glbuild.NewDefaultProgrammer()
	var buf bytes.Buffer
	_, _, err = prog.WriteComputeFragment(&buf, eff)
	if err != nil {
		t.Fatal(err)
	}
	invocX, _, _ := prog.ComputeInvocations()
	gpu, err := gleval.NewComputeGPUFragment(&buf, gleval.ComputeConfig{InvocX: invocX})
	if err != nil {
		t.Fatal(err)
	}
	defer gpu.Delete()
	eff.Params.ForEachUniform(gpu.SetUniform1f)
	err = gpu.SetTexture(ripple.UniformTexture, src, false)
	if err != nil {
		t.Fatal(err)
	}
	cpu, err := gleval.NewCPUFragment(eff)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))
	uv := make([]ms2.Vec, 1000)
	for i := range uv {
		uv[i] = ms2.Vec{X: rng.Float32(), Y: rng.Float32()}
	}
	got := make([]gleval.RGBA, len(uv))
	want := make([]gleval.RGBA, len(uv))
	if err := gpu.Evaluate(uv, got, nil); err != nil {
		t.Fatal(err)
	}
	if err := cpu.Evaluate(uv, want, nil); err != nil {
		t.Fatal(err)
	}
	mismatches := 0
	for i := range uv {
		if got[i].MaxDiff(want[i]) > 1e-3 {
			mismatches++
		}
	}
	// Nearest sampling may pick a neighbor texel when the displaced coordinate
	// lands within float error of a texel edge.
	if mismatches > len(uv)/100 {
		t.Errorf("%d of %d GPU samples differ from CPU", mismatches, len(uv))
	}
	if gpu.Evaluations() != uint64(len(uv)) {
		t.Errorf("evaluations %d", gpu.Evaluations())
	}
}
