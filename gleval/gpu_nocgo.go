//go:build tinygo || !cgo

package gleval

import (
	"errors"
	"image"
	"io"

	"github.com/soypat/geometry/ms2"
)

var errNoCGO = errors.New("GPU evaluation requires CGo and is not supported on TinyGo")

// ComputeConfig configures GPU compute evaluation.
type ComputeConfig struct {
	InvocX int
}

// Init1x1GLFW starts a 1x1 sized GLFW so that user can start working with GPU.
func Init1x1GLFW() (terminate func(), err error) {
	return nil, errNoCGO
}

// NewComputeGPUFragment instantiates a [Fragment] that runs on the GPU.
func NewComputeGPUFragment(glglSourceCode io.Reader, cfg ComputeConfig) (*FragmentCompute, error) {
	return nil, errNoCGO
}

type FragmentCompute struct{}

func (fc *FragmentCompute) SetUniform1f(name string, v float32) {}

func (fc *FragmentCompute) SetTexture(name string, img *image.NRGBA, linear bool) error {
	return errNoCGO
}

func (fc *FragmentCompute) Evaluations() uint64 { return 0 }

func (fc *FragmentCompute) Delete() {}

func (fc *FragmentCompute) Evaluate(uv []ms2.Vec, dst []RGBA, userData any) error {
	return errNoCGO
}
