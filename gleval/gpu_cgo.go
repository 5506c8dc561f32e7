//go:build !tinygo && cgo

package gleval

import (
	"errors"
	"fmt"
	"image"
	"io"
	"runtime"
	"unsafe"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/glgl/v4.6-core/glgl"
)

// ComputeConfig configures GPU compute evaluation.
type ComputeConfig struct {
	// InvocX is the local work group size in X. Must match the size
	// the compute program was generated with.
	InvocX int
}

// Init1x1GLFW starts a 1x1 sized GLFW so that user can start working with GPU.
// It returns a termination function that should be called when user is done running loads on GPU.
func Init1x1GLFW() (terminate func(), err error) {
	_, terminate, err = glgl.InitWithCurrentWindow33(glgl.WindowConfig{
		Title:   "compute",
		Version: [2]int{4, 6},
		Width:   1,
		Height:  1,
	})
	return terminate, err
}

// NewComputeGPUFragment instantiates a [Fragment] that runs on the GPU from a
// compute program in glgl combined source format, see glbuild.Programmer.WriteComputeFragment.
func NewComputeGPUFragment(glglSourceCode io.Reader, cfg ComputeConfig) (*FragmentCompute, error) {
	if cfg.InvocX < 1 {
		return nil, errors.New("zero or negative invocation size")
	}
	combinedSource, err := glgl.ParseCombined(glglSourceCode)
	if err != nil {
		return nil, err
	}
	glprog, err := glgl.CompileProgram(combinedSource)
	if err != nil {
		return nil, errors.New(string(combinedSource.Compute) + "\n" + err.Error())
	}
	fc := &FragmentCompute{
		prog:     glprog,
		invocX:   cfg.InvocX,
		uniforms: make(map[string]float32),
	}
	return fc, nil
}

// FragmentCompute evaluates a fragment program on the GPU. Uniform values and
// textures are kept on the host and bound on every evaluation.
type FragmentCompute struct {
	prog        glgl.Program
	invocX      int
	uniforms    map[string]float32
	samplers    []samplerBinding
	evaluations uint64
}

type samplerBinding struct {
	name string
	tex  uint32
}

// SetUniform1f sets a float uniform value to be used in subsequent evaluations.
func (fc *FragmentCompute) SetUniform1f(name string, v float32) {
	fc.uniforms[name] = v
}

// SetTexture uploads img as the texture bound to the sampler2D uniform of given name,
// replacing any texture previously bound to it.
func (fc *FragmentCompute) SetTexture(name string, img *image.NRGBA, linear bool) error {
	tex, err := UploadTexture(img, linear)
	if err != nil {
		return err
	}
	for i := range fc.samplers {
		if fc.samplers[i].name == name {
			gl.DeleteTextures(1, &fc.samplers[i].tex)
			fc.samplers[i].tex = tex
			return nil
		}
	}
	fc.samplers = append(fc.samplers, samplerBinding{name: name, tex: tex})
	return nil
}

// Evaluations returns total evaluations performed succesfully during the fragment's lifetime.
func (fc *FragmentCompute) Evaluations() uint64 { return fc.evaluations }

// Delete releases the GL program and textures.
func (fc *FragmentCompute) Delete() {
	for i := range fc.samplers {
		gl.DeleteTextures(1, &fc.samplers[i].tex)
	}
	fc.samplers = fc.samplers[:0]
	fc.prog.Delete()
}

// Evaluate implements the [Fragment] interface.
func (fc *FragmentCompute) Evaluate(uv []ms2.Vec, dst []RGBA, userData any) error {
	if err := CheckBuffers(uv, dst); err != nil {
		return err
	}
	fc.prog.Bind()
	defer fc.prog.Unbind()
	for name, v := range fc.uniforms {
		loc, err := fc.prog.UniformLocation(name + "\x00")
		if err != nil {
			return fmt.Errorf("uniform %q: %w", name, err)
		}
		err = fc.prog.SetUniformf(loc, v)
		if err != nil {
			return fmt.Errorf("setting uniform %q: %w", name, err)
		}
	}
	for unit, s := range fc.samplers {
		loc, err := fc.prog.UniformLocation(s.name + "\x00")
		if err != nil {
			return fmt.Errorf("sampler %q: %w", s.name, err)
		}
		gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
		gl.BindTexture(gl.TEXTURE_2D, s.tex)
		gl.Uniform1i(loc, int32(unit))
	}
	err := computeEvaluate(uv, dst, fc.invocX)
	if err != nil {
		return err
	}
	fc.evaluations += uint64(len(dst))
	return nil
}

// UploadTexture creates a GL texture from img. Rows are flipped so that texture
// coordinate v=0 maps to the bottom row of the image.
func UploadTexture(img *image.NRGBA, linear bool) (tex uint32, err error) {
	if img == nil {
		return 0, errors.New("nil texture image")
	}
	sz := img.Rect.Size()
	if sz.X <= 0 || sz.Y <= 0 {
		return 0, errors.New("empty texture image")
	}
	flipped := vflip(img)
	var p runtime.Pinner
	p.Pin(&tex)
	gl.GenTextures(1, &tex)
	p.Unpin()
	if tex == 0 {
		return 0, glErrOrMessage("zero texture id set by GL")
	}
	gl.BindTexture(gl.TEXTURE_2D, tex)
	defer gl.BindTexture(gl.TEXTURE_2D, 0)
	filter := int32(gl.NEAREST)
	if linear {
		filter = gl.LINEAR
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, filter)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(sz.X), int32(sz.Y), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(flipped.Pix))
	return tex, glgl.Err()
}

// vflip returns a tightly packed copy of src with its rows in reverse order.
func vflip(src *image.NRGBA) *image.NRGBA {
	bounds := src.Bounds()
	flipped := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	height := bounds.Dy()
	rowSize := bounds.Dx() * 4
	for y := 0; y < height; y++ {
		srcRow := src.Pix[src.PixOffset(bounds.Min.X, bounds.Max.Y-1-y):]
		dstRow := flipped.Pix[y*flipped.Stride:]
		copy(dstRow[:rowSize], srcRow[:rowSize])
	}
	return flipped
}

func computeEvaluate(uv []ms2.Vec, dst []RGBA, invocX int) (err error) {
	if invocX < 1 {
		return errors.New("zero or negative invocation size")
	}
	var p runtime.Pinner
	var posSSBO, colSSBO uint32
	p.Pin(&posSSBO)
	p.Pin(&colSSBO)
	defer p.Unpin()

	posSSBO = loadSSBO(uv, 0, gl.STATIC_DRAW)
	if posSSBO == 0 {
		return glErrOrMessage("zero SSBO id set by GL during compute loading")
	}
	defer gl.DeleteBuffers(1, &posSSBO)

	colSSBO = createSSBO(elemSize[RGBA]()*len(dst), 1, gl.DYNAMIC_READ)
	if colSSBO == 0 {
		return glErrOrMessage("zero id SSBO creating color buffer")
	}
	defer gl.DeleteBuffers(1, &colSSBO)
	nWorkX := (len(dst) + invocX - 1) / invocX
	gl.DispatchCompute(uint32(nWorkX), 1, 1)
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)
	err = copySSBO(dst, colSSBO)
	if err != nil {
		return err
	}
	return glgl.Err()
}

func elemSize[T any]() int {
	var z T
	return int(unsafe.Sizeof(z))
}

func loadSSBO[T any](slice []T, base, usage uint32) (ssbo uint32) {
	var p runtime.Pinner
	p.Pin(&ssbo)
	gl.GenBuffers(1, &ssbo)
	p.Unpin()
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	size := len(slice) * elemSize[T]()
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, size, unsafe.Pointer(&slice[0]), usage)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, base, ssbo)
	return ssbo
}

func createSSBO(size int, base, usage uint32) (ssbo uint32) {
	gl.GenBuffers(1, &ssbo)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, size, nil, usage)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, base, ssbo)
	return ssbo
}

func copySSBO[T any](dst []T, ssbo uint32) error {
	singleSize := elemSize[T]()
	bufSize := singleSize * len(dst)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	ptr := gl.MapBufferRange(gl.SHADER_STORAGE_BUFFER, 0, bufSize, gl.MAP_READ_BIT)
	if ptr == nil {
		return glErrOrMessage("failed to map SSBO buffer during copy")
	}
	defer gl.UnmapBuffer(gl.SHADER_STORAGE_BUFFER)
	gpuBytes := unsafe.Slice((*byte)(ptr), bufSize)
	bufBytes := unsafe.Slice((*byte)(unsafe.Pointer(&dst[0])), bufSize)
	copy(bufBytes, gpuBytes)
	return nil
}

func glErrOrMessage(defaultMsg string) (err error) {
	err = glgl.Err()
	if err == nil {
		err = errors.New(defaultMsg)
	} else {
		err = fmt.Errorf("%s: %w", defaultMsg, err)
	}
	return err
}
