// Package rippleaux provides auxiliary tooling around the ripple effect:
// rendering stills, frame sequences and video, parameter files with hot reload,
// text overlays, demo textures and an interactive viewer.
package rippleaux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/soypat/ripple"
	"github.com/soypat/ripple/glbuild"
	"github.com/soypat/ripple/gleval"
	"github.com/soypat/ripple/glrender"
)

// RenderConfig configures offline rendering of a ripple effect.
type RenderConfig struct {
	// Width and Height of the output in pixels.
	Width, Height int
	// FPS is the frame rate of rendered sequences. Frame i is rendered at time
	// Start + i/FPS seconds.
	FPS int
	// Duration of rendered sequences.
	Duration time.Duration
	// Start is the effect time of the first frame.
	Start time.Duration
	// UseGPU evaluates the effect with a compute shader instead of the CPU.
	UseGPU bool
	// Overlay draws the current parameters over each frame.
	Overlay bool
	// Store supplies tunable parameters each frame. If nil a store holding the
	// effect's current parameters is used.
	Store *ripple.ParamStore
	// FFmpegPath overrides the ffmpeg executable used by [RenderVideo].
	FFmpegPath string
	// Log receives progress messages. Nil means silent.
	Log *zerolog.Logger
}

func (cfg *RenderConfig) validate(sequence bool) error {
	var errs []error
	if cfg.Width <= 0 || cfg.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid render size %dx%d", cfg.Width, cfg.Height))
	}
	if sequence {
		if cfg.FPS <= 0 {
			errs = append(errs, errors.New("frame rate must be positive"))
		}
		if cfg.Duration <= 0 {
			errs = append(errs, errors.New("duration must be positive"))
		}
	}
	if cfg.Start < 0 {
		errs = append(errs, errors.New("negative start time"))
	}
	return errors.Join(errs...)
}

func (cfg *RenderConfig) logger() *zerolog.Logger {
	if cfg.Log == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return cfg.Log
}

// NumFrames returns the number of frames a sequence rendered with cfg has.
func (cfg *RenderConfig) NumFrames() int {
	if cfg.FPS <= 0 || cfg.Duration <= 0 {
		return 0
	}
	return int(cfg.Duration * time.Duration(cfg.FPS) / time.Second)
}

// evaluator evaluates an effect with per frame parameters on the CPU or GPU.
type evaluator struct {
	frag      gleval.Fragment
	setParams func(p ripple.Params)
	close     func()
}

func newEvaluator(eff *ripple.Effect, useGPU bool, log *zerolog.Logger) (*evaluator, error) {
	if !useGPU {
		log.Debug().Str("tree", glbuild.FormatShader(eff)).Msg("using CPU")
		frag, err := gleval.NewCPUFragment(eff)
		if err != nil {
			return nil, err
		}
		return &evaluator{
			frag:      frag,
			setParams: func(p ripple.Params) { eff.Params = p },
			close:     func() {},
		}, nil
	}
	log.Debug().Str("tree", glbuild.FormatShader(eff)).Msg("using GPU")
	terminate, err := gleval.Init1x1GLFW()
	if err != nil {
		return nil, err
	}
	var source bytes.Buffer
	prog := glbuild.NewDefaultProgrammer()
	n, _, err := prog.WriteComputeFragment(&source, eff)
	if err != nil {
		terminate()
		return nil, err
	} else if n != source.Len() {
		terminate()
		return nil, fmt.Errorf("wrote %d bytes but WriteComputeFragment counted %d", source.Len(), n)
	}
	invocX, _, _ := prog.ComputeInvocations()
	fc, err := gleval.NewComputeGPUFragment(&source, gleval.ComputeConfig{InvocX: invocX})
	if err != nil {
		terminate()
		return nil, err
	}
	tex, err := ripple.SourceTexture(eff)
	if err == nil {
		err = fc.SetTexture(ripple.UniformTexture, tex.Image(), tex.Filter() == ripple.FilterBilinear)
	}
	if err != nil {
		fc.Delete()
		terminate()
		return nil, err
	}
	return &evaluator{
		frag: fc,
		setParams: func(p ripple.Params) {
			eff.Params = p
			p.ForEachUniform(fc.SetUniform1f)
		},
		close: func() {
			fc.Delete()
			terminate()
		},
	}, nil
}

// RenderImage renders a single frame of the effect with its current parameters.
func RenderImage(eff *ripple.Effect, cfg RenderConfig) (*image.NRGBA, error) {
	if eff == nil {
		return nil, ripple.ErrNoImage
	}
	if err := cfg.validate(false); err != nil {
		return nil, err
	}
	log := cfg.logger()
	ev, err := newEvaluator(eff, cfg.UseGPU, log)
	if err != nil {
		return nil, err
	}
	defer ev.close()
	renderer, err := glrender.NewImageRenderer(max(4096, cfg.Width))
	if err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	p := eff.Params
	ev.setParams(p)
	err = renderFrame(ev, renderer, img, p, cfg.Overlay)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// RenderPNGFile renders the effect with its current parameters and saves the result to a PNG file with said filename.
func RenderPNGFile(filename string, eff *ripple.Effect, cfg RenderConfig) error {
	watch := stopwatch()
	img, err := RenderImage(eff, cfg)
	if err != nil {
		return err
	}
	err = writePNG(filename, img)
	if err != nil {
		return err
	}
	cfg.logger().Info().Str("file", filename).Dur("took", watch()).Msg("wrote image")
	return nil
}

// FrameFunc receives each rendered frame. img is reused between calls.
type FrameFunc func(frame int, p ripple.Params, img *image.NRGBA) error

// RenderFrames renders cfg.NumFrames frames at fixed time steps and calls fn with each.
// Parameters are read from cfg.Store once per frame.
func RenderFrames(ctx context.Context, eff *ripple.Effect, cfg RenderConfig, fn FrameFunc) error {
	if eff == nil {
		return ripple.ErrNoImage
	} else if fn == nil {
		return errors.New("nil frame callback")
	}
	if err := cfg.validate(true); err != nil {
		return err
	}
	log := cfg.logger()
	store := cfg.Store
	if store == nil {
		store = ripple.NewParamStore(eff.Params)
	}
	clock, err := ripple.NewFrameClock(cfg.FPS)
	if err != nil {
		return err
	}
	driver, err := ripple.NewDriver(store, clock)
	if err != nil {
		return err
	}
	driver.Seek(cfg.Start)
	ev, err := newEvaluator(eff, cfg.UseGPU, log)
	if err != nil {
		return err
	}
	defer ev.close()

	renderer, err := glrender.NewImageRenderer(max(4096, cfg.Width))
	if err != nil {
		return err
	}
	img := image.NewNRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	nframes := cfg.NumFrames()
	watch := stopwatch()
	for i := 0; i < nframes; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		p := driver.Tick()
		ev.setParams(p)
		err = renderFrame(ev, renderer, img, p, cfg.Overlay)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		err = fn(i, p, img)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		clock.Advance()
		log.Debug().Int("frame", i).Stringer("params", p).Msg("rendered")
	}
	log.Info().Int("frames", nframes).Dur("took", watch()).Msg("rendered frames")
	return nil
}

// RenderPNGSequence renders frames into dir as frame_00000.png, frame_00001.png and so on.
// It returns the number of frames written.
func RenderPNGSequence(ctx context.Context, dir string, eff *ripple.Effect, cfg RenderConfig) (n int, err error) {
	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return 0, err
	}
	err = RenderFrames(ctx, eff, cfg, func(frame int, p ripple.Params, img *image.NRGBA) error {
		err := writePNG(filepath.Join(dir, FrameFilename(frame)), img)
		if err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

// FrameFilename returns the file name of a frame in a PNG sequence.
func FrameFilename(frame int) string {
	return fmt.Sprintf("frame_%05d.png", frame)
}

func renderFrame(ev *evaluator, renderer *glrender.ImageRenderer, img *image.NRGBA, p ripple.Params, overlay bool) error {
	err := renderer.Render(ev.frag, img, nil)
	if err != nil {
		return err
	}
	if overlay {
		err = DrawParamsLabel(img, p)
	}
	return err
}

func writePNG(filename string, img image.Image) error {
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer fp.Close()
	err = png.Encode(fp, img)
	if err != nil {
		return err
	}
	return fp.Sync()
}

func stopwatch() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
