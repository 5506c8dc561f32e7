// Command ripple renders the ripple distortion effect over an image.
//
// Usage:
//
//	ripple -mode png -image photo.jpg -o out.png -t 1.5
//	ripple -mode video -image photo.jpg -o out.mp4 -duration 5s -fps 30
//	ripple -mode ui -image photo.jpg -params params.yaml -watch
//	ripple -mode shadertoy > ripple.glsl
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/color"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/soypat/ripple"
	"github.com/soypat/ripple/glbuild"
	"github.com/soypat/ripple/rippleaux"
)

type config struct {
	mode       string
	image      string
	filter     string
	paramsFile string
	watch      bool
	output     string
	width      int
	height     int
	fps        int
	duration   time.Duration
	useGPU     bool
	overlay    bool
	ffmpegPath string
	params     ripple.Params
	// set holds the names of flags given explicitly on the command line.
	set map[string]bool
}

func init() {
	// GLFW and GL calls must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	var (
		cfg     config
		t       float64
		freq    float64
		amp     float64
		speed   float64
		verbose bool
	)
	def := ripple.DefaultParams()
	flag.StringVar(&cfg.mode, "mode", "png", "output mode: png | frames | video | ui | glsl | shadertoy")
	flag.StringVar(&cfg.image, "image", "", "source image (PNG, JPEG, GIF, BMP, TIFF, WebP); demo gradient if empty")
	flag.StringVar(&cfg.filter, "filter", "bilinear", "texture filter: bilinear | nearest")
	flag.StringVar(&cfg.paramsFile, "params", "", "YAML parameter file with frequency, amplitude and speed")
	flag.BoolVar(&cfg.watch, "watch", false, "reload the parameter file on change (ui mode)")
	flag.StringVar(&cfg.output, "o", "", "output file or directory (frames mode); stdout for glsl modes if empty")
	flag.IntVar(&cfg.width, "width", 0, "output width in pixels; source image width if zero")
	flag.IntVar(&cfg.height, "height", 0, "output height in pixels; source image height if zero")
	flag.Float64Var(&t, "t", 0, "effect time in seconds of the first frame")
	flag.Float64Var(&freq, "freq", float64(def.Frequency), "ripple frequency")
	flag.Float64Var(&amp, "amp", float64(def.Amplitude), "ripple amplitude")
	flag.Float64Var(&speed, "speed", float64(def.Speed), "ripple speed")
	flag.IntVar(&cfg.fps, "fps", 30, "frames per second of sequences and video")
	flag.DurationVar(&cfg.duration, "duration", 3*time.Second, "duration of sequences and video")
	flag.BoolVar(&cfg.useGPU, "gpu", false, "evaluate on the GPU with a compute shader")
	flag.BoolVar(&cfg.overlay, "overlay", false, "draw parameters over rendered frames")
	flag.StringVar(&cfg.ffmpegPath, "ffmpeg", "", "path to ffmpeg executable")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { cfg.set[f.Name] = true })
	cfg.params = ripple.Params{
		Time:      float32(t),
		Frequency: float32(freq),
		Amplitude: float32(amp),
		Speed:     float32(speed),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := run(ctx, cfg)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Str("mode", cfg.mode).Msg("ripple failed")
	}
}

func run(ctx context.Context, cfg config) error {
	logger := log.Logger
	params, err := effectiveParams(cfg)
	if err != nil {
		return err
	}
	filter, err := ripple.ParseFilter(cfg.filter)
	if err != nil {
		return err
	}
	tex, err := loadTexture(cfg.image, filter)
	if err != nil {
		return err
	}
	w, h := tex.Size()
	if cfg.width > 0 {
		w = cfg.width
	}
	if cfg.height > 0 {
		h = cfg.height
	}
	smp, err := ripple.NewSampler(tex)
	if err != nil {
		return err
	}
	eff, err := ripple.NewEffect(smp, params)
	if err != nil {
		return err
	}
	logger.Debug().Stringer("params", params).Int("width", w).Int("height", h).Str("filter", filter.String()).Msg("effect ready")

	store := ripple.NewParamStore(params)
	rcfg := rippleaux.RenderConfig{
		Width:      w,
		Height:     h,
		FPS:        cfg.fps,
		Duration:   cfg.duration,
		Start:      time.Duration(float64(params.Time) * float64(time.Second)),
		UseGPU:     cfg.useGPU,
		Overlay:    cfg.overlay,
		Store:      store,
		FFmpegPath: cfg.ffmpegPath,
		Log:        &logger,
	}

	switch cfg.mode {
	case "png":
		return rippleaux.RenderPNGFile(orDefault(cfg.output, "ripple.png"), eff, rcfg)
	case "frames":
		n, err := rippleaux.RenderPNGSequence(ctx, orDefault(cfg.output, "frames"), eff, rcfg)
		logger.Info().Int("frames", n).Msg("wrote PNG sequence")
		return err
	case "video":
		return rippleaux.RenderVideo(ctx, orDefault(cfg.output, "ripple.mp4"), eff, rcfg)
	case "ui":
		if cfg.watch {
			if cfg.paramsFile == "" {
				return errors.New("-watch requires -params")
			}
			go func() {
				err := rippleaux.WatchParams(ctx, cfg.paramsFile, store, &logger)
				if err != nil {
					logger.Error().Err(err).Msg("parameter watcher stopped")
				}
			}()
		}
		return rippleaux.UI(eff, rippleaux.UIConfig{
			Width:   w,
			Height:  h,
			Context: ctx,
			Store:   store,
			Start:   rcfg.Start,
			Log:     &logger,
		})
	case "glsl", "shadertoy":
		return writeGLSL(cfg.mode, cfg.output, eff)
	}
	return fmt.Errorf("unknown mode %q", cfg.mode)
}

// effectiveParams merges the parameter file and command line. Flags given
// explicitly override values from the file.
func effectiveParams(cfg config) (ripple.Params, error) {
	p := cfg.params
	if cfg.paramsFile != "" {
		fp, err := rippleaux.LoadParams(cfg.paramsFile)
		if err != nil {
			return ripple.Params{}, err
		}
		if !cfg.set["freq"] {
			p.Frequency = fp.Frequency
		}
		if !cfg.set["amp"] {
			p.Amplitude = fp.Amplitude
		}
		if !cfg.set["speed"] {
			p.Speed = fp.Speed
		}
	}
	return p, p.Validate()
}

func loadTexture(filename string, filter ripple.Filter) (*ripple.Texture, error) {
	if filename == "" {
		img, err := rippleaux.GradientImage(512, 512, color.NRGBA{R: 255, G: 60, B: 90, A: 255}, color.NRGBA{R: 40, G: 120, B: 255, A: 255})
		if err != nil {
			return nil, err
		}
		return ripple.NewTexture(img, filter)
	}
	fp, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return ripple.DecodeTexture(fp, filter)
}

func writeGLSL(mode, output string, eff *ripple.Effect) (err error) {
	var w io.Writer = os.Stdout
	if output != "" {
		fp, err := os.Create(output)
		if err != nil {
			return err
		}
		defer fp.Close()
		w = fp
	}
	prog := glbuild.NewDefaultProgrammer()
	if mode == "shadertoy" {
		_, _, err = prog.WriteShaderToy(w, eff)
	} else {
		_, _, err = prog.WriteFragmentProgram(w, eff)
	}
	return err
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
