package rippleaux

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/soypat/ripple"
)

func testEffect(t *testing.T, p ripple.Params) (*ripple.Effect, *image.NRGBA) {
	t.Helper()
	src, err := GradientImage(48, 32, color.NRGBA{R: 255, A: 255}, color.NRGBA{B: 255, A: 255})
	if err != nil {
		t.Fatal(err)
	}
	eff, err := ripple.NewImageEffect(src, ripple.FilterNearest, p)
	if err != nil {
		t.Fatal(err)
	}
	return eff, src
}

func TestRenderImageIdentity(t *testing.T) {
	p := ripple.DefaultParams()
	p.Amplitude = 0
	eff, src := testEffect(t, p)
	img, err := RenderImage(eff, RenderConfig{Width: src.Rect.Dx(), Height: src.Rect.Dy()})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(img.Pix, src.Pix) {
		t.Error("zero amplitude render differs from source image")
	}
}

func TestRenderPNGFile(t *testing.T) {
	eff, _ := testEffect(t, ripple.DefaultParams())
	filename := filepath.Join(t.TempDir(), "out.png")
	err := RenderPNGFile(filename, eff, RenderConfig{Width: 20, Height: 10, Overlay: true})
	if err != nil {
		t.Fatal(err)
	}
	fp, err := os.Open(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer fp.Close()
	cfg, err := png.DecodeConfig(fp)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 20 || cfg.Height != 10 {
		t.Errorf("got %dx%d image", cfg.Width, cfg.Height)
	}
}

func TestRenderFramesTime(t *testing.T) {
	const fps = 30
	eff, _ := testEffect(t, ripple.DefaultParams())
	store := ripple.NewParamStore(ripple.DefaultParams())
	cfg := RenderConfig{
		Width:    8,
		Height:   8,
		FPS:      fps,
		Duration: 500 * time.Millisecond,
		Start:    2 * time.Second,
		Store:    store,
	}
	var times []float32
	err := RenderFrames(context.Background(), eff, cfg, func(frame int, p ripple.Params, img *image.NRGBA) error {
		if frame != len(times) {
			t.Fatalf("frame %d out of order", frame)
		}
		if img.Rect.Dx() != 8 || img.Rect.Dy() != 8 {
			t.Fatalf("bad frame size %v", img.Rect)
		}
		times = append(times, p.Time)
		if frame == 5 {
			// Parameter changes land on the next frame.
			store.Update(func(p *ripple.Params) { p.Amplitude = 0 })
		} else if frame == 6 && p.Amplitude != 0 {
			t.Error("store update not picked up on next frame")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(times) != cfg.NumFrames() || len(times) != 15 {
		t.Fatalf("rendered %d frames, want 15", len(times))
	}
	for i, got := range times {
		want := 2 + float32(i)/fps
		if math32.Abs(got-want) > 1e-5 {
			t.Errorf("frame %d: time %v, want %v", i, got, want)
		}
	}
}

func TestRenderFramesCancel(t *testing.T) {
	eff, _ := testEffect(t, ripple.DefaultParams())
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RenderConfig{Width: 4, Height: 4, FPS: 10, Duration: time.Second}
	n := 0
	err := RenderFrames(ctx, eff, cfg, func(frame int, p ripple.Params, img *image.NRGBA) error {
		n++
		if frame == 2 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
	if n != 3 {
		t.Errorf("rendered %d frames after cancel, want 3", n)
	}
}

func TestRenderPNGSequence(t *testing.T) {
	eff, _ := testEffect(t, ripple.DefaultParams())
	dir := filepath.Join(t.TempDir(), "frames")
	n, err := RenderPNGSequence(context.Background(), dir, eff, RenderConfig{Width: 6, Height: 4, FPS: 4, Duration: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("wrote %d frames, want 4", n)
	}
	for i := 0; i < n; i++ {
		if _, err := os.Stat(filepath.Join(dir, FrameFilename(i))); err != nil {
			t.Error(err)
		}
	}
}

func TestRenderConfigValidate(t *testing.T) {
	eff, _ := testEffect(t, ripple.DefaultParams())
	noop := func(int, ripple.Params, *image.NRGBA) error { return nil }
	for name, cfg := range map[string]RenderConfig{
		"size":     {Width: 0, Height: 4, FPS: 1, Duration: time.Second},
		"fps":      {Width: 4, Height: 4, FPS: 0, Duration: time.Second},
		"duration": {Width: 4, Height: 4, FPS: 1},
		"start":    {Width: 4, Height: 4, FPS: 1, Duration: time.Second, Start: -time.Second},
	} {
		if err := RenderFrames(context.Background(), eff, cfg, noop); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := RenderImage(nil, RenderConfig{Width: 1, Height: 1}); !errors.Is(err, ripple.ErrNoImage) {
		t.Errorf("nil effect: want ErrNoImage, got %v", err)
	}
	if err := RenderVideo(context.Background(), "", eff, RenderConfig{}); err == nil {
		t.Error("expected error for empty video filename")
	}
}

func TestHandleKey(t *testing.T) {
	clock, err := ripple.NewFrameClock(10)
	if err != nil {
		t.Fatal(err)
	}
	store := ripple.NewParamStore(ripple.DefaultParams())
	d, err := ripple.NewDriver(store, clock)
	if err != nil {
		t.Fatal(err)
	}
	d.Tick()
	handleKey(keyFrequency, false, d)
	handleKey(keyAmplitude, true, d)
	handleKey(keySpeed, false, d)
	p := store.Load()
	def := ripple.DefaultParams()
	if p.Frequency != def.Frequency+frequencyStep || p.Amplitude != def.Amplitude-amplitudeStep || p.Speed != def.Speed+speedStep {
		t.Errorf("unexpected params after keys: %v", p)
	}
	// Keys never leave the control range.
	for i := 0; i < 1000; i++ {
		handleKey(keyAmplitude, false, d)
	}
	if got := store.Load().Amplitude; got != ripple.AmplitudeRange[1] {
		t.Errorf("amplitude %v not clamped to %v", got, ripple.AmplitudeRange[1])
	}

	handleKey(keyPause, false, d)
	if !d.Paused() {
		t.Fatal("want paused")
	}
	clock.Advance()
	if got := d.Tick().Time; got != 0 {
		t.Errorf("time advanced while paused: %v", got)
	}
	handleKey(keyPause, false, d)
	clock.Advance()
	if got := d.Tick().Time; math32.Abs(got-0.1) > 1e-6 {
		t.Errorf("time after resume %v, want 0.1", got)
	}
	handleKey(keyReset, false, d)
	if got := d.Tick().Time; got != 0 {
		t.Errorf("time after reset %v", got)
	}
	if !handleKey(keyQuit, false, d) {
		t.Error("escape must quit")
	}
	if handleKey(keyNone, false, d) {
		t.Error("unbound key must not quit")
	}
}

func TestHandleKeyKeepsOtherParams(t *testing.T) {
	// Values loaded from a parameter file may lie outside the control ranges.
	store := ripple.NewParamStore(ripple.Params{Frequency: 30, Amplitude: -2, Speed: 2})
	d, err := ripple.NewDriver(store, nil)
	if err != nil {
		t.Fatal(err)
	}
	handleKey(keySpeed, false, d)
	p := store.Load()
	if p.Frequency != 30 || p.Amplitude != -2 || p.Speed != 2+speedStep {
		t.Errorf("speed key changed other parameters: %v", p)
	}
	handleKey(keyFrequency, true, d)
	p = store.Load()
	if p.Frequency != ripple.FrequencyRange[1] {
		t.Errorf("edited frequency %v not clamped to %v", p.Frequency, ripple.FrequencyRange[1])
	}
	if p.Amplitude != -2 || p.Speed != 2+speedStep {
		t.Errorf("frequency key changed other parameters: %v", p)
	}
}

func TestUIStart(t *testing.T) {
	eff, _ := testEffect(t, ripple.DefaultParams())
	err := UI(eff, UIConfig{Width: 8, Height: 8, Start: -time.Second})
	if err == nil {
		t.Error("expected error for negative start time")
	}
	clock, err := ripple.NewFrameClock(10)
	if err != nil {
		t.Fatal(err)
	}
	d, err := newUIDriver(UIConfig{Store: ripple.NewParamStore(eff.Params), Start: 2500 * time.Millisecond}, clock)
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Tick().Time; math32.Abs(got-2.5) > 1e-6 {
		t.Errorf("first frame time %v, want 2.5", got)
	}
	clock.Advance()
	if got := d.Tick().Time; math32.Abs(got-2.6) > 1e-5 {
		t.Errorf("second frame time %v, want 2.6", got)
	}
	if _, err := newUIDriver(UIConfig{}, clock); err == nil {
		t.Error("expected error for missing store")
	}
}

func TestDemoImages(t *testing.T) {
	grad, err := GradientImage(64, 16, color.NRGBA{R: 255, A: 255}, color.NRGBA{G: 255, A: 255})
	if err != nil {
		t.Fatal(err)
	}
	bottom := grad.Rect.Dy() - 1
	left, right := grad.NRGBAAt(0, bottom), grad.NRGBAAt(63, bottom)
	if left.R < 250 || left.G > 5 {
		t.Errorf("left edge %v, want red", left)
	}
	if right.G < 250 || right.R > 5 {
		t.Errorf("right edge %v, want green", right)
	}
	if top := grad.NRGBAAt(0, 0); top.G < 100 {
		t.Errorf("top row %v not faded towards white", top)
	}
	if _, err := GradientImage(1, 1, color.Black, color.White); err == nil {
		t.Error("expected error for tiny gradient")
	}

	chk, err := CheckerImage(8, 8, 2, color.Black, color.White)
	if err != nil {
		t.Fatal(err)
	}
	black := color.NRGBA{A: 255}
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	if got := chk.NRGBAAt(0, 7); got != black {
		t.Errorf("bottom-left cell %v, want black", got)
	}
	if got := chk.NRGBAAt(7, 7); got != white {
		t.Errorf("bottom-right cell %v, want white", got)
	}
	if got := chk.NRGBAAt(0, 0); got != white {
		t.Errorf("top-left cell %v, want white", got)
	}
}

func TestDrawLabel(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 200, 40))
	err := DrawLabel(img, "freq=10", LabelConfig{Size: 16})
	if err != nil {
		t.Fatal(err)
	}
	lit := 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			lit++
		}
	}
	if lit == 0 {
		t.Error("label drew no pixels")
	}
	if err := DrawParamsLabel(img, ripple.DefaultParams()); err != nil {
		t.Error(err)
	}
}

func TestPackedPix(t *testing.T) {
	big := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range big.Pix {
		big.Pix[i] = byte(i)
	}
	sub := big.SubImage(image.Rect(1, 1, 3, 3)).(*image.NRGBA)
	got := packedPix(sub)
	want := append(append([]byte{}, big.Pix[20:28]...), big.Pix[36:44]...)
	if !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if args := VideoInputArgs(RenderConfig{Width: 3, Height: 2, FPS: 24}); args["s"] != "3x2" || args["r"] != "24" {
		t.Errorf("unexpected ffmpeg input args %v", args)
	}
}
