package rippleaux

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/soypat/glgl/math/ms1"
	"github.com/soypat/ripple"
)

// UIConfig configures the interactive viewer started by [UI].
type UIConfig struct {
	Width, Height int
	// Title of the window. Current parameters are appended to it.
	Title string
	// Context stops the viewer when done. May be nil.
	Context context.Context
	// Store is the source of tunable parameters. Keyboard controls write to it
	// and other goroutines, such as [WatchParams], may update it concurrently.
	// If nil a store holding the effect's current parameters is used.
	Store *ripple.ParamStore
	// Start is the effect time shown in the first frame.
	Start time.Duration
	// Log receives viewer messages. Nil means silent.
	Log *zerolog.Logger
}

// UI opens a window and renders the effect on the GPU until the window is closed
// or the context is done. It must be called from the main goroutine with the OS thread locked.
//
// Keyboard controls:
//   - F, A, S: raise frequency, amplitude or speed. Hold shift to lower.
//   - Space: pause and resume time.
//   - R: restart time at zero.
//   - Escape: close the viewer.
func UI(eff *ripple.Effect, cfg UIConfig) error {
	if eff == nil {
		return ripple.ErrNoImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return errors.New("invalid window size")
	} else if cfg.Start < 0 {
		return errors.New("negative start time")
	}
	if cfg.Title == "" {
		cfg.Title = "ripple"
	}
	if cfg.Store == nil {
		cfg.Store = ripple.NewParamStore(eff.Params)
	}
	if cfg.Log == nil {
		nop := zerolog.Nop()
		cfg.Log = &nop
	}
	return ui(eff, cfg)
}

// newUIDriver returns the viewer's driver positioned at cfg.Start.
func newUIDriver(cfg UIConfig, clock ripple.Clock) (*ripple.Driver, error) {
	driver, err := ripple.NewDriver(cfg.Store, clock)
	if err != nil {
		return nil, err
	}
	driver.Seek(cfg.Start)
	return driver, nil
}

// Parameter change per key press.
const (
	frequencyStep = 0.5
	amplitudeStep = 0.005
	speedStep     = 0.25
)

// uiKey is a viewer control independent of the windowing toolkit.
type uiKey uint8

const (
	keyNone uiKey = iota
	keyFrequency
	keyAmplitude
	keySpeed
	keyPause
	keyReset
	keyQuit
)

// handleKey applies a control key to the driver and its parameter store.
// lower is set when shift is held. It reports whether the viewer should close.
func handleKey(k uiKey, lower bool, d *ripple.Driver) (quit bool) {
	sign := float32(1)
	if lower {
		sign = -1
	}
	switch k {
	case keyFrequency, keyAmplitude, keySpeed:
		d.Store().Update(func(p *ripple.Params) {
			// Only the edited parameter is bound to its control range.
			switch k {
			case keyFrequency:
				p.Frequency = ms1.Clamp(p.Frequency+sign*frequencyStep, ripple.FrequencyRange[0], ripple.FrequencyRange[1])
			case keyAmplitude:
				p.Amplitude = ms1.Clamp(p.Amplitude+sign*amplitudeStep, ripple.AmplitudeRange[0], ripple.AmplitudeRange[1])
			case keySpeed:
				p.Speed = ms1.Clamp(p.Speed+sign*speedStep, ripple.SpeedRange[0], ripple.SpeedRange[1])
			}
		})
	case keyPause:
		if d.Paused() {
			d.Resume()
		} else {
			d.Pause()
		}
	case keyReset:
		d.Reset()
	case keyQuit:
		return true
	}
	return false
}
