package rippleaux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/soypat/ripple"
	"gopkg.in/yaml.v3"
)

// paramsFile is the on-disk format of tunable effect parameters.
// Time is driven by the render loop and is not stored.
type paramsFile struct {
	Frequency float32 `yaml:"frequency"`
	Amplitude float32 `yaml:"amplitude"`
	Speed     float32 `yaml:"speed"`
}

// DecodeParams reads YAML parameters from r. Absent fields keep their default value.
func DecodeParams(r io.Reader) (ripple.Params, error) {
	def := ripple.DefaultParams()
	pf := paramsFile{Frequency: def.Frequency, Amplitude: def.Amplitude, Speed: def.Speed}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(&pf)
	if err != nil && !errors.Is(err, io.EOF) {
		return ripple.Params{}, fmt.Errorf("decoding parameters: %w", err)
	}
	p := ripple.Params{Frequency: pf.Frequency, Amplitude: pf.Amplitude, Speed: pf.Speed}
	err = p.Validate()
	if err != nil {
		return ripple.Params{}, err
	}
	return p, nil
}

// EncodeParams writes the tunable parameters of p to w as YAML.
func EncodeParams(w io.Writer, p ripple.Params) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	err := enc.Encode(paramsFile{Frequency: p.Frequency, Amplitude: p.Amplitude, Speed: p.Speed})
	if err != nil {
		return err
	}
	return enc.Close()
}

// LoadParams reads a YAML parameter file.
func LoadParams(filename string) (ripple.Params, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return ripple.Params{}, err
	}
	defer fp.Close()
	p, err := DecodeParams(fp)
	if err != nil {
		return ripple.Params{}, fmt.Errorf("%s: %w", filename, err)
	}
	return p, nil
}

// SaveParams writes the tunable parameters of p to a YAML file.
func SaveParams(filename string, p ripple.Params) error {
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer fp.Close()
	err = EncodeParams(fp, p)
	if err != nil {
		return err
	}
	return fp.Sync()
}

// reloadDebounce is how long the watcher waits after the last change to a
// parameter file before reloading it.
const reloadDebounce = 100 * time.Millisecond

// WatchParams reloads the parameter file into store every time it changes until ctx is done.
// The directory containing the file is watched so editors that replace files on save are supported.
// Files that fail to load are logged and leave the store untouched. Store time is preserved.
// WatchParams returns nil when ctx is cancelled.
func WatchParams(ctx context.Context, filename string, store *ripple.ParamStore, log *zerolog.Logger) error {
	if store == nil {
		return errors.New("nil parameter store")
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	abs, err := filepath.Abs(filename)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	err = w.Add(filepath.Dir(abs))
	if err != nil {
		return err
	}
	reload := func() {
		p, err := LoadParams(abs)
		if err != nil {
			log.Warn().Err(err).Str("file", filename).Msg("parameter reload failed; keeping previous parameters")
			return
		}
		next := store.Update(func(cur *ripple.Params) {
			cur.Frequency = p.Frequency
			cur.Amplitude = p.Amplitude
			cur.Speed = p.Speed
		})
		log.Info().Str("file", filename).Stringer("params", next).Msg("parameters reloaded")
	}

	timer := time.NewTimer(reloadDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(reloadDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("parameter file watcher")
		case <-timer.C:
			reload()
		}
	}
}
