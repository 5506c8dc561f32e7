package rippleaux

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/soypat/ripple"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// RenderVideo renders the effect as a video file encoded by ffmpeg. Frames are
// streamed to ffmpeg's standard input as raw RGBA; the container and codec
// follow from the filename extension.
func RenderVideo(ctx context.Context, filename string, eff *ripple.Effect, cfg RenderConfig) error {
	if filename == "" {
		return errors.New("empty video filename")
	}
	if err := cfg.validate(true); err != nil {
		return err
	}
	log := cfg.logger()
	pr, pw := io.Pipe()
	cmd := ffmpeg.Input("pipe:", VideoInputArgs(cfg)).
		Output(filename, ffmpeg.KwArgs{"pix_fmt": "yuv420p"}).
		OverWriteOutput().WithInput(pr)
	if log.GetLevel() <= zerolog.DebugLevel {
		cmd = cmd.ErrorToStdOut()
	}
	if cfg.FFmpegPath != "" {
		cmd = cmd.SetFfmpegPath(cfg.FFmpegPath)
	}
	errc := make(chan error, 1)
	go func() {
		err := cmd.Run()
		pr.CloseWithError(err) // Unblock frame writes if ffmpeg exits early.
		errc <- err
	}()

	renderErr := RenderFrames(ctx, eff, cfg, func(frame int, p ripple.Params, img *image.NRGBA) error {
		_, err := pw.Write(packedPix(img))
		return err
	})
	pw.CloseWithError(renderErr)
	runErr := <-errc
	if renderErr != nil {
		return renderErr
	} else if runErr != nil {
		return fmt.Errorf("ffmpeg: %w", runErr)
	}
	log.Info().Str("file", filename).Int("frames", cfg.NumFrames()).Msg("wrote video")
	return nil
}

// VideoInputArgs returns the ffmpeg input arguments describing the raw frames
// written by [RenderVideo].
func VideoInputArgs(cfg RenderConfig) ffmpeg.KwArgs {
	return ffmpeg.KwArgs{
		"format":  "rawvideo",
		"pix_fmt": "rgba",
		"s":       strconv.Itoa(cfg.Width) + "x" + strconv.Itoa(cfg.Height),
		"r":       strconv.Itoa(cfg.FPS),
	}
}

// packedPix returns the image pixels without row padding.
func packedPix(img *image.NRGBA) []byte {
	w := img.Rect.Dx() * 4
	if img.Stride == w {
		return img.Pix[:w*img.Rect.Dy()]
	}
	buf := make([]byte, 0, w*img.Rect.Dy())
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		off := img.PixOffset(img.Rect.Min.X, y)
		buf = append(buf, img.Pix[off:off+w]...)
	}
	return buf
}
