package rippleaux

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/soypat/ripple"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	labelFontOnce sync.Once
	labelFont     *truetype.Font
	labelFontErr  error
)

func loadLabelFont() (*truetype.Font, error) {
	labelFontOnce.Do(func() {
		labelFont, labelFontErr = truetype.Parse(goregular.TTF)
	})
	return labelFont, labelFontErr
}

// LabelConfig configures text drawn with [DrawLabel].
type LabelConfig struct {
	// Size is the font size in points at 72 DPI, so one point is one pixel.
	Size float64
	// Color of the text. Defaults to white.
	Color color.Color
	// Background is drawn behind the text when not nil.
	Background color.Color
	// Origin is the top-left corner of the label in image coordinates.
	Origin image.Point
}

// DrawLabel draws a single line of text onto dst.
func DrawLabel(dst draw.Image, text string, cfg LabelConfig) error {
	f, err := loadLabelFont()
	if err != nil {
		return err
	}
	if cfg.Size <= 0 {
		cfg.Size = 14
	}
	if cfg.Color == nil {
		cfg.Color = color.White
	}
	const pad = 4
	lineHeight := int(cfg.Size*1.25 + 0.5)
	if cfg.Background != nil {
		width := labelWidth(f, text, cfg.Size)
		bg := image.Rect(0, 0, width+2*pad, lineHeight+2*pad).Add(cfg.Origin).Intersect(dst.Bounds())
		draw.Draw(dst, bg, image.NewUniform(cfg.Background), image.Point{}, draw.Over)
	}
	c := freetype.NewContext()
	c.SetDPI(72)
	c.SetFont(f)
	c.SetFontSize(cfg.Size)
	c.SetClip(dst.Bounds())
	c.SetDst(dst)
	c.SetSrc(image.NewUniform(cfg.Color))
	c.SetHinting(font.HintingFull)
	baseline := freetype.Pt(cfg.Origin.X+pad, cfg.Origin.Y+pad+int(cfg.Size))
	_, err = c.DrawString(text, baseline)
	return err
}

// labelWidth returns the advance width of text in pixels.
func labelWidth(f *truetype.Font, text string, size float64) int {
	face := truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72})
	defer face.Close()
	return font.MeasureString(face, text).Ceil()
}

// DrawParamsLabel draws the parameters on the top-left corner of dst.
func DrawParamsLabel(dst draw.Image, p ripple.Params) error {
	return DrawLabel(dst, p.String(), LabelConfig{
		Size:       max(10, float64(dst.Bounds().Dy())/32),
		Background: color.NRGBA{A: 160},
		Origin:     dst.Bounds().Min,
	})
}
