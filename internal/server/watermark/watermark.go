// Package watermark renders the tiled identity overlay shown above viewed
// notes.
//
// The overlay only discourages casual resharing. Anyone holding a signed
// URL can fetch the file without it until the URL expires.
package watermark

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
)

const (
	// Angle is the text rotation in degrees, counter-clockwise negative.
	Angle = -30.0
	// Opacity of the text, 0..1.
	Opacity = 0.14

	padding    = 6
	tileMargin = 48
)

// ErrEmptyLabel is returned when there is nothing to draw.
var ErrEmptyLabel = errors.New("watermark label is empty")

var textColor = color.NRGBA{R: 0x33, G: 0x41, B: 0x55, A: uint8(math.Round(Opacity * 255))}

// Compose renders "<label> · <timestamp>" rotated by Angle onto a
// transparent PNG tile meant for background-repeat.
func Compose(label, timestamp string) ([]byte, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, ErrEmptyLabel
	}
	text := label
	if ts := strings.TrimSpace(timestamp); ts != "" {
		text += " · " + ts
	}

	face := basicfont.Face7x13
	metrics := face.Metrics()
	textW := font.MeasureString(face, text).Ceil()
	textH := metrics.Height.Ceil()

	src := image.NewNRGBA(image.Rect(0, 0, textW+2*padding, textH+2*padding))
	d := &font.Drawer{
		Dst:  src,
		Src:  image.NewUniform(textColor),
		Face: face,
		Dot:  fixed.P(padding, padding+metrics.Ascent.Ceil()),
	}
	d.DrawString(text)

	rad := Angle * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	sw, sh := float64(src.Bounds().Dx()), float64(src.Bounds().Dy())
	rw := math.Abs(sw*cos) + math.Abs(sh*sin)
	rh := math.Abs(sw*sin) + math.Abs(sh*cos)

	tw, th := int(math.Ceil(rw))+tileMargin, int(math.Ceil(rh))+tileMargin
	dst := image.NewNRGBA(image.Rect(0, 0, tw, th))

	// Rotate around the source centre and move it to the tile centre.
	cx, cy := sw/2, sh/2
	tx, ty := float64(tw)/2, float64(th)/2
	m := f64.Aff3{
		cos, -sin, tx - cos*cx + sin*cy,
		sin, cos, ty - sin*cx - cos*cy,
	}
	draw.BiLinear.Transform(dst, m, src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Renderer memoizes rendered tiles. Tiles depend only on their text, so a
// given label and timestamp is rendered once per expiry window.
type Renderer struct {
	cache *cache.Cache
}

func NewRenderer(ttl time.Duration) *Renderer {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Renderer{cache: cache.New(ttl, 2*ttl)}
}

// Render returns the PNG tile for label and timestamp.
func (r *Renderer) Render(label, timestamp string) ([]byte, error) {
	key := label + "\x00" + timestamp
	if v, ok := r.cache.Get(key); ok {
		return v.([]byte), nil
	}
	b, err := Compose(label, timestamp)
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(key, b)
	return b, nil
}
