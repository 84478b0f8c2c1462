// Package transcode turns a single source frame into its sprite mosaic.
package transcode

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/gift"
	"github.com/pkg/errors"

	"github.com/ZacxDev/spritemosaic/internal/sprite"
	"github.com/ZacxDev/spritemosaic/pkg/types"
)

// Transcoder renders frames against one palette. It holds no per-frame state
// and is safe for concurrent use.
type Transcoder struct {
	palette *sprite.Palette
}

// New returns a Transcoder for palette.
func New(palette *sprite.Palette) *Transcoder {
	return &Transcoder{palette: palette}
}

// Transcode converts src to luminance, resizes it so its shorter side equals
// reference, optionally equalizes it, then replaces every tile-sized cell by
// the palette tile chosen from the cell's top-left pixel. The result has the
// resized dimensions.
func (t *Transcoder) Transcode(src image.Image, reference int, highContrast bool) (*image.RGBA, error) {
	if reference <= 0 {
		return nil, errors.Wrapf(types.ErrConfiguration, "reference size must be positive, got %d", reference)
	}
	if src == nil || src.Bounds().Empty() {
		return nil, errors.Wrap(types.ErrDecode, "empty source frame")
	}

	gray := Resize(Luminance(src), reference)
	if highContrast {
		Equalize(gray)
	}
	return t.blit(gray), nil
}

func (t *Transcoder) blit(gray *image.Gray) *image.RGBA {
	b := gray.Bounds()
	out := image.NewRGBA(b)
	tw, th := t.palette.TileSize()

	for y := b.Min.Y; y < b.Max.Y; y += th {
		for x := b.Min.X; x < b.Max.X; x += tw {
			tile := t.palette.TileFor(gray.GrayAt(x, y).Y)
			// Cells on the right and bottom edges are clipped by draw
			draw.Draw(out, image.Rect(x, y, x+tw, y+th), tile, image.Point{}, draw.Src)
		}
	}
	return out
}

// Luminance returns a single channel copy of src anchored at (0, 0). Alpha
// is ignored: a transparent pixel keeps the luminance of its colour.
func Luminance(src image.Image) *image.Gray {
	b := src.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	if o, ok := src.(interface{ Opaque() bool }); ok && o.Opaque() {
		draw.Draw(g, g.Bounds(), src, b.Min, draw.Src)
		return g
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			g.Pix[g.PixOffset(x-b.Min.X, y-b.Min.Y)] = gray(c)
		}
	}
	return g
}

// gray uses the same BT.601 weights as color.GrayModel on the
// unpremultiplied channels.
func gray(c color.NRGBA) uint8 {
	r, gr, bl := uint32(c.R)*0x101, uint32(c.G)*0x101, uint32(c.B)*0x101
	return uint8((19595*r + 38470*gr + 7471*bl + 1<<15) >> 24)
}

// TargetSize returns the dimensions that scale (w, h) so the shorter side
// equals reference and the longer side keeps the aspect ratio.
func TargetSize(w, h, reference int) (int, int) {
	scale := func(long, short int) int {
		n := int(math.Round(float64(reference) * float64(long) / float64(short)))
		if n < 1 {
			n = 1
		}
		return n
	}

	switch {
	case w == h:
		return reference, reference
	case w < h:
		return reference, scale(h, w)
	default:
		return scale(w, h), reference
	}
}

// Resize scales src to TargetSize with Lanczos resampling.
func Resize(src *image.Gray, reference int) *image.Gray {
	b := src.Bounds()
	w, h := TargetSize(b.Dx(), b.Dy(), reference)
	if w == b.Dx() && h == b.Dy() {
		return src
	}

	g := gift.New(gift.Resize(w, h, gift.LanczosResampling))
	dst := image.NewGray(g.Bounds(b))
	g.Draw(dst, src)
	return dst
}

// Equalize applies global histogram equalization to m in place. Images with
// a single grey level are left as they are.
func Equalize(m *image.Gray) {
	var hist [256]int
	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := m.Pix[m.PixOffset(b.Min.X, y):m.PixOffset(b.Max.X, y)]
		for _, v := range row {
			hist[v]++
		}
	}

	total, last, levels := 0, 0, 0
	for _, n := range hist {
		if n > 0 {
			total += n
			last = n
			levels++
		}
	}
	if levels <= 1 {
		return
	}
	step := (total - last) / 255
	if step == 0 {
		return
	}

	var lut [256]uint8
	n := step / 2
	for i := range lut {
		v := n / step
		if v > 255 {
			v = 255
		}
		lut[i] = uint8(v)
		n += hist[i]
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := m.Pix[m.PixOffset(b.Min.X, y):m.PixOffset(b.Max.X, y)]
		for i, v := range row {
			row[i] = lut[v]
		}
	}
}
