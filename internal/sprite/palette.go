// Package sprite builds the ordered tile palette used to render a mosaic and
// maps luminance values onto it.
package sprite

import (
	"image"
	"image/color"
	"image/draw"
	"os"

	// Sheet decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"

	"github.com/ZacxDev/spritemosaic/internal/config"
	"github.com/ZacxDev/spritemosaic/pkg/types"
)

// Palette is an immutable, ordered set of equally sized tiles. Tile 0 stands
// for the darkest quantization band, tile Len()-1 for the brightest.
type Palette struct {
	tiles         []*image.RGBA
	width, height int
}

var opaqueWhite = color.RGBA{0xff, 0xff, 0xff, 0xff}

// Build slices sheet into tileW x tileH tiles in row-major order. When filter
// is non-nil, opaque white pixels become filter.Background and every other
// pixel becomes filter.Foreground before slicing. sheet itself is never
// modified.
func Build(sheet image.Image, tileW, tileH int, filter *config.Filter) (*Palette, error) {
	if tileW <= 0 || tileH <= 0 {
		return nil, errors.Wrapf(types.ErrConfiguration, "invalid tile size %dx%d", tileW, tileH)
	}

	b := sheet.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || b.Dx()%tileW != 0 || b.Dy()%tileH != 0 {
		return nil, errors.Wrapf(types.ErrConfiguration,
			"sprite sheet %dx%d is not a multiple of the %dx%d tile size", b.Dx(), b.Dy(), tileW, tileH)
	}

	// Work on a copy anchored at (0, 0)
	src := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(src, src.Bounds(), sheet, b.Min, draw.Src)

	if filter != nil {
		recolor(src, *filter)
	}

	p := &Palette{width: tileW, height: tileH}
	for y := 0; y < src.Bounds().Dy(); y += tileH {
		for x := 0; x < src.Bounds().Dx(); x += tileW {
			tile := image.NewRGBA(image.Rect(0, 0, tileW, tileH))
			draw.Draw(tile, tile.Bounds(), src, image.Pt(x, y), draw.Src)
			p.tiles = append(p.tiles, tile)
		}
	}

	return p, nil
}

func recolor(m *image.RGBA, f config.Filter) {
	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if m.RGBAAt(x, y) == opaqueWhite {
				m.SetRGBA(x, y, f.Background)
			} else {
				m.SetRGBA(x, y, f.Foreground)
			}
		}
	}
}

// LoadSheet decodes the sprite sheet at path. An empty path returns the
// built-in sheet.
func LoadSheet(path string) (image.Image, error) {
	if path == "" {
		return DefaultSheet(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(types.ErrConfiguration, "sprite sheet not found: %v", err)
	}
	defer f.Close()

	m, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(types.ErrConfiguration, "decode sprite sheet %s: %v", path, err)
	}
	return m, nil
}

// Len returns the number of tiles, i.e. the number of quantization bands.
func (p *Palette) Len() int {
	return len(p.tiles)
}

// TileSize returns the tile dimensions.
func (p *Palette) TileSize() (width, height int) {
	return p.width, p.height
}

// Tile returns tile i. The returned image must not be modified.
func (p *Palette) Tile(i int) *image.RGBA {
	return p.tiles[i]
}

// TileFor returns the tile for a luminance value.
func (p *Palette) TileFor(v uint8) *image.RGBA {
	return p.tiles[Quantize(v, len(p.tiles))]
}

// Quantize maps a luminance value onto one of n bands as floor(v/255*n).
// 255 would land on n, so it is clamped to the last band.
func Quantize(v uint8, n int) int {
	i := int(v) * n / 255
	if i >= n {
		i = n - 1
	}
	return i
}
