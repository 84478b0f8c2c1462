package sprite

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZacxDev/spritemosaic/internal/config"
	"github.com/ZacxDev/spritemosaic/pkg/types"
)

func TestQuantize_Range(t *testing.T) {
	for _, n := range []int{1, 2, 7, 16, 17, 256} {
		for v := 0; v <= 255; v++ {
			i := Quantize(uint8(v), n)
			assert.GreaterOrEqual(t, i, 0)
			assert.Less(t, i, n, "v=%d n=%d", v, n)
		}
	}
}

func TestQuantize_Bands(t *testing.T) {
	tests := []struct {
		v    uint8
		want int
	}{
		{0, 0},
		{15, 0},
		{16, 1},
		{127, 7},
		{128, 8},
		{239, 14},
		{240, 15},
		{254, 15},
		{255, 15},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quantize(tt.v, 16), "v=%d", tt.v)
	}
}

func TestBuild_DefaultSheet(t *testing.T) {
	p, err := Build(DefaultSheet(), config.TileWidth, config.TileHeight, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultBands, p.Len())

	w, h := p.TileSize()
	assert.Equal(t, 8, w)
	assert.Equal(t, 8, h)

	// Brightness strictly increases along the ramp
	prev := -1
	for i := 0; i < p.Len(); i++ {
		lit := countWhite(p.Tile(i))
		assert.Greater(t, lit, prev, "tile %d", i)
		prev = lit
	}
	assert.Equal(t, 0, countWhite(p.Tile(0)))
	assert.Same(t, p.Tile(15), p.TileFor(255))
	assert.Same(t, p.Tile(0), p.TileFor(0))
}

func TestBuild_RowMajorOrder(t *testing.T) {
	// 2x2 grid of 2x2 tiles, each tile filled with its own grey level
	sheet := image.NewGray(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			sheet.SetGray(x, y, color.Gray{Y: uint8(10 * ((y/2)*2 + x/2))})
		}
	}

	p, err := Build(sheet, 2, 2, nil)
	require.NoError(t, err)
	require.Equal(t, 4, p.Len())
	for i := 0; i < 4; i++ {
		c := p.Tile(i).RGBAAt(1, 1)
		assert.Equal(t, uint8(10*i), c.R, "tile %d", i)
		assert.Equal(t, image.Rect(0, 0, 2, 2), p.Tile(i).Bounds())
	}
}

func TestBuild_Filter(t *testing.T) {
	sheet := DefaultSheet()
	before := encode(t, sheet)

	f := &config.Filter{
		Background: color.RGBA{10, 20, 30, 0xff},
		Foreground: color.RGBA{0, 255, 65, 0xff},
	}
	p, err := Build(sheet, 8, 8, f)
	require.NoError(t, err)

	// Solid-ink tile becomes all foreground
	assert.Equal(t, f.Foreground, p.Tile(0).RGBAAt(3, 3))
	// Bayer cell 0 is lit from tile 1 onwards, so it turns into background
	assert.Equal(t, f.Background, p.Tile(1).RGBAAt(0, 0))

	for i := 0; i < p.Len(); i++ {
		b := p.Tile(i).Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := p.Tile(i).RGBAAt(x, y)
				assert.True(t, c == f.Background || c == f.Foreground)
			}
		}
	}

	// Caller's sheet is untouched
	assert.Equal(t, before, encode(t, sheet))
}

func TestBuild_Idempotent(t *testing.T) {
	f := &config.Filter{Background: color.RGBA{1, 2, 3, 0xff}, Foreground: color.RGBA{4, 5, 6, 0xff}}
	sheet := DefaultSheet()

	a, err := Build(sheet, 8, 8, f)
	require.NoError(t, err)
	b, err := Build(sheet, 8, 8, f)
	require.NoError(t, err)

	require.Equal(t, a.Len(), b.Len())
	for i := 0; i < a.Len(); i++ {
		assert.True(t, bytes.Equal(a.Tile(i).Pix, b.Tile(i).Pix), "tile %d", i)
	}
}

func TestBuild_BadSheet(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		tileW, tileH int
	}{
		{"width not a multiple", 12, 8, 8, 8},
		{"height not a multiple", 16, 9, 8, 8},
		{"empty", 0, 0, 8, 8},
		{"zero tile", 16, 16, 0, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
			_, err := Build(sheet, tt.tileW, tt.tileH, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrConfiguration))
		})
	}
}

func TestLoadSheet(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty path is the built-in sheet", func(t *testing.T) {
		m, err := LoadSheet("")
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 8*DefaultBands, 8), m.Bounds())
	})

	t.Run("png on disk", func(t *testing.T) {
		path := filepath.Join(dir, "sheet.png")
		require.NoError(t, os.WriteFile(path, encode(t, DefaultSheet()), 0o644))

		m, err := LoadSheet(path)
		require.NoError(t, err)
		p, err := Build(m, 8, 8, nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultBands, p.Len())
	})

	t.Run("missing", func(t *testing.T) {
		_, err := LoadSheet(filepath.Join(dir, "nope.png"))
		assert.True(t, errors.Is(err, types.ErrConfiguration))
	})

	t.Run("not an image", func(t *testing.T) {
		path := filepath.Join(dir, "sheet.txt")
		require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
		_, err := LoadSheet(path)
		assert.True(t, errors.Is(err, types.ErrConfiguration))
	})
}

func countWhite(m *image.RGBA) int {
	n := 0
	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if m.RGBAAt(x, y) == opaqueWhite {
				n++
			}
		}
	}
	return n
}

func encode(t *testing.T, m image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, m))
	return buf.Bytes()
}
