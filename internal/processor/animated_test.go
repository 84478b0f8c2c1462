package processor

import (
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZacxDev/spritemosaic/pkg/types"
)

func writeTestGIF(t *testing.T, delays []int) string {
	t.Helper()
	g := &gif.GIF{}
	for i, d := range delays {
		frame := image.NewPaletted(image.Rect(0, 0, 20, 10), palette.Plan9)
		for y := 0; y < 10; y++ {
			for x := 0; x < 20; x++ {
				v := uint8((x*12 + i*40) % 256)
				frame.Set(x, y, color.RGBA{v, v, v, 0xff})
			}
		}
		g.Image = append(g.Image, frame)
		g.Delay = append(g.Delay, d)
	}

	path := filepath.Join(t.TempDir(), "anim.gif")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, gif.EncodeAll(f, g))
	return path
}

func TestAnimatedJobKeepsFramesAndDelays(t *testing.T) {
	delays := []int{10, 25, 7, 100}
	opts := testOptions(t, writeTestGIF(t, delays))

	var progress []int
	job := NewAnimatedJob(opts, newTranscoder(t), nil)
	job.OnProgress(func(done, total int) {
		assert.Equal(t, len(delays), total)
		progress = append(progress, done)
	})

	out, err := job.Run()
	require.NoError(t, err)
	assert.Equal(t, opts.ResolveOutput(types.MediaKindAnimated), out)
	assert.Equal(t, []int{1, 2, 3, 4}, progress)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)

	assert.Len(t, g.Image, len(delays))
	assert.Equal(t, delays, g.Delay)
	assert.Equal(t, 0, g.LoopCount)
	for _, frame := range g.Image {
		assert.Equal(t, image.Rect(0, 0, 32, 16), frame.Bounds())
	}
}

func TestAnimatedJobCorruptInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.gif")
	require.NoError(t, os.WriteFile(path, []byte("GIF89a\x10\x00"), 0o644))
	opts := testOptions(t, path)

	_, err := NewAnimatedJob(opts, newTranscoder(t), nil).Run()
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrDecode)
	assert.NoFileExists(t, opts.ResolveOutput(types.MediaKindAnimated))
}

func TestCompositorDisposal(t *testing.T) {
	red := color.RGBA{0xff, 0, 0, 0xff}
	blue := color.RGBA{0, 0, 0xff, 0xff}
	pal := color.Palette{color.Transparent, red, blue}

	full := image.NewPaletted(image.Rect(0, 0, 4, 4), pal)
	for i := range full.Pix {
		full.Pix[i] = 1
	}
	patch := image.NewPaletted(image.Rect(1, 1, 3, 3), pal)
	for i := range patch.Pix {
		patch.Pix[i] = 2
	}
	empty := image.NewPaletted(image.Rect(0, 0, 1, 1), pal)

	g := &gif.GIF{Config: image.Config{Width: 4, Height: 4}, Image: []*image.Paletted{full, patch, empty}}

	t.Run("none keeps pixels", func(t *testing.T) {
		c := newCompositor(g)
		c.add(full, gif.DisposalNone)
		canvas := c.add(patch, gif.DisposalNone)
		assert.Equal(t, blue, canvas.RGBAAt(1, 1))
		assert.Equal(t, red, canvas.RGBAAt(0, 0))
		canvas = c.add(empty, gif.DisposalNone)
		assert.Equal(t, blue, canvas.RGBAAt(2, 2))
	})

	t.Run("background clears the frame area", func(t *testing.T) {
		c := newCompositor(g)
		c.add(full, gif.DisposalNone)
		c.add(patch, gif.DisposalBackground)
		canvas := c.add(empty, gif.DisposalNone)
		assert.Equal(t, color.RGBA{}, canvas.RGBAAt(2, 2))
		assert.Equal(t, red, canvas.RGBAAt(3, 3))
	})

	t.Run("previous restores the canvas", func(t *testing.T) {
		c := newCompositor(g)
		c.add(full, gif.DisposalNone)
		c.add(patch, gif.DisposalPrevious)
		canvas := c.add(empty, gif.DisposalNone)
		assert.Equal(t, red, canvas.RGBAAt(2, 2))
	})
}

func TestToPalettedUniformImage(t *testing.T) {
	m := image.NewRGBA(image.Rect(0, 0, 8, 8))
	pm := toPaletted(m)
	require.NotEmpty(t, pm.Palette)
	assert.Equal(t, m.Bounds(), pm.Bounds())
}
