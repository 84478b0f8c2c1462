package detect

import (
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZacxDev/spritemosaic/pkg/types"
)

type fakeProber struct {
	playable bool
	calls    int
}

func (f *fakeProber) IsPlayableVideo(string) bool {
	f.calls++
	return f.playable
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 4, 4))))
}

func writeJPEG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, image.NewGray(image.Rect(0, 0, 4, 4)), nil))
}

func writeGIF(t *testing.T, path string, frames int) {
	t.Helper()
	g := &gif.GIF{}
	for i := 0; i < frames; i++ {
		m := image.NewPaletted(image.Rect(0, 0, 4, 4), palette.Plan9)
		m.Set(0, 0, color.Gray{Y: uint8(40 * i)})
		g.Image = append(g.Image, m)
		g.Delay = append(g.Delay, 10)
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, gif.EncodeAll(f, g))
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()

	misleadingPNG := filepath.Join(dir, "clip.mp4")
	writePNG(t, misleadingPNG)
	jpegNoExt := filepath.Join(dir, "photo")
	writeJPEG(t, jpegNoExt)
	animated := filepath.Join(dir, "still.png")
	writeGIF(t, animated, 3)
	singleGIF := filepath.Join(dir, "one.gif")
	writeGIF(t, singleGIF, 1)
	garbage := filepath.Join(dir, "movie.gif")
	require.NoError(t, os.WriteFile(garbage, []byte("not really media"), 0o644))

	tests := []struct {
		name     string
		path     string
		playable bool
		want     types.MediaKind
		wantErr  error
	}{
		{"png with video extension", misleadingPNG, true, types.MediaKindImage, nil},
		{"jpeg without extension", jpegNoExt, false, types.MediaKindImage, nil},
		{"gif with png extension", animated, false, types.MediaKindAnimated, nil},
		{"single frame gif", singleGIF, false, types.MediaKindAnimated, nil},
		{"video probe", garbage, true, types.MediaKindVideo, nil},
		{"nothing matches", garbage, false, "", types.ErrUnsupportedMedia},
		{"missing file", filepath.Join(dir, "missing"), false, "", types.ErrUnsupportedMedia},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(&fakeProber{playable: tt.playable}, nil)
			got, err := d.Detect(tt.path)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetect_ImageProbesRunBeforeVideo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.avi")
	writePNG(t, path)

	p := &fakeProber{playable: true}
	kind, err := New(p, nil).Detect(path)
	require.NoError(t, err)
	assert.Equal(t, types.MediaKindImage, kind)
	assert.Zero(t, p.calls)
}

func TestIsStill_TruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "full.png")
	writePNG(t, path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	cut := filepath.Join(dir, "cut.png")
	require.NoError(t, os.WriteFile(cut, b[:len(b)/2], 0o644))

	assert.True(t, IsStill(path))
	assert.False(t, IsStill(cut))
}
