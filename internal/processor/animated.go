package processor

import (
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"log/slog"
	"os"

	"github.com/ericpauley/go-quantize/quantize"
	"github.com/pkg/errors"

	"github.com/ZacxDev/spritemosaic/internal/config"
	"github.com/ZacxDev/spritemosaic/internal/transcode"
	"github.com/ZacxDev/spritemosaic/pkg/types"
)

// AnimatedJob renders every frame of a GIF and writes a GIF with the same
// frame count and per-frame delays, looping forever.
type AnimatedJob struct {
	opts       config.JobOptions
	transcoder *transcode.Transcoder
	logger     *slog.Logger
	progress   Progress
}

func NewAnimatedJob(opts config.JobOptions, transcoder *transcode.Transcoder, logger *slog.Logger) *AnimatedJob {
	return &AnimatedJob{
		opts:       opts,
		transcoder: transcoder,
		logger:     orDiscard(logger),
	}
}

// OnProgress reports rendered frames.
func (j *AnimatedJob) OnProgress(fn Progress) {
	j.progress = fn
}

func (j *AnimatedJob) Run() (string, error) {
	output := j.opts.ResolveOutput(types.MediaKindAnimated)

	src, err := decodeGIF(j.opts.MediaPath)
	if err != nil {
		return "", err
	}
	j.logger.Debug("decoded animation", "path", j.opts.MediaPath, "frames", len(src.Image))

	out := &gif.GIF{
		Image:     make([]*image.Paletted, 0, len(src.Image)),
		Delay:     make([]int, 0, len(src.Image)),
		LoopCount: 0,
	}

	c := newCompositor(src)
	for i, frame := range src.Image {
		canvas := c.add(frame, disposalAt(src, i))

		rendered, err := j.transcoder.Transcode(canvas, j.opts.Resolution, j.opts.HighContrast)
		if err != nil {
			return "", errors.Wrapf(err, "frame %d", i)
		}

		out.Image = append(out.Image, toPaletted(rendered))
		out.Delay = append(out.Delay, delayAt(src, i))

		if j.progress != nil {
			j.progress(i+1, len(src.Image))
		}
	}

	err = writeAtomic(output, func(w io.Writer) error {
		return gif.EncodeAll(w, out)
	})
	if err != nil {
		return "", errors.Wrapf(types.ErrEncode, "%s: %v", output, err)
	}

	j.logger.Info("animation written", "output", output, "frames", len(out.Image))
	return output, nil
}

func decodeGIF(path string) (*gif.GIF, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(types.ErrDecode, "%s: %v", path, err)
	}
	defer f.Close()

	g, err := gif.DecodeAll(f)
	if err != nil {
		return nil, errors.Wrapf(types.ErrDecode, "%s: %v", path, err)
	}
	if len(g.Image) == 0 {
		return nil, errors.Wrapf(types.ErrDecode, "%s: no frames", path)
	}
	return g, nil
}

func disposalAt(g *gif.GIF, i int) byte {
	if i < len(g.Disposal) {
		return g.Disposal[i]
	}
	return gif.DisposalNone
}

func delayAt(g *gif.GIF, i int) int {
	if i < len(g.Delay) {
		return g.Delay[i]
	}
	return 0
}

// compositor replays GIF frames onto a full-size canvas. Frames may cover
// only part of the logical screen, and each frame's disposal method decides
// what the canvas looks like before the next one is drawn.
type compositor struct {
	canvas *image.RGBA
	saved  *image.RGBA

	last         image.Rectangle
	lastDisposal byte
}

func newCompositor(g *gif.GIF) *compositor {
	screen := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if screen.Empty() {
		for _, frame := range g.Image {
			screen = screen.Union(frame.Bounds())
		}
	}
	return &compositor{canvas: image.NewRGBA(screen)}
}

// add draws frame and returns the canvas. The canvas is reused by the next
// call.
func (c *compositor) add(frame *image.Paletted, disposal byte) *image.RGBA {
	switch c.lastDisposal {
	case gif.DisposalBackground:
		draw.Draw(c.canvas, c.last, image.Transparent, image.Point{}, draw.Src)
	case gif.DisposalPrevious:
		if c.saved != nil {
			draw.Draw(c.canvas, c.last, c.saved, c.last.Min, draw.Src)
		}
	}

	if disposal == gif.DisposalPrevious {
		if c.saved == nil {
			c.saved = image.NewRGBA(c.canvas.Bounds())
		}
		copy(c.saved.Pix, c.canvas.Pix)
	}

	b := frame.Bounds()
	draw.Draw(c.canvas, b, frame, b.Min, draw.Over)
	c.last, c.lastDisposal = b, disposal
	return c.canvas
}

// toPaletted reduces m to at most 256 colours.
func toPaletted(m *image.RGBA) *image.Paletted {
	b := m.Bounds()
	q := quantize.MedianCutQuantizer{}
	p := q.Quantize(make(color.Palette, 0, 256), m)
	if len(p) == 0 {
		p = color.Palette{color.Black}
	}

	pm := image.NewPaletted(b, p)
	draw.Draw(pm, b, m, b.Min, draw.Src)
	return pm
}
