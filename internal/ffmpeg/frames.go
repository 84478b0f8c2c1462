package ffmpeg

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/ZacxDev/spritemosaic/internal/profile"
	"github.com/ZacxDev/spritemosaic/pkg/types"
)

// FrameFunc renders one decoded luminance frame. The frame's pixel buffer is
// reused for the next frame, so it must not be retained.
type FrameFunc func(frame *image.Gray) (*image.RGBA, error)

// yuv420p needs even dimensions. Source segments are cropped so no black
// edge can be sampled as a cell; rendered frames are padded so no tile row
// is cut short.
const (
	evenCrop = "crop=trunc(iw/2)*2:trunc(ih/2)*2"
	evenPad  = "pad=ceil(iw/2)*2:ceil(ih/2)*2"
)

// TranscodeFrames decodes every frame of inputPath as luminance, renders it
// with fn and encodes the results to outputPath at the input's frame rate.
// Frames are streamed through ffmpeg pipes, so at most one decoded frame is
// held at a time. It returns the number of frames written. Failures to read
// the input are decode errors, failures to write outputPath encode errors.
func (p *Processor) TranscodeFrames(inputPath, outputPath string, fn FrameFunc) (int, error) {
	meta, err := p.GetVideoMetadata(inputPath)
	if err != nil {
		return 0, errors.Wrapf(types.ErrDecode, "%s: %v", inputPath, err)
	}
	p.logger.Debug("transcoding frames", "input", inputPath, "source", describe(meta))

	dec := p.startDecoder(inputPath)

	var enc *encoder
	fail := func(class error, err error) (int, error) {
		dec.abort(err)
		if enc != nil {
			enc.abort(err)
		}
		return 0, errors.Wrapf(class, "%s: %v", inputPath, err)
	}

	frame := image.NewGray(image.Rect(0, 0, meta.Width, meta.Height))
	count := 0
	for {
		if _, err := io.ReadFull(dec.r, frame.Pix); err != nil {
			if err == io.EOF {
				break
			}
			return fail(types.ErrDecode, err)
		}

		out, err := fn(frame)
		if err != nil {
			return fail(types.ErrDecode, errors.Wrapf(err, "frame %d", count))
		}

		if enc == nil {
			enc = p.startEncoder(outputPath, out.Bounds(), meta.FrameRate)
		} else if out.Bounds() != enc.size {
			return fail(types.ErrEncode, errors.Errorf("frame %d is %v, stream is %v", count, out.Bounds(), enc.size))
		}

		if _, err := enc.w.Write(rgbaBytes(out)); err != nil {
			err = enc.wait(err)
			enc = nil
			return fail(types.ErrEncode, err)
		}
		count++
	}

	if err := dec.wait(); err != nil {
		if enc != nil {
			enc.abort(err)
		}
		return 0, errors.Wrapf(types.ErrDecode, "%s: %v", inputPath, err)
	}
	if enc == nil {
		return 0, errors.Wrapf(types.ErrDecode, "%s: no frames decoded", inputPath)
	}
	if err := enc.close(); err != nil {
		return 0, errors.Wrapf(types.ErrEncode, "%s: %v", outputPath, err)
	}
	return count, nil
}

type decoder struct {
	r      *io.PipeReader
	done   chan error
	stderr bytes.Buffer
}

func (p *Processor) startDecoder(inputPath string) *decoder {
	r, w := io.Pipe()
	d := &decoder{r: r, done: make(chan error, 1)}

	stream := ffmpeg.Input(inputPath, ffmpeg.KwArgs{"noautorotate": ""}).
		Output("pipe:", ffmpeg.KwArgs{
			"f":       "rawvideo",
			"pix_fmt": "gray",
			"threads": p.threads,
		})
	p.logger.Debug("running ffmpeg", "op", "decode frames", "command", stream.String())

	go func() {
		err := stream.WithOutput(w).WithErrorOutput(&d.stderr).Run()
		if err != nil {
			err = errors.Wrapf(err, "decode failed: %s", tail(d.stderr.String(), 5))
		}
		// A nil error hands the reader a clean EOF
		w.CloseWithError(err)
		d.done <- err
	}()
	return d
}

func (d *decoder) wait() error {
	return <-d.done
}

func (d *decoder) abort(err error) {
	d.r.CloseWithError(err)
	<-d.done
}

type encoder struct {
	w      *io.PipeWriter
	size   image.Rectangle
	done   chan error
	stderr bytes.Buffer
}

func (p *Processor) startEncoder(outputPath string, size image.Rectangle, frameRate string) *encoder {
	r, w := io.Pipe()
	e := &encoder{w: w, size: size, done: make(chan error, 1)}

	kwargs := profile.OutputArgs(p.profile)
	kwargs["vf"] = evenPad
	kwargs["threads"] = p.threads

	stream := ffmpeg.Input("pipe:", ffmpeg.KwArgs{
		"f":         "rawvideo",
		"pix_fmt":   "rgba",
		"s":         fmt.Sprintf("%dx%d", size.Dx(), size.Dy()),
		"framerate": frameRate,
	}).Output(outputPath, kwargs).OverWriteOutput()
	p.logger.Debug("running ffmpeg", "op", "encode frames", "command", stream.String())

	go func() {
		err := stream.WithInput(r).WithErrorOutput(&e.stderr).Run()
		if err != nil {
			err = errors.Wrapf(err, "encode failed: %s", tail(e.stderr.String(), 5))
		}
		// Unblocks pending writes if ffmpeg exited early
		r.CloseWithError(err)
		e.done <- err
	}()
	return e
}

// close flushes the last frame and waits for the encoder.
func (e *encoder) close() error {
	e.w.Close()
	return <-e.done
}

// wait returns the encoder's own error in preference to the pipe error that
// surfaced it.
func (e *encoder) wait(pipeErr error) error {
	e.w.CloseWithError(pipeErr)
	if err := <-e.done; err != nil {
		return err
	}
	return pipeErr
}

func (e *encoder) abort(err error) {
	e.w.CloseWithError(err)
	<-e.done
}

// rgbaBytes returns the tightly packed pixels of m.
func rgbaBytes(m *image.RGBA) []byte {
	b := m.Bounds()
	rowLen := b.Dx() * 4
	if m.Stride == rowLen && b.Min == (image.Point{}) {
		return m.Pix[:rowLen*b.Dy()]
	}
	buf := make([]byte, 0, rowLen*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := m.PixOffset(b.Min.X, y)
		buf = append(buf, m.Pix[off:off+rowLen]...)
	}
	return buf
}

// writeConcatList writes a concat demuxer list for parts into the directory
// of the first part, so the list stays with the intermediates rather than
// beside outputPath.
func writeConcatList(parts []string, outputPath string) (string, error) {
	var sb strings.Builder
	for _, part := range parts {
		abs, err := filepath.Abs(part)
		if err != nil {
			return "", errors.WithStack(err)
		}
		sb.WriteString("file '")
		sb.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		sb.WriteString("'\n")
	}

	listFile := filepath.Join(filepath.Dir(parts[0]), filepath.Base(outputPath)+".txt")
	if err := os.WriteFile(listFile, []byte(sb.String()), 0o644); err != nil {
		return "", errors.Wrap(err, "write concat list")
	}
	return listFile, nil
}

func removeQuietly(path string) {
	_ = os.Remove(path)
}
