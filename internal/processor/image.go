package processor

import (
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ZacxDev/spritemosaic/internal/config"
	"github.com/ZacxDev/spritemosaic/internal/transcode"
	"github.com/ZacxDev/spritemosaic/pkg/types"
)

// ImageJob renders a still image to a PNG.
type ImageJob struct {
	opts       config.JobOptions
	transcoder *transcode.Transcoder
	logger     *slog.Logger
}

func NewImageJob(opts config.JobOptions, transcoder *transcode.Transcoder, logger *slog.Logger) *ImageJob {
	return &ImageJob{
		opts:       opts,
		transcoder: transcoder,
		logger:     orDiscard(logger),
	}
}

func (j *ImageJob) Run() (string, error) {
	output := j.opts.ResolveOutput(types.MediaKindImage)

	src, err := decodeImage(j.opts.MediaPath)
	if err != nil {
		return "", err
	}
	j.logger.Debug("decoded image", "path", j.opts.MediaPath, "bounds", src.Bounds())

	out, err := j.transcoder.Transcode(src, j.opts.Resolution, j.opts.HighContrast)
	if err != nil {
		return "", err
	}

	err = writeAtomic(output, func(w io.Writer) error {
		return png.Encode(w, out)
	})
	if err != nil {
		return "", errors.Wrapf(types.ErrEncode, "%s: %v", output, err)
	}

	j.logger.Info("image written", "output", output, "width", out.Bounds().Dx(), "height", out.Bounds().Dy())
	return output, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(types.ErrDecode, "%s: %v", path, err)
	}
	defer f.Close()

	m, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(types.ErrDecode, "%s: %v", path, err)
	}
	return m, nil
}
