// Package detect classifies an input file as a still image, an animated
// image or a video by probing its content. File names are never consulted.
package detect

import (
	"image"
	"log/slog"
	"os"

	// Still-image containers understood by the probes and by ImageJob
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ZacxDev/spritemosaic/pkg/types"
)

// VideoProber reports whether a video decoder can open path.
type VideoProber interface {
	IsPlayableVideo(path string) bool
}

// Detector runs the media probes in priority order.
type Detector struct {
	video  VideoProber
	logger *slog.Logger
}

// New returns a Detector that uses video for the final probe.
func New(video VideoProber, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Detector{video: video, logger: logger}
}

// Detect returns the kind of the media at path. The first probe to accept
// the file wins: animated image, then still image, then video.
func (d *Detector) Detect(path string) (types.MediaKind, error) {
	switch {
	case IsAnimated(path):
		d.logger.Debug("media probe matched", "path", path, "kind", types.MediaKindAnimated)
		return types.MediaKindAnimated, nil
	case IsStill(path):
		d.logger.Debug("media probe matched", "path", path, "kind", types.MediaKindImage)
		return types.MediaKindImage, nil
	case d.video != nil && d.video.IsPlayableVideo(path):
		d.logger.Debug("media probe matched", "path", path, "kind", types.MediaKindVideo)
		return types.MediaKindVideo, nil
	}
	return "", errors.Wrapf(types.ErrUnsupportedMedia, "invalid media format: %s", path)
}

// IsAnimated reports whether path holds a GIF container.
func IsAnimated(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	_, format, err := image.DecodeConfig(f)
	return err == nil && format == "gif"
}

// IsStill reports whether path fully decodes as a single raster.
func IsStill(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	_, _, err = image.Decode(f)
	return err == nil
}
