// Package processor runs the three render jobs: still images, animated GIFs
// and segmented video.
package processor

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ZacxDev/spritemosaic/internal/ffmpeg"
	"github.com/ZacxDev/spritemosaic/internal/logging"
)

// Job renders one input to its output artifact and returns the artifact path.
type Job interface {
	Run() (string, error)
}

// VideoTool is the video codec surface VideoJob drives.
type VideoTool interface {
	GetVideoMetadata(path string) (*ffmpeg.VideoMetadata, error)
	CutSegment(inputPath, outputPath string, start, duration float64) error
	TranscodeFrames(inputPath, outputPath string, fn ffmpeg.FrameFunc) (int, error)
	Concat(parts []string, outputPath string) error
	AttachAudio(videoPath, audioSource, outputPath string) (bool, error)
}

// Progress is called after each unit of work with the number of finished
// and total units. Calls are serialized.
type Progress func(done, total int)

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return logging.Discard()
	}
	return logger
}

func ensureOutputDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return errors.Wrapf(os.MkdirAll(dir, 0o755), "create output directory %s", dir)
}

// partialPath returns a hidden sibling of path, keeping its extension so
// encoders can still infer the container.
func partialPath(path string) string {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, "."+stem+"."+uuid.NewString()+ext)
}

// commit moves a finished partial file over path.
func commit(partial, path string) error {
	if err := os.Rename(partial, path); err != nil {
		removeQuietly(partial)
		return errors.Wrapf(err, "move %s to %s", partial, path)
	}
	return nil
}

// writeAtomic writes path through a partial sibling, so path either holds
// the complete artifact or is left untouched.
func writeAtomic(path string, write func(w io.Writer) error) error {
	if err := ensureOutputDir(path); err != nil {
		return err
	}

	partial := partialPath(path)
	f, err := os.Create(partial)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := write(f); err != nil {
		f.Close()
		removeQuietly(partial)
		return err
	}
	if err := f.Close(); err != nil {
		removeQuietly(partial)
		return errors.WithStack(err)
	}
	return commit(partial, path)
}

func removeQuietly(path string) {
	_ = os.Remove(path)
}
