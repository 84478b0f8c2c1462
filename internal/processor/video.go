package processor

import (
	"image"
	"log/slog"
	"math"
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"

	"github.com/ZacxDev/spritemosaic/internal/config"
	"github.com/ZacxDev/spritemosaic/internal/transcode"
	"github.com/ZacxDev/spritemosaic/internal/workdir"
	"github.com/ZacxDev/spritemosaic/pkg/types"
)

// Segment is a time slice of the source video.
type Segment struct {
	Seq      int
	Start    float64
	Duration float64
}

// segmentEpsilon absorbs float noise in probed durations, so a 10.0000001s
// source does not produce a trailing empty segment.
const segmentEpsilon = 1e-3

// PlanSegments cuts [0, total) into consecutive slices of length seconds.
// The last slice may be shorter.
func PlanSegments(total, length float64) []Segment {
	if total <= 0 || length <= 0 {
		return nil
	}

	var segments []Segment
	for start := 0.0; total-start > segmentEpsilon; start += length {
		segments = append(segments, Segment{
			Seq:      len(segments),
			Start:    start,
			Duration: math.Min(length, total-start),
		})
	}
	return segments
}

// Parallelism returns the number of segments transcoded per wave. Zero
// workers leaves one CPU to the orchestrating goroutine.
func Parallelism(workers int) int {
	if workers > 0 {
		return workers
	}
	return max(1, runtime.NumCPU()-1)
}

// VideoJob transcodes a video in waves. Each wave cuts up to Parallelism
// segments, transcodes them concurrently and folds the results into one
// fragment. The fragments are joined into a silent video and the source
// audio is muxed back in.
type VideoJob struct {
	opts       config.JobOptions
	tool       VideoTool
	transcoder *transcode.Transcoder
	dir        *workdir.Dir
	logger     *slog.Logger

	progress Progress
	mu       sync.Mutex
	done     int
	total    int
}

func NewVideoJob(opts config.JobOptions, tool VideoTool, transcoder *transcode.Transcoder, dir *workdir.Dir, logger *slog.Logger) *VideoJob {
	return &VideoJob{
		opts:       opts,
		tool:       tool,
		transcoder: transcoder,
		dir:        dir,
		logger:     orDiscard(logger),
	}
}

// OnProgress reports transcoded segments.
func (j *VideoJob) OnProgress(fn Progress) {
	j.progress = fn
}

func (j *VideoJob) Run() (string, error) {
	output := j.opts.ResolveOutput(types.MediaKindVideo)
	ext := types.MediaKindVideo.Extension()

	meta, err := j.tool.GetVideoMetadata(j.opts.MediaPath)
	if err != nil {
		return "", errors.Wrapf(types.ErrDecode, "%s: %v", j.opts.MediaPath, err)
	}

	segments := PlanSegments(meta.Duration, j.opts.Segment)
	if len(segments) == 0 {
		return "", errors.Wrapf(types.ErrDecode, "%s: source has no duration", j.opts.MediaPath)
	}

	p := Parallelism(j.opts.Workers)
	j.total = len(segments)
	j.logger.Info("transcoding video",
		"duration", meta.Duration,
		"segments", len(segments),
		"parallelism", p,
	)

	var fragments []string
	for start := 0; start < len(segments); start += p {
		wave := segments[start:min(start+p, len(segments))]
		fragment, err := j.runWave(len(fragments), wave, ext)
		if err != nil {
			return "", err
		}
		fragments = append(fragments, fragment)
	}

	silent := config.NoAudioPath(output)
	if err := ensureOutputDir(silent); err != nil {
		return "", errors.Wrapf(types.ErrEncode, "%s: %v", silent, err)
	}
	if err := j.tool.Concat(fragments, silent); err != nil {
		return "", errors.Wrapf(types.ErrEncode, "%s: %v", silent, err)
	}
	for _, f := range fragments {
		removeQuietly(f)
	}

	if err := j.attachAudio(silent, output); err != nil {
		return "", err
	}

	j.logger.Info("video written", "output", output)
	return output, nil
}

// runWave cuts, transcodes and folds one wave into fragment n.
func (j *VideoJob) runWave(n int, wave []Segment, ext string) (string, error) {
	for _, seg := range wave {
		path := j.dir.SegmentPath(seg.Seq, ext)
		if err := j.tool.CutSegment(j.opts.MediaPath, path, seg.Start, seg.Duration); err != nil {
			return "", errors.Wrapf(types.ErrDecode, "segment %d: %v", seg.Seq, err)
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, len(wave))
	for i, seg := range wave {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = j.transcodeSegment(seg, ext)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return "", err
		}
	}

	processed, err := j.dir.List(workdir.ProcessedPrefix)
	if err != nil {
		return "", err
	}
	if len(processed) != len(wave) {
		return "", errors.Wrapf(types.ErrEncode, "wave %d: expected %d processed segments, found %d", n, len(wave), len(processed))
	}

	fragment := j.dir.FragmentPath(n, ext)
	if err := j.tool.Concat(processed, fragment); err != nil {
		return "", errors.Wrapf(types.ErrEncode, "fragment %d: %v", n, err)
	}
	for _, path := range processed {
		removeQuietly(path)
	}

	j.logger.Debug("wave folded", "fragment", n, "segments", len(wave))
	return fragment, nil
}

func (j *VideoJob) transcodeSegment(seg Segment, ext string) error {
	in := j.dir.SegmentPath(seg.Seq, ext)
	out := j.dir.ProcessedPath(seg.Seq, ext)

	frames, err := j.tool.TranscodeFrames(in, out, func(frame *image.Gray) (*image.RGBA, error) {
		return j.transcoder.Transcode(frame, j.opts.Resolution, j.opts.HighContrast)
	})
	if err != nil {
		return errors.Wrapf(err, "segment %d", seg.Seq)
	}
	if err := os.Remove(in); err != nil {
		return errors.Wrapf(err, "segment %d", seg.Seq)
	}

	j.logger.Debug("segment transcoded", "segment", seg.Seq, "start", seg.Start, "frames", frames)
	j.report()
	return nil
}

func (j *VideoJob) report() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.done++
	if j.progress != nil {
		j.progress(j.done, j.total)
	}
}

// attachAudio produces output from the silent video. Without a source audio
// track the silent video becomes the output as is.
func (j *VideoJob) attachAudio(silent, output string) error {
	partial := partialPath(output)
	attached, err := j.tool.AttachAudio(silent, j.opts.MediaPath, partial)
	if err != nil {
		removeQuietly(partial)
		return errors.Wrapf(types.ErrEncode, "%s: %v", output, err)
	}

	if !attached {
		j.logger.Debug("source has no audio track", "path", j.opts.MediaPath)
		if err := commit(silent, output); err != nil {
			return errors.Wrapf(types.ErrEncode, "%s: %v", output, err)
		}
		return nil
	}

	if err := commit(partial, output); err != nil {
		return errors.Wrapf(types.ErrEncode, "%s: %v", output, err)
	}
	removeQuietly(silent)
	return nil
}
