// Package spritemosaic is the entry point shared by every front end: it
// classifies the input, builds the sprite palette and runs the matching job.
package spritemosaic

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ZacxDev/spritemosaic/internal/config"
	"github.com/ZacxDev/spritemosaic/internal/detect"
	"github.com/ZacxDev/spritemosaic/internal/ffmpeg"
	"github.com/ZacxDev/spritemosaic/internal/logging"
	"github.com/ZacxDev/spritemosaic/internal/processor"
	"github.com/ZacxDev/spritemosaic/internal/profile"
	"github.com/ZacxDev/spritemosaic/internal/sprite"
	"github.com/ZacxDev/spritemosaic/internal/transcode"
	"github.com/ZacxDev/spritemosaic/internal/workdir"
	"github.com/ZacxDev/spritemosaic/pkg/types"
)

// Options configures one render.
type Options = config.JobOptions

// Progress receives finished and total work units: frames for animations,
// segments for video.
type Progress = processor.Progress

// Result describes a finished render.
type Result struct {
	RunID   string
	Kind    types.MediaKind
	Output  string
	Elapsed time.Duration
}

// Renderer runs render jobs.
type Renderer struct {
	logger   *slog.Logger
	progress Progress
}

// New returns a Renderer logging to logger. A nil logger discards.
func New(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Renderer{logger: logger}
}

// OnProgress sets the progress callback for subsequent runs.
func (r *Renderer) OnProgress(fn Progress) {
	r.progress = fn
}

// Run renders opts.MediaPath with a discarding logger.
func Run(opts Options) (*Result, error) {
	return New(nil).Run(opts)
}

// Run validates opts, prepares the palette and scratch directory, detects
// the media kind and renders it. Configuration problems are reported before
// the media file is opened.
func (r *Renderer) Run(opts Options) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	filter, err := opts.ResolveFilter()
	if err != nil {
		return nil, err
	}
	sheet, err := sprite.LoadSheet(opts.SpritesPath)
	if err != nil {
		return nil, err
	}
	palette, err := sprite.Build(sheet, opts.TileWidth, opts.TileHeight, filter)
	if err != nil {
		return nil, err
	}
	prof, err := profile.Get(opts.Profile)
	if err != nil {
		return nil, err
	}
	logger.Debug("palette ready", "tiles", palette.Len(), "filter", opts.Filter, "profile", prof.GetName())

	dir, err := workdir.Open(opts.ScratchDir)
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	tool := ffmpeg.NewProcessor(prof, processor.Parallelism(opts.Workers), logger)
	kind, err := detect.New(tool, logger).Detect(opts.MediaPath)
	if err != nil {
		return nil, err
	}
	logger.Info("rendering", "media", opts.MediaPath, "kind", kind, "resolution", opts.Resolution)

	job := r.newJob(kind, opts, tool, transcode.New(palette), dir, logger)
	output, err := job.Run()
	if err != nil {
		return nil, errors.Wrapf(err, "render %s", kind)
	}

	elapsed := time.Since(start)
	logger.Info("execution finished", "output", output, "elapsed", elapsed.Round(time.Millisecond))

	return &Result{
		RunID:   runID,
		Kind:    kind,
		Output:  output,
		Elapsed: elapsed,
	}, nil
}

func (r *Renderer) newJob(kind types.MediaKind, opts Options, tool processor.VideoTool, tr *transcode.Transcoder, dir *workdir.Dir, logger *slog.Logger) processor.Job {
	switch kind {
	case types.MediaKindAnimated:
		job := processor.NewAnimatedJob(opts, tr, logger)
		job.OnProgress(r.progress)
		return job
	case types.MediaKindVideo:
		job := processor.NewVideoJob(opts, tool, tr, dir, logger)
		job.OnProgress(r.progress)
		return job
	default:
		return processor.NewImageJob(opts, tr, logger)
	}
}

// ListFilters returns the filter names defined in the table at path.
func ListFilters(path string) ([]string, error) {
	table, err := config.LoadFilters(path)
	if err != nil {
		return nil, err
	}
	return table.Names(), nil
}

// SupportedProfiles returns the names of the video encode profiles.
func SupportedProfiles() []string {
	return profile.GetSupportedProfiles()
}
