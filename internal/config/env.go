package config

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
)

// Defaults holds the environment-provided defaults that CLI flags override.
type Defaults struct {
	ScratchDir  string  `env:"SPRITEMOSAIC_SCRATCH_DIR, default=spritemosaic/temp"`
	OutputDir   string  `env:"SPRITEMOSAIC_OUTPUT_DIR, default=spritemosaic/output"`
	FiltersPath string  `env:"SPRITEMOSAIC_FILTERS, default=filters.toml"`
	SpritesPath string  `env:"SPRITEMOSAIC_SPRITES"`
	Segment     float64 `env:"SPRITEMOSAIC_SEGMENT_SECONDS, default=5"`
	Workers     int     `env:"SPRITEMOSAIC_WORKERS, default=0"`
	Profile     string  `env:"SPRITEMOSAIC_PROFILE, default=h264"`
	LogLevel    string  `env:"SPRITEMOSAIC_LOG_LEVEL, default=info"`
	LogFormat   string  `env:"SPRITEMOSAIC_LOG_FORMAT, default=auto"`
}

// LoadDefaults reads Defaults from the environment.
func LoadDefaults(ctx context.Context) (*Defaults, error) {
	d := &Defaults{}
	if err := envconfig.Process(ctx, d); err != nil {
		return nil, errors.Wrapf(ErrEnvironment, "%v", err)
	}
	return d, nil
}

// ErrEnvironment is returned when an environment variable cannot be parsed.
var ErrEnvironment = errors.New("config: invalid environment")

// JobOptions seeds a JobOptions value from the defaults.
func (d *Defaults) JobOptions() JobOptions {
	return JobOptions{
		OutputDir:   d.OutputDir,
		ScratchDir:  d.ScratchDir,
		Resolution:  DefaultResolution,
		FiltersPath: d.FiltersPath,
		SpritesPath: d.SpritesPath,
		TileWidth:   TileWidth,
		TileHeight:  TileHeight,
		Segment:     d.Segment,
		Workers:     d.Workers,
		Profile:     d.Profile,
	}
}
