package config

import (
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/ZacxDev/spritemosaic/pkg/types"
)

// JobOptions is the complete, immutable configuration of one render job. It
// is passed by value through every component; nothing reads ambient state.
type JobOptions struct {
	MediaPath string `validate:"required"`

	// OutputPath is the artifact path; empty selects the default path for
	// the detected kind inside OutputDir.
	OutputPath string
	OutputDir  string `validate:"required"`
	ScratchDir string `validate:"required"`

	Resolution   int `validate:"gt=0"`
	HighContrast bool

	Filter      string
	FiltersPath string

	// SpritesPath is the sprite sheet; empty selects the built-in sheet.
	SpritesPath string
	TileWidth   int `validate:"gt=0"`
	TileHeight  int `validate:"gt=0"`

	// Segment is the video segment length in seconds.
	Segment float64 `validate:"gt=0"`
	// Workers bounds concurrent segment workers; 0 means NumCPU-1.
	Workers int    `validate:"gte=0"`
	Profile string `validate:"required"`

	Verbose bool
}

const (
	// Sprite tile size of the shipped sheets
	TileWidth  = 8
	TileHeight = 8

	DefaultResolution = 720
	DefaultSegment    = 5.0
	DefaultProfile    = "h264"

	DefaultScratchDir  = "spritemosaic/temp"
	DefaultOutputDir   = "spritemosaic/output"
	DefaultFiltersPath = "filters.toml"

	// Default artifact names inside OutputDir
	DefaultImageName    = "spritemosaic_image.png"
	DefaultAnimatedName = "spritemosaic_gif.gif"
	DefaultVideoName    = "spritemosaic.mp4"

	// Suffix of the silent video written before audio is re-attached
	NoAudioSuffix = "_NoAudio"
)

var validate = validator.New()

// Validate checks the option invariants. Failures are configuration errors.
func (o JobOptions) Validate() error {
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(types.ErrConfiguration, err.Error())
	}
	return nil
}

// ResolveOutput returns the artifact path for the given media kind.
func (o JobOptions) ResolveOutput(kind types.MediaKind) string {
	if o.OutputPath != "" {
		return o.OutputPath
	}
	switch kind {
	case types.MediaKindImage:
		return filepath.Join(o.OutputDir, DefaultImageName)
	case types.MediaKindAnimated:
		return filepath.Join(o.OutputDir, DefaultAnimatedName)
	default:
		return filepath.Join(o.OutputDir, DefaultVideoName)
	}
}

// NoAudioPath returns the path of the silent intermediate for a video output.
func NoAudioPath(output string) string {
	ext := filepath.Ext(output)
	if ext == "" {
		ext = types.MediaKindVideo.Extension()
	}
	return strings.TrimSuffix(output, filepath.Ext(output)) + NoAudioSuffix + ext
}
