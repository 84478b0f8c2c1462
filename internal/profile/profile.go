// Package profile holds the video encode profiles selectable for rendered
// video. Each profile registers itself from init.
package profile

import (
	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"golang.org/x/exp/slices"

	"github.com/ZacxDev/spritemosaic/pkg/types"
)

// Profile defines how processed segments and the final video are encoded
type Profile interface {
	// GetName returns the profile name used on the command line
	GetName() string

	// GetVideoCodec returns the ffmpeg video encoder
	GetVideoCodec() string

	// GetAudioCodec returns the encoder used when the source audio cannot be
	// copied into the container as is
	GetAudioCodec() string

	// GetPixelFormat returns the output pixel format
	GetPixelFormat() string

	// GetEncoderArgs returns encoder specific output options
	GetEncoderArgs() ffmpeg.KwArgs

	// GetOutputFormat returns the container format, e.g. "mp4"
	GetOutputFormat() string
}

var profiles = make(map[string]Profile)

// Register adds a profile to the registry
func Register(p Profile) {
	profiles[p.GetName()] = p
}

// Get returns a profile by name
func Get(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return nil, errors.Wrapf(types.ErrConfiguration, "unsupported encode profile: %s", name)
	}
	return p, nil
}

// GetSupportedProfiles returns the registered profile names in sorted order
func GetSupportedProfiles() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// OutputArgs merges the profile's video settings into a fresh KwArgs value
func OutputArgs(p Profile) ffmpeg.KwArgs {
	args := ffmpeg.KwArgs{
		"c:v":     p.GetVideoCodec(),
		"pix_fmt": p.GetPixelFormat(),
		"f":       p.GetOutputFormat(),
	}
	for k, v := range p.GetEncoderArgs() {
		args[k] = v
	}
	return args
}
