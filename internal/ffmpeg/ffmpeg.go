package ffmpeg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/ZacxDev/spritemosaic/internal/profile"
)

func init() {
	// Commands are logged through the processor's logger instead
	ffmpeg.LogCompiledCommand = false
}

// VideoMetadata contains metadata about a video file
type VideoMetadata struct {
	Duration  float64
	Width     int
	Height    int
	Codec     string
	FrameRate string // as reported by ffprobe, e.g. "30000/1001"
	HasAudio  bool
}

// FPS returns the frame rate as a number, or 0 if it is unknown.
func (m *VideoMetadata) FPS() float64 {
	return parseFrameRate(m.FrameRate)
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Duration     string `json:"duration"`
	NbFrames     string `json:"nb_frames"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Processor wraps FFmpeg functionality
type Processor struct {
	profile profile.Profile
	threads int
	logger  *slog.Logger
}

// NewProcessor creates a new FFmpeg processor encoding with prof. workers is
// the number of processors expected to run at once and sizes the encoder
// thread count.
func NewProcessor(prof profile.Profile, workers int, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{
		profile: prof,
		threads: GetOptimalThreadCount(workers),
		logger:  logger,
	}
}

// GetVideoMetadata retrieves metadata about a video file
func (p *Processor) GetVideoMetadata(inputPath string) (*VideoMetadata, error) {
	probe, err := ffmpeg.Probe(inputPath)
	if err != nil {
		return nil, errors.Wrapf(err, "error probing video %s", inputPath)
	}
	return parseProbe(probe)
}

func parseProbe(probe string) (*VideoMetadata, error) {
	var data probeOutput
	if err := json.Unmarshal([]byte(probe), &data); err != nil {
		return nil, errors.WithStack(err)
	}

	if len(data.Streams) == 0 {
		return nil, errors.New("no streams found in video")
	}

	var videoStream *probeStream
	hasAudio := false
	for i := range data.Streams {
		s := &data.Streams[i]
		switch s.CodecType {
		case "video":
			if videoStream == nil {
				videoStream = s
			}
		case "audio":
			hasAudio = true
		}
	}

	if videoStream == nil {
		return nil, errors.New("no video stream found")
	}

	frameRate := videoStream.RFrameRate
	if parseFrameRate(frameRate) == 0 {
		frameRate = videoStream.AvgFrameRate
	}

	var duration float64

	// First try video stream duration
	if d, err := strconv.ParseFloat(strings.TrimSpace(videoStream.Duration), 64); err == nil {
		duration = d
	}

	// If stream duration is not available, try format duration
	if duration == 0 {
		if d, err := strconv.ParseFloat(strings.TrimSpace(data.Format.Duration), 64); err == nil {
			duration = d
		}
	}

	// If still no duration found, try calculating from frames and frame rate
	if duration == 0 {
		if frames, err := strconv.ParseFloat(videoStream.NbFrames, 64); err == nil {
			if fps := parseFrameRate(frameRate); fps > 0 {
				duration = frames / fps
			}
		}
	}

	if duration == 0 {
		return nil, errors.New("could not determine video duration")
	}

	if videoStream.Width <= 0 || videoStream.Height <= 0 {
		return nil, errors.New("could not determine video dimensions")
	}

	return &VideoMetadata{
		Duration:  duration,
		Width:     videoStream.Width,
		Height:    videoStream.Height,
		Codec:     videoStream.CodecName,
		FrameRate: frameRate,
		HasAudio:  hasAudio,
	}, nil
}

// IsPlayableVideo reports whether ffprobe can open path and finds a decodable
// video stream in it. Every failure reads as false.
func (p *Processor) IsPlayableVideo(path string) bool {
	m, err := p.GetVideoMetadata(path)
	if err != nil {
		p.logger.Debug("video probe rejected input", "path", path, "error", err)
		return false
	}
	return m.FPS() > 0
}

// CutSegment re-encodes the [start, start+duration) slice of inputPath to
// outputPath without audio. Odd frame sizes lose their last row or column.
func (p *Processor) CutSegment(inputPath, outputPath string, start, duration float64) error {
	kwargs := profile.OutputArgs(p.profile)
	kwargs["vf"] = evenCrop
	kwargs["an"] = ""
	kwargs["threads"] = p.threads

	stream := ffmpeg.Input(inputPath, ffmpeg.KwArgs{
		"ss": formatSeconds(start),
		"t":  formatSeconds(duration),
	}).Output(outputPath, kwargs)

	return p.run(stream, "cut segment")
}

// Concat joins parts, in the given order, into outputPath with the concat
// demuxer. All parts must share codec parameters.
func (p *Processor) Concat(parts []string, outputPath string) error {
	if len(parts) == 0 {
		return errors.New("no videos to concatenate")
	}

	listFile, err := writeConcatList(parts, outputPath)
	if err != nil {
		return err
	}
	defer removeQuietly(listFile)

	kwargs := ffmpeg.KwArgs{
		"c": "copy",
		"f": p.profile.GetOutputFormat(),
	}
	stream := ffmpeg.Input(listFile, ffmpeg.KwArgs{
		"f":    "concat",
		"safe": 0,
	}).Output(outputPath, kwargs)

	return p.run(stream, "concatenate")
}

// AttachAudio muxes the video of videoPath with the audio of audioSource
// into outputPath. It returns false, without writing anything, when
// audioSource has no audio track.
func (p *Processor) AttachAudio(videoPath, audioSource, outputPath string) (bool, error) {
	meta, err := p.GetVideoMetadata(audioSource)
	if err != nil {
		return false, err
	}
	if !meta.HasAudio {
		return false, nil
	}

	mux := func(audioCodec string) *ffmpeg.Stream {
		video := ffmpeg.Input(videoPath)
		audio := ffmpeg.Input(audioSource)
		return ffmpeg.Output([]*ffmpeg.Stream{video.Video(), audio.Audio()}, outputPath, ffmpeg.KwArgs{
			"c:v":      "copy",
			"c:a":      audioCodec,
			"shortest": "",
			"f":        p.profile.GetOutputFormat(),
		})
	}

	err = p.run(mux("copy"), "attach audio")
	if err == nil {
		return true, nil
	}

	p.logger.Debug("audio copy failed, re-encoding", "codec", p.profile.GetAudioCodec(), "error", err)
	if err := p.run(mux(p.profile.GetAudioCodec()), "attach audio"); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Processor) run(stream *ffmpeg.Stream, op string) error {
	var stderr bytes.Buffer
	p.logger.Debug("running ffmpeg", "op", op, "command", stream.String())

	err := stream.OverWriteOutput().WithErrorOutput(&stderr).Run()
	if err != nil {
		return errors.Wrapf(err, "%s failed: %s", op, tail(stderr.String(), 5))
	}
	return nil
}

// GetOptimalThreadCount splits 75% of the available cores between workers
// concurrent encoders.
func GetOptimalThreadCount(workers int) int {
	if workers < 1 {
		workers = 1
	}
	cpuCount := runtime.NumCPU()
	return int(math.Max(1, float64(cpuCount)*0.75/float64(workers)))
}

func parseFrameRate(rate string) float64 {
	nums := strings.Split(strings.TrimSpace(rate), "/")
	switch len(nums) {
	case 1:
		v, err := strconv.ParseFloat(nums[0], 64)
		if err != nil {
			return 0
		}
		return v
	case 2:
		num, err1 := strconv.ParseFloat(nums[0], 64)
		den, err2 := strconv.ParseFloat(nums[1], 64)
		if err1 != nil || err2 != nil || den == 0 {
			return 0
		}
		return num / den
	default:
		return 0
	}
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 6, 64)
}

// tail returns the last n non-empty lines of s.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

func describe(m *VideoMetadata) string {
	return fmt.Sprintf("%dx%d %s @ %s fps, %.2fs", m.Width, m.Height, m.Codec, m.FrameRate, m.Duration)
}
