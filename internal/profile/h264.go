package profile

import ffmpeg "github.com/u2takey/ffmpeg-go"

type H264 struct{}

func init() {
	Register(&H264{})
}

func (p *H264) GetName() string {
	return "h264"
}

func (p *H264) GetVideoCodec() string {
	return "libx264"
}

func (p *H264) GetAudioCodec() string {
	return "aac"
}

func (p *H264) GetPixelFormat() string {
	return "yuv420p"
}

func (p *H264) GetEncoderArgs() ffmpeg.KwArgs {
	return ffmpeg.KwArgs{
		"preset":    "medium",
		"crf":       18,
		"profile:v": "high",
		"movflags":  "+faststart",
	}
}

func (p *H264) GetOutputFormat() string {
	return "mp4"
}
