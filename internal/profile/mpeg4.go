package profile

import ffmpeg "github.com/u2takey/ffmpeg-go"

// MPEG4 produces MPEG-4 Part 2 ("mp4v") video, for players without H.264.
type MPEG4 struct{}

func init() {
	Register(&MPEG4{})
}

func (p *MPEG4) GetName() string {
	return "mpeg4"
}

func (p *MPEG4) GetVideoCodec() string {
	return "mpeg4"
}

func (p *MPEG4) GetAudioCodec() string {
	return "aac"
}

func (p *MPEG4) GetPixelFormat() string {
	return "yuv420p"
}

func (p *MPEG4) GetEncoderArgs() ffmpeg.KwArgs {
	return ffmpeg.KwArgs{
		"q:v":      2,
		"tag:v":    "mp4v",
		"movflags": "+faststart",
	}
}

func (p *MPEG4) GetOutputFormat() string {
	return "mp4"
}
