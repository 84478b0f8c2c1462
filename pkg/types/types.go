package types

// MediaKind is the detected class of an input file.
type MediaKind string

const (
	MediaKindImage    MediaKind = "image"
	MediaKindAnimated MediaKind = "animated"
	MediaKindVideo    MediaKind = "video"
)

// Extension returns the file extension of the artifact produced for the kind.
func (k MediaKind) Extension() string {
	switch k {
	case MediaKindImage:
		return ".png"
	case MediaKindAnimated:
		return ".gif"
	case MediaKindVideo:
		return ".mp4"
	default:
		return ""
	}
}
