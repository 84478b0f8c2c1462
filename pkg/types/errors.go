package types

import "github.com/pkg/errors"

// Failure classes. Components wrap one of these with context, so callers
// test for the class with errors.Is.
var (
	// ErrConfiguration covers unknown filter names, unreadable sprite sheets
	// and invalid job options. Raised before any media is touched.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnsupportedMedia is returned when none of the media probes accept
	// the input.
	ErrUnsupportedMedia = errors.New("unsupported media")

	// ErrDecode is returned when a frame or segment cannot be decoded.
	ErrDecode = errors.New("decode error")

	// ErrEncode is returned when an artifact cannot be written.
	ErrEncode = errors.New("encode error")
)
