package domain

import "errors"

var (
	// ErrOpen is returned when a media file cannot be demuxed or decoded at all.
	// Terminal for the worker that hit it
	ErrOpen = errors.New("cannot open media source")

	// ErrDecode is returned for a single frame that failed to decode; transient
	ErrDecode = errors.New("cannot decode frame")

	// ErrMissingFile is returned when the audio file vanished between load and play
	ErrMissingFile = errors.New("media file missing")

	// ErrUnsupportedSeek is returned when the format or duration does not allow positioning
	ErrUnsupportedSeek = errors.New("seeking not supported")

	// ErrLifecycle is returned for an illegal worker state transition
	ErrLifecycle = errors.New("invalid worker lifecycle transition")

	// ErrNotPlaying is returned by transport commands when no track is loaded
	ErrNotPlaying = errors.New("nothing is playing")
)
