package playback

import "fmt"

// Action is what happens when the current track ends
type Action int

const (
	// ActionRepeat replays the current track from the start
	ActionRepeat Action = iota
	// ActionShuffle plays a random other track of the playlist
	ActionShuffle
	// ActionNext plays the following track
	ActionNext
	// ActionWrap restarts the playlist from its first track
	ActionWrap
	// ActionStop ends playback
	ActionStop
)

func (a Action) String() string {
	switch a {
	case ActionRepeat:
		return "repeat"
	case ActionShuffle:
		return "shuffle"
	case ActionNext:
		return "next"
	case ActionWrap:
		return "wrap"
	case ActionStop:
		return "stop"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Flags are the user toggles that drive auto-advance
type Flags struct {
	LoopTrack    bool
	Shuffle      bool
	LoopPlaylist bool
}

// NextAction picks the end-of-track transition. Priority:
// track loop, shuffle, next in order, playlist loop, stop.
// others is the number of playlist tracks other than the current one;
// shuffle without another track falls through to sequential order.
func NextAction(flags Flags, index, length, others int) Action {
	if flags.LoopTrack {
		return ActionRepeat
	}
	if flags.Shuffle && others > 0 {
		return ActionShuffle
	}
	if index+1 < length {
		return ActionNext
	}
	if flags.LoopPlaylist && length > 0 {
		return ActionWrap
	}
	return ActionStop
}
