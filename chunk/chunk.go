package chunk

import (
	"github.com/jsphweid/pianoscribe/model"
)

// Schedule slides a fixed-size window of windowFrames across a feature
// sequence of numFrames with stride windowFrames-overlapFrames. The final
// window is right-aligned so the sequence end is covered exactly once.
// Sequences shorter than one window yield a single shrunk window.
//
// Pure function: the caller slices the feature sequence itself.
func Schedule(numFrames, windowFrames, overlapFrames int) []model.Window {
	if numFrames <= 0 || windowFrames <= 0 {
		return nil
	}
	if overlapFrames < 0 {
		overlapFrames = 0
	}
	if overlapFrames >= windowFrames {
		overlapFrames = windowFrames / 2
	}

	if numFrames <= windowFrames {
		return []model.Window{{Index: 0, Start: 0, Length: numFrames}}
	}

	stride := windowFrames - overlapFrames
	var windows []model.Window
	for start := 0; start+windowFrames < numFrames; start += stride {
		windows = append(windows, model.Window{
			Index:  len(windows),
			Start:  start,
			Length: windowFrames,
		})
	}

	// right-aligned final window; may overlap its predecessor by more than
	// overlapFrames but never leaves a gap
	windows = append(windows, model.Window{
		Index:  len(windows),
		Start:  numFrames - windowFrames,
		Length: windowFrames,
	})
	return windows
}
