package avdec

import (
	"time"

	"github.com/asticode/go-astiav"
)

// emulateFrameRate suspends the calling thread until the frame's target
// wall-clock time when rate emulation is enabled. Frames without a valid
// presentation timestamp are never paced.
func (d *Decoder) emulateFrameRate(pts int64) {
	if !d.emulateRate || pts == astiav.NoPtsValue {
		return
	}
	if wait := emulationDelay(time.Now(), d.startTime, pts, d.stream.StartTime(), d.stream.TimeBase()); wait > 0 {
		time.Sleep(wait)
	}
}

// emulationDelay computes how long delivery of a frame must be held back:
// the frame's stream-relative presentation time is added to the captured
// emulation start, and the remainder until that wall-clock target is
// returned. A target at or before now yields zero, never a negative wait.
func emulationDelay(now, start time.Time, pts, streamStart int64, timeBase astiav.Rational) time.Duration {
	if streamStart == astiav.NoPtsValue {
		streamStart = 0
	}
	frameTime := time.Duration(float64(pts-streamStart) * timeBase.Float64() * float64(time.Second))
	if wait := start.Add(frameTime).Sub(now); wait > 0 {
		return wait
	}
	return 0
}
