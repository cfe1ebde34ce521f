//go:build !windows

package avdec

// framerateOptionSupported reports whether the "framerate" demuxer option
// may be set when opening a capture device. On Windows it can break device
// opening, so dshow is left to pick the rate itself.
const framerateOptionSupported = true
