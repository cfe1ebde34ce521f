//go:build windows

package avdec

// On Windows, setting a frame rate while opening a capture device can make
// the open fail, so dshow is left to pick the rate itself (the highest,
// according to experimentation).
const framerateOptionSupported = false
