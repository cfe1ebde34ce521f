package avdec

import "github.com/asticode/go-astiav"

// NormalizePixelFormat maps the deprecated full-range JPEG YUV variants to
// their standard-range counterparts and leaves every other format alone.
// Downstream color handling assumes the standard set, so this runs on every
// finished video frame.
// https://ffmpeg.org/pipermail/ffmpeg-user/2014-February/020152.html
func NormalizePixelFormat(pf astiav.PixelFormat) astiav.PixelFormat {
	switch pf {
	case astiav.PixelFormatYuvj420P:
		return astiav.PixelFormatYuv420P
	case astiav.PixelFormatYuvj422P:
		return astiav.PixelFormatYuv422P
	case astiav.PixelFormatYuvj444P:
		return astiav.PixelFormatYuv444P
	case astiav.PixelFormatYuvj440P:
		return astiav.PixelFormatYuv440P
	default:
		return pf
	}
}
