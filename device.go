package avdec

import (
	"fmt"
	"strconv"
	"time"
)

// Jitter buffer bounds applied to every input. They cap memory growth and
// packet staleness when the source arrives over a jittery transport.
const (
	jitterBufferMaxSize  = 1500 // packets
	jitterBufferMaxDelay = 50 * time.Millisecond
)

// maxAnalyzeDuration extends stream analysis so that detection survives the
// caller and the producer starting asynchronously.
const maxAnalyzeDuration = 30 * time.Second

// DeviceParams describes how to open an input: a locator plus optional
// format and capture hints. The zero value of every optional field means
// "let the demuxer decide".
type DeviceParams struct {
	Input       string  // file path, device name, or stream URL
	Format      string  // input format hint, e.g. "v4l2", "x11grab"; autodetected when empty
	PixelFormat string  // requested capture pixel format
	Width       int     // requested frame width
	Height      int     // requested frame height
	Framerate   float64 // requested capture frame rate
	OffsetX     int     // capture region X offset
	OffsetY     int     // capture region Y offset
	Channel     int     // capture channel selector
	Loop        string  // loop flag passed through to the demuxer
	SDPFlags    string  // SDP handling flags for RTP inputs
}

// options builds the demuxer option set for these params. Entries are only
// emitted when the corresponding parameter is set; the jitter buffer bounds
// and the analysis window are always present.
func (p DeviceParams) options() map[string]string {
	o := make(map[string]string)

	if p.Width != 0 && p.Height != 0 {
		o["video_size"] = fmt.Sprintf("%dx%d", p.Width, p.Height)
	}
	// On Windows, setting a frame rate can make device opening fail, so the
	// option is gated on a capability resolved once at startup.
	if p.Framerate != 0 && framerateOptionSupported {
		o["framerate"] = strconv.FormatFloat(p.Framerate, 'f', -1, 64)
	}
	if p.OffsetX != 0 || p.OffsetY != 0 {
		o["offset_x"] = strconv.Itoa(p.OffsetX)
		o["offset_y"] = strconv.Itoa(p.OffsetY)
	}
	if p.Channel != 0 {
		o["channel"] = strconv.Itoa(p.Channel)
	}
	if p.Loop != "" {
		o["loop"] = p.Loop
	}
	if p.SDPFlags != "" {
		o["sdp_flags"] = p.SDPFlags
	}
	if p.PixelFormat != "" {
		o["pixel_format"] = p.PixelFormat
	}

	o["reorder_queue_size"] = strconv.Itoa(jitterBufferMaxSize)
	o["max_delay"] = strconv.FormatInt(jitterBufferMaxDelay.Microseconds(), 10)
	o["analyzeduration"] = strconv.FormatInt(maxAnalyzeDuration.Microseconds(), 10)

	return o
}
