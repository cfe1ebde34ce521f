package avdec

import (
	"errors"

	"github.com/asticode/go-astiav"
)

// DecodeVideo runs one decode attempt: read a packet, route it to the
// selected stream's codec, and try to retrieve a decoded frame into dst.
// On StatusFrameFinished dst holds a pixel-normalized frame; with an active
// acceleration adapter its data has been downloaded from the hardware
// surface. Rate emulation, when enabled, has already been applied.
func (d *Decoder) DecodeVideo(dst *astiav.Frame) Status {
	return d.decode(dst, true)
}

// DecodeAudio runs one decode attempt for the selected audio stream. On
// StatusFrameFinished the caller is expected to hand dst to
// WriteToRingBuffer.
func (d *Decoder) DecodeAudio(dst *astiav.Frame) Status {
	return d.decode(dst, false)
}

func (d *Decoder) decode(dst *astiav.Frame, video bool) Status {
	if d.decCtx == nil || d.streamIndex < 0 {
		d.log.Error().Msg("decode called before a successful setup")
		return StatusDecodeError
	}

	d.checkInterrupt()
	if err := d.inputCtx.ReadFrame(d.pkt); err != nil {
		switch {
		case errors.Is(err, astiav.ErrEagain):
			return StatusSuccess
		case errors.Is(err, astiav.ErrEof):
			return StatusEOF
		default:
			d.log.Error().Err(err).Msg("couldn't read frame")
			return StatusReadError
		}
	}
	defer d.pkt.Unref()

	if d.pkt.StreamIndex() != d.streamIndex {
		return StatusSuccess
	}

	if err := d.decCtx.SendPacket(d.pkt); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			return StatusSuccess
		}
		return d.classifyCodecError(err, video, false)
	}

	if err := d.decCtx.ReceiveFrame(dst); err != nil {
		if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
			return StatusSuccess
		}
		return d.classifyCodecError(err, video, false)
	}

	if video {
		dst.SetPixelFormat(NormalizePixelFormat(dst.PixelFormat()))
		if d.accel != nil {
			if d.accel.Failed() {
				return StatusRestartRequired
			}
			if err := d.accel.ExtractData(dst); err != nil {
				d.log.Error().Err(err).Msg("extracting accelerated frame failed")
				return StatusRestartRequired
			}
		}
	}

	d.emulateFrameRate(dst.Pts())
	return StatusFrameFinished
}

// Flush drains the codec with an end-of-stream submission and retrieves a
// buffered frame, if any. The stream is closing, so acceleration failures
// are not escalated to a restart here.
func (d *Decoder) Flush(dst *astiav.Frame) Status {
	if d.decCtx == nil {
		d.log.Error().Msg("flush called before a successful setup")
		return StatusDecodeError
	}

	if err := d.decCtx.SendPacket(nil); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			return StatusSuccess
		}
		return d.classifyCodecError(err, true, true)
	}

	if err := d.decCtx.ReceiveFrame(dst); err != nil {
		if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
			return StatusSuccess
		}
		return d.classifyCodecError(err, true, true)
	}

	dst.SetPixelFormat(NormalizePixelFormat(dst.PixelFormat()))
	if d.accel != nil && !d.accel.Failed() {
		if err := d.accel.ExtractData(dst); err != nil {
			d.log.Warn().Err(err).Msg("extracting accelerated frame failed during flush")
		}
	}
	return StatusFrameFinished
}

// classifyCodecError maps a codec failure to a status. A hardware session
// that has recorded a failure turns decode errors into RestartRequired so
// the caller rebuilds in software instead of treating the stream as broken;
// that escalation never applies to software sessions or to flush.
func (d *Decoder) classifyCodecError(err error, video, flushing bool) Status {
	if video && !flushing && d.accel != nil && d.accel.Failed() {
		return StatusRestartRequired
	}
	d.log.Error().Err(err).Msg("decoding failed")
	return StatusDecodeError
}
