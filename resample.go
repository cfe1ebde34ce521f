package avdec

import (
	"fmt"

	"github.com/asticode/go-astiav"
)

// Resampler converts planar S16 audio buffers to a fixed target sample
// rate through libswresample. It is created lazily on the first rate
// mismatch and reused for the session's lifetime; the conversion context
// configures itself from the first frame pair it sees.
type Resampler struct {
	out AudioFormat
	ctx *astiav.SoftwareResampleContext
	src *astiav.Frame
	dst *astiav.Frame
}

// NewResampler creates a resampler targeting out's sample rate.
func NewResampler(out AudioFormat) *Resampler {
	return &Resampler{
		out: out,
		ctx: astiav.AllocSoftwareResampleContext(),
		src: astiav.AllocFrame(),
		dst: astiav.AllocFrame(),
	}
}

// Resample converts in to the target rate and stores the result in out,
// which is resized to the converted sample count.
func (r *Resampler) Resample(in, out *AudioBuffer) error {
	r.src.Unref()
	r.src.SetChannelLayout(channelLayout(in.Channels()))
	r.src.SetSampleFormat(astiav.SampleFormatS16)
	r.src.SetSampleRate(in.SampleRate())
	r.src.SetNbSamples(in.Samples())
	if err := r.src.AllocBuffer(0); err != nil {
		return fmt.Errorf("avdec: allocating resampler input failed: %w", err)
	}
	// align=1: the interleaved buffer is tightly packed, without the padding
	// the default alignment would expect for off-alignment sample counts.
	if err := r.src.Data().SetBytes(in.interleaved(), 1); err != nil {
		return fmt.Errorf("avdec: loading resampler input failed: %w", err)
	}

	r.dst.Unref()
	r.dst.SetChannelLayout(channelLayout(out.Channels()))
	r.dst.SetSampleFormat(astiav.SampleFormatS16)
	r.dst.SetSampleRate(r.out.SampleRate)

	if err := r.ctx.ConvertFrame(r.src, r.dst); err != nil {
		return fmt.Errorf("avdec: resampling failed: %w", err)
	}

	data, err := r.dst.Data().Bytes(1)
	if err != nil {
		return fmt.Errorf("avdec: reading resampled data failed: %w", err)
	}
	out.Resize(r.dst.NbSamples())
	out.deinterleave(data, r.dst.NbSamples(), out.Channels())
	return nil
}

// Close frees the conversion context and its working frames.
func (r *Resampler) Close() {
	if r.ctx != nil {
		r.ctx.Free()
		r.ctx = nil
	}
	if r.src != nil {
		r.src.Free()
		r.src = nil
	}
	if r.dst != nil {
		r.dst.Free()
		r.dst = nil
	}
}
