package avdec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/asticode/go-astiav"
)

// ErrUnsupportedSampleFormat is returned when a decoded frame uses a native
// sample format this package cannot convert to its internal layout.
var ErrUnsupportedSampleFormat = errors.New("unsupported sample format")

// AudioFormat is a consumer-facing sample layout: rate and channel count.
// Sample width is fixed internally at signed 16-bit; decode targets support
// one or two channels.
type AudioFormat struct {
	SampleRate int
	Channels   int
}

func (f AudioFormat) String() string {
	return fmt.Sprintf("%d Hz, %d channels", f.SampleRate, f.Channels)
}

// RingBuffer is the consumer side of the audio path. Implementations are
// appended to from decode calls; concurrent producers must coordinate
// externally.
type RingBuffer interface {
	Put(*AudioBuffer)
}

// AudioBuffer holds planar signed 16-bit samples, one plane per channel.
// SetFormat and Resize reuse storage across frames, so a buffer's contents
// are only valid until the next decode call that refills it.
type AudioBuffer struct {
	sampleRate int
	planes     [][]int16
}

// SetFormat adjusts the buffer's rate and channel count, keeping as much
// existing storage as possible.
func (b *AudioBuffer) SetFormat(f AudioFormat) {
	b.sampleRate = f.SampleRate
	if f.Channels < len(b.planes) {
		b.planes = b.planes[:f.Channels]
		return
	}
	for len(b.planes) < f.Channels {
		b.planes = append(b.planes, nil)
	}
}

// Resize sets the per-channel sample count, reusing capacity when it can.
func (b *AudioBuffer) Resize(samples int) {
	for i := range b.planes {
		if cap(b.planes[i]) >= samples {
			b.planes[i] = b.planes[i][:samples]
		} else {
			b.planes[i] = make([]int16, samples)
		}
	}
}

// Format returns the buffer's current rate and channel count.
func (b *AudioBuffer) Format() AudioFormat {
	return AudioFormat{SampleRate: b.sampleRate, Channels: len(b.planes)}
}

// SampleRate returns the buffer's sample rate.
func (b *AudioBuffer) SampleRate() int { return b.sampleRate }

// Channels returns the number of channel planes.
func (b *AudioBuffer) Channels() int { return len(b.planes) }

// Samples returns the per-channel sample count.
func (b *AudioBuffer) Samples() int {
	if len(b.planes) == 0 {
		return 0
	}
	return len(b.planes[0])
}

// Channel returns the samples of one channel plane.
func (b *AudioBuffer) Channel(i int) []int16 { return b.planes[i] }

// convertFloatPlanarToS16 fills the buffer from planar 32-bit float data:
// channel planes laid out back to back, samples*4 bytes each. Values are
// clamped to the signed 16-bit range.
func (b *AudioBuffer) convertFloatPlanarToS16(data []byte, samples, channels int) {
	const planeStride = 4
	for c := 0; c < channels && c < len(b.planes); c++ {
		plane := data[c*samples*planeStride:]
		for i := 0; i < samples; i++ {
			v := math.Float32frombits(binary.LittleEndian.Uint32(plane[i*planeStride:]))
			b.planes[c][i] = clampS16(float64(v) * float64(1<<15))
		}
	}
}

// deinterleave fills the buffer from packed signed 16-bit data, splitting
// interleaved channel samples into planes.
func (b *AudioBuffer) deinterleave(data []byte, samples, channels int) {
	for i := 0; i < samples; i++ {
		for c := 0; c < channels && c < len(b.planes); c++ {
			b.planes[c][i] = int16(binary.LittleEndian.Uint16(data[(i*channels+c)*2:]))
		}
	}
}

// interleaved packs the planes back into interleaved little-endian bytes,
// the layout swresample expects for packed S16 input.
func (b *AudioBuffer) interleaved() []byte {
	samples := b.Samples()
	channels := len(b.planes)
	out := make([]byte, samples*channels*2)
	for i := 0; i < samples; i++ {
		for c := 0; c < channels; c++ {
			binary.LittleEndian.PutUint16(out[(i*channels+c)*2:], uint16(b.planes[c][i]))
		}
	}
	return out
}

func clampS16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// WriteToRingBuffer converts a decoded audio frame into the internal planar
// S16 layout and appends it to rb. The working buffer tracks the frame's
// native rate and the session's channel count; when the native rate differs
// from outFormat's, a resampler is created once and reused for the rest of
// the session.
func (d *Decoder) WriteToRingBuffer(frame *astiav.Frame, rb RingBuffer, outFormat AudioFormat) error {
	d.decBuf.SetFormat(AudioFormat{SampleRate: frame.SampleRate(), Channels: d.channels})
	d.decBuf.Resize(frame.NbSamples())

	// align=1 requests tight packing: plane strides of exactly samples*width
	// bytes, with no 32-sample padding on short final frames.
	data, err := frame.Data().Bytes(1)
	if err != nil {
		return fmt.Errorf("avdec: reading frame samples failed: %w", err)
	}

	switch frame.SampleFormat() {
	case astiav.SampleFormatFltp:
		d.decBuf.convertFloatPlanarToS16(data, frame.NbSamples(), d.channels)
	case astiav.SampleFormatS16:
		d.decBuf.deinterleave(data, frame.NbSamples(), d.channels)
	default:
		return fmt.Errorf("avdec: %w: %s", ErrUnsupportedSampleFormat, frame.SampleFormat())
	}

	if frame.SampleRate() != outFormat.SampleRate {
		if d.resampler == nil {
			d.log.Debug().Str("format", outFormat.String()).Msg("creating audio resampler")
			d.resampler = NewResampler(outFormat)
		}
		d.resampleBuf.SetFormat(AudioFormat{SampleRate: outFormat.SampleRate, Channels: d.channels})
		d.resampleBuf.Resize(frame.NbSamples())
		if err := d.resampler.Resample(&d.decBuf, &d.resampleBuf); err != nil {
			return err
		}
		rb.Put(&d.resampleBuf)
		return nil
	}

	rb.Put(&d.decBuf)
	return nil
}
