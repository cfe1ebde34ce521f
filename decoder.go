package avdec

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/rs/zerolog"
)

// Setup-fatal errors. After any of these the session is not decodable until
// setup is re-run successfully.
var (
	ErrNoStream                = errors.New("no matching stream")
	ErrUnsupportedCodec        = errors.New("unsupported codec")
	ErrCodecOpen               = errors.New("could not open codec")
	ErrUnsupportedChannelCount = errors.New("unsupported channel count")
)

// AccelPolicy is queried once per video setup for whether hardware decode
// is currently permitted. It is read-only from the decoder's side; callers
// typically flip it after a hardware failure forced a software restart.
type AccelPolicy interface {
	DecodingAccelerated() bool
}

// Config configures a Decoder session.
type Config struct {
	// EmulateRate paces decoded frames against wall-clock time using the
	// stream's presentation timestamps. Enable for file playback, never for
	// live sources.
	EmulateRate bool
	// EnableAccel requests hardware-accelerated video decode. It is still
	// subject to Policy at open time.
	EnableAccel bool
	// Policy gates hardware decode process-wide. nil permits it.
	Policy AccelPolicy
	// Logger receives diagnostics. nil disables logging.
	Logger *zerolog.Logger
}

// Decoder owns one demuxed input and a codec session for the single stream
// selected at setup time. It is not safe for concurrent use.
type Decoder struct {
	log zerolog.Logger

	inputCtx    *astiav.FormatContext
	interrupter *astiav.IOInterrupter
	interruptFn func() bool

	streamIndex int
	stream      *astiav.Stream
	codec       *astiav.Codec
	decCtx      *astiav.CodecContext
	pkt         *astiav.Packet

	accelEnabled bool
	policy       AccelPolicy
	accel        *HardwareAccel

	emulateRate bool
	startTime   time.Time

	channels    int
	decBuf      AudioBuffer
	resampleBuf AudioBuffer
	resampler   *Resampler

	closer *astikit.Closer
}

// NewDecoder creates an idle session. Call OpenInput, then SetupAudio or
// SetupVideo, before decoding.
func NewDecoder(cfg Config) *Decoder {
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	d := &Decoder{
		log:          log,
		streamIndex:  -1,
		accelEnabled: cfg.EnableAccel,
		policy:       cfg.Policy,
		emulateRate:  cfg.EmulateRate,
		closer:       astikit.NewCloser(),
	}

	// The interrupter outlives the format context that polls it, so it is
	// registered with the closer first.
	d.interrupter = astiav.NewIOInterrupter()
	d.closer.Add(d.interrupter.Free)

	d.inputCtx = astiav.AllocFormatContext()
	d.inputCtx.SetIOInterrupter(d.interrupter)
	d.closer.Add(d.inputCtx.Free)

	d.pkt = astiav.AllocPacket()
	d.closer.Add(d.pkt.Free)

	return d
}

// OpenInput resolves the format hint, applies the option set derived from
// params, and opens the input for demuxing.
func (d *Decoder) OpenInput(params DeviceParams) error {
	var iformat *astiav.InputFormat
	if params.Format != "" {
		if iformat = astiav.FindInputFormat(params.Format); iformat == nil {
			d.log.Warn().Str("format", params.Format).Msg("cannot find input format, autodetecting")
		}
	}

	dict := astiav.NewDictionary()
	defer dict.Free()
	for k, v := range params.options() {
		if err := dict.Set(k, v, astiav.NewDictionaryFlags()); err != nil {
			return fmt.Errorf("avdec: setting option %s=%s failed: %w", k, v, err)
		}
	}

	// If a prior hardware attempt in this process already fell back to
	// software, do not re-enable acceleration here.
	d.accelEnabled = d.accelEnabled && d.accelPermitted()

	d.log.Debug().
		Str("input", params.Input).
		Str("format", params.Format).
		Str("pixel_format", params.PixelFormat).
		Int("width", params.Width).
		Int("height", params.Height).
		Float64("framerate", params.Framerate).
		Msg("opening input")

	if err := d.inputCtx.OpenInput(params.Input, iformat, dict); err != nil {
		d.log.Error().Err(err).Msg("opening input failed")
		return fmt.Errorf("avdec: opening input %q failed: %w", params.Input, err)
	}
	d.closer.Add(d.inputCtx.CloseInput)
	return nil
}

// SetInterruptCallback installs fn as the abort check for blocking demuxer
// I/O: when fn returns true the pending and all subsequent reads abort.
// A nil fn clears the callback and resumes I/O.
func (d *Decoder) SetInterruptCallback(fn func() bool) {
	d.interruptFn = fn
	if fn == nil {
		d.interrupter.Resume()
	}
}

// Interrupt aborts an in-flight blocking read immediately. Reads stay
// aborted until the interrupt callback is cleared.
func (d *Decoder) Interrupt() {
	d.interrupter.Interrupt()
}

func (d *Decoder) checkInterrupt() {
	if d.interruptFn != nil && d.interruptFn() {
		d.interrupter.Interrupt()
	}
}

// SetIOContext substitutes the demuxer's byte source with an externally
// supplied I/O handle, for in-memory or custom-transport inputs. Must be
// called before OpenInput.
func (d *Decoder) SetIOContext(ioc *astiav.IOContext) {
	d.inputCtx.SetPb(ioc)
	d.inputCtx.SetFlags(d.inputCtx.Flags().Add(astiav.FormatContextFlagCustomIo))
}

// SetupAudio discovers streams, selects the first audio stream, and opens
// a decoder asked to conform to the caller's target format rather than the
// stream's native one. Only mono and stereo targets are supported.
func (d *Decoder) SetupAudio(target AudioFormat) error {
	if target.Channels < 1 || target.Channels > 2 {
		return fmt.Errorf("avdec: %w: %d", ErrUnsupportedChannelCount, target.Channels)
	}
	d.channels = target.Channels
	return d.setup(astiav.MediaTypeAudio, func(cc *astiav.CodecContext) {
		cc.SetChannelLayout(channelLayout(target.Channels))
		cc.SetSampleRate(target.SampleRate)
		d.log.Debug().
			Str("codec", d.codec.Name()).
			Str("format", target.String()).
			Msg("audio decoding")
	})
}

// SetupVideo discovers streams, selects the first video stream, and opens a
// decoder, attaching hardware acceleration when it is both requested and
// permitted by the policy.
func (d *Decoder) SetupVideo() error {
	return d.setup(astiav.MediaTypeVideo, func(cc *astiav.CodecContext) {
		d.log.Debug().Str("codec", d.codec.Name()).Msg("video decoding")

		if d.accelEnabled {
			accel, err := newHardwareAccel(d.log, d.codec, cc)
			if err != nil {
				d.log.Warn().Err(err).Msg("hardware acceleration unavailable, decoding in software")
			} else {
				d.accel = accel
			}
		} else if d.accelPermitted() {
			d.log.Warn().Msg("hardware accelerated decoding disabled because of previous failure")
		} else {
			d.log.Warn().Msg("hardware accelerated decoding disabled by user preference")
		}
	})
}

// setup is the shared session skeleton: close the previous codec context,
// discover streams, select the first of the wanted kind, resolve a decoder,
// configure it, and open it.
func (d *Decoder) setup(mediaType astiav.MediaType, configure func(*astiav.CodecContext)) error {
	if d.decCtx != nil {
		d.decCtx.Free()
		d.decCtx = nil
	}

	d.log.Debug().Msg("finding stream info")
	if err := d.inputCtx.FindStreamInfo(nil); err != nil {
		// An upstream quirk can surface stream-info failure as a bare -1;
		// remap it to the generic invalid-data error.
		var averr astiav.Error
		if mediaType == astiav.MediaTypeVideo && errors.As(err, &averr) && int(averr) == -1 {
			err = astiav.ErrInvaliddata
		}
		d.log.Error().Err(err).Msg("could not find stream info")
		return fmt.Errorf("avdec: finding stream info failed: %w", err)
	}

	d.streamIndex = -1
	for _, s := range d.inputCtx.Streams() {
		if s.CodecParameters().MediaType() == mediaType {
			d.streamIndex = s.Index()
			d.stream = s
			break
		}
	}
	if d.streamIndex == -1 {
		d.log.Error().Str("media_type", mediaType.String()).Msg("could not find stream")
		return fmt.Errorf("avdec: %w: %s", ErrNoStream, mediaType)
	}

	cp := d.stream.CodecParameters()
	d.codec = astiav.FindDecoder(cp.CodecID())
	if d.codec == nil {
		d.log.Error().Str("codec_id", cp.CodecID().Name()).Msg("unsupported codec")
		return fmt.Errorf("avdec: %w: %s", ErrUnsupportedCodec, cp.CodecID().Name())
	}

	d.decCtx = astiav.AllocCodecContext(d.codec)
	if err := cp.ToCodecContext(d.decCtx); err != nil {
		return fmt.Errorf("avdec: copying codec parameters failed: %w", err)
	}
	d.decCtx.SetThreadCount(threadCount(runtime.NumCPU()))

	configure(d.decCtx)

	if d.emulateRate {
		d.log.Debug().Msg("using framerate emulation")
		d.startTime = time.Now()
	}

	if err := d.decCtx.Open(d.codec, nil); err != nil {
		d.log.Error().Err(err).Msg("could not open codec")
		return fmt.Errorf("avdec: %w: %s", ErrCodecOpen, err)
	}
	return nil
}

func (d *Decoder) accelPermitted() bool {
	return d.policy == nil || d.policy.DecodingAccelerated()
}

// EnableAccel requests or revokes hardware acceleration for subsequent
// setups. Disabling also detaches the current adapter so a rebuilt session
// starts purely in software.
func (d *Decoder) EnableAccel(enable bool) {
	d.accelEnabled = enable
	if !enable && d.accel != nil {
		d.accel.Close()
		d.accel = nil
	}
}

// threadCount derives codec parallelism from host concurrency: half the
// hardware threads, clamped to [1, 8].
func threadCount(hostConcurrency int) int {
	n := hostConcurrency / 2
	if n < 1 {
		n = 1
	}
	if n > 8 {
		n = 8
	}
	return n
}

// channelLayout maps a channel count to a codec channel layout.
func channelLayout(channels int) astiav.ChannelLayout {
	if channels == 1 {
		return astiav.ChannelLayoutMono
	}
	return astiav.ChannelLayoutStereo
}

// Width returns the decoded frame width. Valid after a successful video setup.
func (d *Decoder) Width() int {
	if d.decCtx == nil {
		return 0
	}
	return d.decCtx.Width()
}

// Height returns the decoded frame height. Valid after a successful video setup.
func (d *Decoder) Height() int {
	if d.decCtx == nil {
		return 0
	}
	return d.decCtx.Height()
}

// DecoderName returns the display name of the resolved decoder.
func (d *Decoder) DecoderName() string {
	if d.codec == nil {
		return ""
	}
	return d.codec.Name()
}

// FrameRate returns the selected stream's average frame rate.
func (d *Decoder) FrameRate() astiav.Rational {
	if d.stream == nil {
		return astiav.NewRational(0, 1)
	}
	return d.stream.AvgFrameRate()
}

// TimeBase returns the selected stream's time base.
func (d *Decoder) TimeBase() astiav.Rational {
	if d.stream == nil {
		return astiav.NewRational(0, 1)
	}
	return d.stream.TimeBase()
}

// PixelFormat returns the session's pixel format, normalized the same way
// decoded frames are.
func (d *Decoder) PixelFormat() astiav.PixelFormat {
	if d.decCtx == nil {
		return astiav.PixelFormatNone
	}
	return NormalizePixelFormat(d.decCtx.PixelFormat())
}

// Close releases the codec, the acceleration adapter, the resampler, and
// the demuxer. Safe to call on a partially initialized session.
func (d *Decoder) Close() error {
	if d.decCtx != nil {
		d.decCtx.Free()
		d.decCtx = nil
	}
	if d.accel != nil {
		d.accel.Close()
		d.accel = nil
	}
	if d.resampler != nil {
		d.resampler.Close()
		d.resampler = nil
	}
	return d.closer.Close()
}
