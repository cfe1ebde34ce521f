package avdec

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/rs/zerolog"
)

var errNoHardwareConfig = errors.New("decoder has no hardware device config")

// HardwareAccel wraps a codec session with a hardware-backed decode path.
// It records failures independently of the software codec path so the
// decode loop can request a software restart instead of reporting a
// permanent decode error. The owning Decoder controls its lifetime.
type HardwareAccel struct {
	log       zerolog.Logger
	deviceCtx *astiav.HardwareDeviceContext
	devType   astiav.HardwareDeviceType
	hwPixFmt  astiav.PixelFormat
	failed    bool
}

// newHardwareAccel picks the decoder's first hardware device config,
// creates a device context for it, and attaches both the context and a
// pixel format callback to cc. The callback marks the adapter failed when
// the codec stops offering the hardware format mid-stream.
func newHardwareAccel(log zerolog.Logger, codec *astiav.Codec, cc *astiav.CodecContext) (*HardwareAccel, error) {
	a := &HardwareAccel{
		log:      log,
		devType:  astiav.HardwareDeviceTypeNone,
		hwPixFmt: astiav.PixelFormatNone,
	}

	for _, hc := range codec.HardwareConfigs() {
		if hc.MethodFlags().Has(astiav.CodecHardwareConfigMethodFlagHwDeviceCtx) {
			a.devType = hc.HardwareDeviceType()
			a.hwPixFmt = hc.PixelFormat()
			break
		}
	}
	if a.hwPixFmt == astiav.PixelFormatNone {
		return nil, fmt.Errorf("avdec: %w: %s", errNoHardwareConfig, codec.Name())
	}

	deviceCtx, err := astiav.CreateHardwareDeviceContext(a.devType, "", nil, 0)
	if err != nil {
		return nil, fmt.Errorf("avdec: creating %s device context failed: %w", a.devType, err)
	}
	a.deviceCtx = deviceCtx

	cc.SetHardwareDeviceContext(a.deviceCtx)
	cc.SetPixelFormatCallback(func(pfs []astiav.PixelFormat) astiav.PixelFormat {
		for _, pf := range pfs {
			if pf == a.hwPixFmt {
				return pf
			}
		}
		a.log.Error().Str("device", a.devType.String()).Msg("hardware pixel format no longer offered")
		a.failed = true
		return astiav.PixelFormatNone
	})

	log.Debug().Str("device", a.devType.String()).Str("codec", codec.Name()).Msg("hardware decoding enabled")
	return a, nil
}

// Failed reports whether the hardware path has recorded a failure.
func (a *HardwareAccel) Failed() bool {
	return a.failed
}

// ExtractData downloads the decoded surface into f, replacing its hardware
// reference with software-addressable planes. Frames already in a software
// format pass through untouched.
func (a *HardwareAccel) ExtractData(f *astiav.Frame) error {
	if f.PixelFormat() != a.hwPixFmt {
		return nil
	}

	sw := astiav.AllocFrame()
	defer sw.Free()
	if err := f.TransferHardwareData(sw); err != nil {
		a.failed = true
		return fmt.Errorf("avdec: transferring hardware frame failed: %w", err)
	}
	sw.SetPts(f.Pts())

	f.Unref()
	if err := f.Ref(sw); err != nil {
		a.failed = true
		return fmt.Errorf("avdec: referencing downloaded frame failed: %w", err)
	}
	return nil
}

// Close frees the hardware device context.
func (a *HardwareAccel) Close() {
	if a.deviceCtx != nil {
		a.deviceCtx.Free()
		a.deviceCtx = nil
	}
}
