package avdec

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func TestThreadCount(t *testing.T) {
	tests := []struct {
		hostConcurrency int
		want            int
	}{
		{0, 1},
		{1, 1},
		{2, 1},
		{4, 2},
		{8, 4},
		{16, 8},
		{64, 8},
		{128, 8},
	}

	for _, tt := range tests {
		if got := threadCount(tt.hostConcurrency); got != tt.want {
			t.Errorf("threadCount(%d) = %d, want %d", tt.hostConcurrency, got, tt.want)
		}
	}
}

func TestChannelLayout(t *testing.T) {
	tests := []struct {
		channels int
		want     int
	}{
		{1, 1},
		{2, 2},
		{6, 2}, // anything beyond stereo falls back to stereo
	}

	for _, tt := range tests {
		if got := channelLayout(tt.channels).Channels(); got != tt.want {
			t.Errorf("channelLayout(%d).Channels() = %d, want %d", tt.channels, got, tt.want)
		}
	}
}

func TestDecoder_DecodeBeforeSetup(t *testing.T) {
	d := NewDecoder(Config{})
	defer d.Close()

	frame := astiav.AllocFrame()
	defer frame.Free()

	if got := d.DecodeAudio(frame); got != StatusDecodeError {
		t.Errorf("DecodeAudio() before setup = %v, want %v", got, StatusDecodeError)
	}
	if got := d.DecodeVideo(frame); got != StatusDecodeError {
		t.Errorf("DecodeVideo() before setup = %v, want %v", got, StatusDecodeError)
	}
	if got := d.Flush(frame); got != StatusDecodeError {
		t.Errorf("Flush() before setup = %v, want %v", got, StatusDecodeError)
	}
}

// writeToneWAV synthesizes a mono 16-bit sine tone for decode tests.
func writeToneWAV(t *testing.T, path string, sampleRate int, seconds float64) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating fixture: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	n := int(float64(sampleRate) * seconds)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, n),
		SourceBitDepth: 16,
	}
	for i := 0; i < n; i++ {
		buf.Data[i] = int(0.4 * math.MaxInt16 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("closing fixture: %v", err)
	}
}

func openToneDecoder(t *testing.T, sampleRate int, target AudioFormat) *Decoder {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tone.wav")
	writeToneWAV(t, path, sampleRate, 0.5)

	d := NewDecoder(Config{})
	if err := d.OpenInput(DeviceParams{Input: path}); err != nil {
		d.Close()
		t.Fatalf("OpenInput() = %v", err)
	}
	if err := d.SetupAudio(target); err != nil {
		d.Close()
		t.Fatalf("SetupAudio() = %v", err)
	}
	return d
}

func TestDecoder_AudioFileToEOF(t *testing.T) {
	target := AudioFormat{SampleRate: 48000, Channels: 1}
	d := openToneDecoder(t, 48000, target)
	defer d.Close()

	if name := d.DecoderName(); name == "" {
		t.Error("DecoderName() is empty after setup")
	}
	if tb := d.TimeBase(); tb.Den() == 0 {
		t.Errorf("TimeBase() = %v, want a valid rational", tb)
	}

	frame := astiav.AllocFrame()
	defer frame.Free()
	rb := NewPCMRingBuffer(target, 48000*4)

	var finished, decodeErrors int
loop:
	for i := 0; i < 100000; i++ {
		switch st := d.DecodeAudio(frame); st {
		case StatusFrameFinished:
			finished++
			if err := d.WriteToRingBuffer(frame, rb, target); err != nil {
				t.Fatalf("WriteToRingBuffer() = %v", err)
			}
			frame.Unref()
		case StatusDecodeError:
			decodeErrors++
		case StatusEOF:
			break loop
		case StatusSuccess:
		default:
			t.Fatalf("DecodeAudio() = %v", st)
		}
	}

	if finished == 0 {
		t.Error("no frame finished before EOF")
	}
	if decodeErrors != 0 {
		t.Errorf("decode errors = %d, want 0", decodeErrors)
	}
	if rb.Len() == 0 {
		t.Error("ring buffer is empty after decoding")
	}
	if d.resampler != nil {
		t.Error("resampler was created although rates match")
	}
}

func TestDecoder_ForeignStreamPacketsDiscarded(t *testing.T) {
	target := AudioFormat{SampleRate: 48000, Channels: 1}
	d := openToneDecoder(t, 48000, target)
	defer d.Close()

	// Route packets away from the codec by pretending another stream was
	// selected: they must be discarded as Success, never decoded.
	d.streamIndex = 42

	frame := astiav.AllocFrame()
	defer frame.Free()

	for i := 0; i < 5; i++ {
		if st := d.DecodeAudio(frame); st != StatusSuccess && st != StatusEOF {
			t.Fatalf("DecodeAudio() with foreign stream index = %v, want Success or EOF", st)
		}
	}
}

func TestDecoder_ResamplerCreatedOnceOnRateMismatch(t *testing.T) {
	target := AudioFormat{SampleRate: 16000, Channels: 1}
	d := openToneDecoder(t, 48000, target)
	defer d.Close()

	frame := astiav.AllocFrame()
	defer frame.Free()
	rb := NewPCMRingBuffer(target, 16000*4)

	var first *Resampler
	var finished int
loop:
	for i := 0; i < 100000; i++ {
		switch st := d.DecodeAudio(frame); st {
		case StatusFrameFinished:
			finished++
			if err := d.WriteToRingBuffer(frame, rb, target); err != nil {
				t.Fatalf("WriteToRingBuffer() = %v", err)
			}
			frame.Unref()
			if first == nil {
				if d.resampler == nil {
					t.Fatal("no resampler after first rate-mismatched frame")
				}
				first = d.resampler
			} else if d.resampler != first {
				t.Fatal("resampler was rebuilt for a later frame")
			}
		case StatusEOF:
			break loop
		case StatusSuccess:
		default:
			t.Fatalf("DecodeAudio() = %v", st)
		}
	}

	if finished < 2 {
		t.Fatalf("finished %d frames, want at least 2 to exercise reuse", finished)
	}
	if rb.Len() == 0 {
		t.Error("ring buffer is empty after resampled decoding")
	}
}

func TestDecoder_SetupIsRepeatable(t *testing.T) {
	target := AudioFormat{SampleRate: 48000, Channels: 1}
	d := openToneDecoder(t, 48000, target)
	defer d.Close()

	// Re-running setup closes and reopens the codec session.
	if err := d.SetupAudio(target); err != nil {
		t.Fatalf("second SetupAudio() = %v", err)
	}

	frame := astiav.AllocFrame()
	defer frame.Free()

	for i := 0; i < 100000; i++ {
		st := d.DecodeAudio(frame)
		if st == StatusFrameFinished {
			return
		}
		if st == StatusEOF {
			t.Fatal("EOF before any finished frame after re-setup")
		}
		if st != StatusSuccess {
			t.Fatalf("DecodeAudio() = %v", st)
		}
	}
	t.Fatal("no finished frame after re-setup")
}

func TestDecoder_InterruptCallbackAbortsAndResumes(t *testing.T) {
	target := AudioFormat{SampleRate: 48000, Channels: 1}
	d := openToneDecoder(t, 48000, target)
	defer d.Close()

	d.SetInterruptCallback(func() bool { return true })

	frame := astiav.AllocFrame()
	defer frame.Free()

	if st := d.DecodeAudio(frame); st != StatusReadError {
		t.Fatalf("DecodeAudio() while interrupted = %v, want %v", st, StatusReadError)
	}

	// Clearing the callback resumes demuxing from where it stopped.
	d.SetInterruptCallback(nil)
	for i := 0; i < 100000; i++ {
		switch st := d.DecodeAudio(frame); st {
		case StatusFrameFinished, StatusEOF:
			return
		case StatusSuccess:
		default:
			t.Fatalf("DecodeAudio() after resume = %v", st)
		}
	}
	t.Fatal("no progress after clearing the interrupt callback")
}

func TestDecoder_SetupAudioUnsupportedChannelCount(t *testing.T) {
	tests := []int{0, -1, 3, 6}

	for _, channels := range tests {
		d := NewDecoder(Config{})
		err := d.SetupAudio(AudioFormat{SampleRate: 48000, Channels: channels})
		d.Close()
		if !errors.Is(err, ErrUnsupportedChannelCount) {
			t.Errorf("SetupAudio() with %d channels = %v, want ErrUnsupportedChannelCount", channels, err)
		}
	}
}

func TestDecoder_SetupVideoOnAudioOnlyInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeToneWAV(t, path, 48000, 0.1)

	d := NewDecoder(Config{})
	defer d.Close()

	if err := d.OpenInput(DeviceParams{Input: path}); err != nil {
		t.Fatalf("OpenInput() = %v", err)
	}
	err := d.SetupVideo()
	if !errors.Is(err, ErrNoStream) {
		t.Errorf("SetupVideo() on audio-only input = %v, want ErrNoStream", err)
	}
}

func TestDecoder_OpenInputMissingFile(t *testing.T) {
	d := NewDecoder(Config{})
	defer d.Close()

	if err := d.OpenInput(DeviceParams{Input: filepath.Join(t.TempDir(), "nope.wav")}); err == nil {
		t.Error("OpenInput() on a missing file succeeded")
	}
}
