// Package avdec decodes one demuxed media stream (audio or video) into
// raw frames ready for playback, backed by FFmpeg via go-astiav.
//
// Key pieces include:
//   - Decoder: owns the demuxer, selects a stream, drives the codec
//   - Per-call decode statuses instead of exceptions or panics
//   - Optional hardware-accelerated video decode with software fallback
//   - Rate emulation that paces file playback against wall-clock time
//   - Pixel format normalization for the deprecated JPEG YUV variants
//   - Audio post-processing into planar signed 16-bit PCM, with lazy
//     resampling to the consumer's rate, appended to a ring buffer
//
// # Architecture
//
//	OpenInput -> SetupAudio/SetupVideo -> DecodeAudio/DecodeVideo -> consumer
//
// Video consumers receive decoded frames one per FrameFinished status;
// audio consumers receive samples through a RingBuffer after
// WriteToRingBuffer. Flush drains frames the codec still buffers when a
// video stream is being torn down.
//
// # Threading
//
// A Decoder is not safe for concurrent use: callers must serialize
// OpenInput, setup, decode, and flush on one session. The codec may use
// internal worker threads for parallel block decoding, but that is opaque
// to the caller. Blocking reads are aborted cooperatively through the
// interrupt callback.
package avdec
