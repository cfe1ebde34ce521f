package avdec

// Status classifies the outcome of a single decode or flush call.
type Status int

const (
	// StatusSuccess means the call made progress but produced no frame:
	// a would-block read, a packet for another stream, or a codec that
	// needs more data. Call again later.
	StatusSuccess Status = iota
	// StatusFrameFinished means a decoded frame was produced.
	StatusFrameFinished
	// StatusEOF means the source has no more packets. Terminal.
	StatusEOF
	// StatusReadError means pulling a packet from the demuxer failed.
	StatusReadError
	// StatusDecodeError means the codec rejected a packet or frame.
	StatusDecodeError
	// StatusRestartRequired means the hardware decode path failed and the
	// session must be rebuilt with acceleration disabled.
	StatusRestartRequired
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusFrameFinished:
		return "FrameFinished"
	case StatusEOF:
		return "EOF"
	case StatusReadError:
		return "ReadError"
	case StatusDecodeError:
		return "DecodeError"
	case StatusRestartRequired:
		return "RestartRequired"
	default:
		return "Unknown"
	}
}
