package avdec

import "sync"

// PCMRingBuffer is a bounded planar S16 FIFO connecting the decode loop to
// an audio consumer. Put appends the newest samples and discards the oldest
// once the capacity is exceeded, so a stalled consumer costs bounded memory
// and bounded staleness instead of unbounded growth.
type PCMRingBuffer struct {
	mu       sync.Mutex
	format   AudioFormat
	capacity int // samples retained per channel
	planes   [][]int16
}

// NewPCMRingBuffer creates a ring buffer holding up to capacity samples per
// channel in the given format.
func NewPCMRingBuffer(format AudioFormat, capacity int) *PCMRingBuffer {
	planes := make([][]int16, format.Channels)
	return &PCMRingBuffer{
		format:   format,
		capacity: capacity,
		planes:   planes,
	}
}

// Format returns the layout samples are stored in.
func (r *PCMRingBuffer) Format() AudioFormat {
	return r.format
}

// Put appends b's samples. Channels beyond the ring's own count are
// dropped; a mono source feeding a stereo ring fills only the first plane.
func (r *PCMRingBuffer) Put(b *AudioBuffer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for c := 0; c < len(r.planes) && c < b.Channels(); c++ {
		r.planes[c] = append(r.planes[c], b.Channel(c)...)
		if excess := len(r.planes[c]) - r.capacity; excess > 0 {
			r.planes[c] = r.planes[c][excess:]
		}
	}
}

// Len returns the number of buffered samples per channel.
func (r *PCMRingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.planes) == 0 {
		return 0
	}
	return len(r.planes[0])
}

// Read moves up to len(dst[c]) samples per channel into dst and returns the
// number of samples copied per channel.
func (r *PCMRingBuffer) Read(dst [][]int16) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for c := 0; c < len(r.planes) && c < len(dst); c++ {
		copied := copy(dst[c], r.planes[c])
		r.planes[c] = r.planes[c][copied:]
		if copied > n {
			n = copied
		}
	}
	return n
}
