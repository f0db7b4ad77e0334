package rtpsource

import "time"

// timeDecoder turns a stream of 32-bit RTP timestamps, which wrap
// around and carry no absolute epoch, into a monotonically increasing
// time.Duration relative to the first packet seen. Wraparound is
// handled by treating the difference between consecutive timestamps
// as a signed 32-bit value, which is correct as long as no two
// packets belonging to the same stream are more than 2^31 clock ticks
// apart.
type timeDecoder struct {
	clockRate     int
	initialized   bool
	prevTimestamp uint32
	elapsed       time.Duration
}

func newTimeDecoder(clockRate int) *timeDecoder {
	return &timeDecoder{clockRate: clockRate}
}

func (d *timeDecoder) decode(timestamp uint32) time.Duration {
	if !d.initialized {
		d.initialized = true
		d.prevTimestamp = timestamp
		return 0
	}

	diff := int32(timestamp - d.prevTimestamp)
	d.prevTimestamp = timestamp
	d.elapsed += time.Duration(diff) * time.Second / time.Duration(d.clockRate)
	return d.elapsed
}
