package tools

import "time"

func FrameSamples(duration time.Duration, rate, channels int) int {
	return int(duration.Seconds() * float64(channels) * float64(rate))
}

// FrameDuration is the inverse of FrameSamples. It returns 0 for a zero rate
// or channel count.
func FrameDuration(samples, rate, channels int) time.Duration {
	if rate <= 0 || channels <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(rate*channels)
}
