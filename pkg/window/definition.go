// Package window implements frame-aligned sliding/tumbling windows and
// watermark insertion, per spec.md section 4.4.1, 4.4.3 and 4.4.4.
package window

// Definition is an immutable window configuration: FrameSize and
// WindowSize are in the same timestamp units as event time; WindowSize
// must be a positive multiple of FrameSize. A tumbling window is the
// special case FrameSize == WindowSize.
type Definition struct {
	FrameSize   int64
	FrameOffset int64
	WindowSize  int64
}

// New validates and returns a Definition. It panics on a malformed
// configuration — these are fixed at topology-build time, not runtime
// data, so failing fast beats threading a build-time error return
// through every window constructor.
func New(frameSize, frameOffset, windowSize int64) Definition {
	if frameSize <= 0 {
		panic("window: frameSize must be positive")
	}
	if windowSize <= 0 || windowSize%frameSize != 0 {
		panic("window: windowSize must be a positive multiple of frameSize")
	}
	return Definition{FrameSize: frameSize, FrameOffset: frameOffset, WindowSize: windowSize}
}

// HigherFrameTs returns the smallest f > t with f ≡ FrameOffset (mod
// FrameSize) — the frame a newly-arrived event belongs to.
func (d Definition) HigherFrameTs(t int64) int64 {
	var rem = (t - d.FrameOffset) % d.FrameSize
	if rem < 0 {
		rem += d.FrameSize
	}
	return t - rem + d.FrameSize
}

// FramesPerWindow returns WindowSize / FrameSize.
func (d Definition) FramesPerWindow() int64 {
	return d.WindowSize / d.FrameSize
}

// IsWindowEnd reports whether we is on the sliding grid: a frame end
// that is also a legal window end (we ≡ FrameOffset mod FrameSize, which
// HigherFrameTs already guarantees for any we it could return).
func (d Definition) IsWindowEnd(we int64) bool {
	var rem = (we - d.FrameOffset) % d.FrameSize
	if rem < 0 {
		rem += d.FrameSize
	}
	return rem == 0
}
