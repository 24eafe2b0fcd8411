package core

const metricsAvgCount = 30

// FrameMetrics keeps a rolling average of the frame time and the number of
// frames presented during the last full second.
type FrameMetrics struct {
	avgCounter    int
	msTimes       [metricsAvgCount]float64
	msAvg         float64
	frames        int32
	accumulatedMS float64
	fps           float64
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{}
}

// Update records one frame that took frameElapsed seconds.
func (m *FrameMetrics) Update(frameElapsed float64) {
	frameMS := frameElapsed * 1000.0
	m.msTimes[m.avgCounter] = frameMS
	if m.avgCounter == metricsAvgCount-1 {
		sum := 0.0
		for _, t := range m.msTimes {
			sum += t
		}
		m.msAvg = sum / metricsAvgCount
	}
	m.avgCounter = (m.avgCounter + 1) % metricsAvgCount

	m.accumulatedMS += frameMS
	if m.accumulatedMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedMS -= 1000
		m.frames = 0
	}
	m.frames++
}

func (m *FrameMetrics) FPS() float64 {
	return m.fps
}

// FrameTime is the average frame time in milliseconds.
func (m *FrameMetrics) FrameTime() float64 {
	return m.msAvg
}
