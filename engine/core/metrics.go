package core

import (
	"time"

	"github.com/spaghettifunk/tessera/engine/containers"
)

const AVG_COUNT int = 30

// Metrics keeps the rolling frame time, the frames per second and the time
// spent blocked on frame fences.
type Metrics struct {
	frameTimes         *containers.RingQueue[float64]
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64

	gpuWaits *containers.RingQueue[time.Duration]

	fpsInterval     time.Duration
	gpuWaitInterval time.Duration
	lastFPSPrint    time.Time
	lastGPUPrint    time.Time
}

func NewMetrics(fpsInterval, gpuWaitInterval time.Duration) *Metrics {
	now := time.Now()
	return &Metrics{
		frameTimes:      containers.NewRingQueue[float64](AVG_COUNT),
		gpuWaits:        containers.NewRingQueue[time.Duration](AVG_COUNT),
		fpsInterval:     fpsInterval,
		gpuWaitInterval: gpuWaitInterval,
		lastFPSPrint:    now,
		lastGPUPrint:    now,
	}
}

// Update records one frame that took frameElapsed seconds.
func (m *Metrics) Update(frameElapsed float64) {
	frameMS := frameElapsed * 1000.0
	m.frameTimes.Push(frameMS)
	if m.frameTimes.IsFull() {
		sum := 0.0
		m.frameTimes.Each(func(v float64) { sum += v })
		m.msAvg = sum / float64(m.frameTimes.Len())
	}

	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}
	m.frames++
}

func (m *Metrics) RecordGPUWait(d time.Duration) {
	m.gpuWaits.Push(d)
}

func (m *Metrics) FPS() float64 {
	return m.fps
}

func (m *Metrics) FrameTime() float64 {
	return m.msAvg
}

// GPUWait is the average fence wait over the last AVG_COUNT frames.
func (m *Metrics) GPUWait() time.Duration {
	if m.gpuWaits.IsEmpty() {
		return 0
	}
	var sum time.Duration
	m.gpuWaits.Each(func(d time.Duration) { sum += d })
	return sum / time.Duration(m.gpuWaits.Len())
}

// Report logs the counters whose interval elapsed. A zero interval disables
// the corresponding line.
func (m *Metrics) Report(now time.Time) {
	if m.fpsInterval > 0 && now.Sub(m.lastFPSPrint) >= m.fpsInterval {
		LogInfo("FPS: %.0f (%.2f ms)", m.fps, m.msAvg)
		m.lastFPSPrint = now
	}
	if m.gpuWaitInterval > 0 && now.Sub(m.lastGPUPrint) >= m.gpuWaitInterval {
		LogInfo("GPU wait: %s", m.GPUWait())
		m.lastGPUPrint = now
	}
}
