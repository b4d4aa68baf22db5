package engine

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/soundpool-go/internal/observability/metrics"
)

// levelPollInterval paces the monitor drain; one reading per drain.
const levelPollInterval = 100 * time.Millisecond

// levelMonitor meters the frames a backend renders. The audio callback
// writes rendered bytes into a ring buffer and never blocks; a monitor
// goroutine drains it, computes the level, and feeds the metrics gauge.
type levelMonitor struct {
	backend string
	rb      *ringbuffer.RingBuffer
	metrics *metrics.EngineMetrics

	mu      sync.Mutex
	current LevelData

	done chan struct{}
	wg   sync.WaitGroup
}

// newLevelMonitor sizes the ring buffer for 200ms of 16-bit output and
// starts the drain goroutine.
func newLevelMonitor(backend string, rate, channels int, m *metrics.EngineMetrics) *levelMonitor {
	capacity := rate * channels * 2 / 5
	lm := &levelMonitor{
		backend: backend,
		rb:      ringbuffer.New(capacity),
		metrics: m,
		done:    make(chan struct{}),
	}
	lm.wg.Add(1)
	go lm.run()
	return lm
}

// push hands rendered bytes to the monitor. It runs on the audio thread;
// when the buffer cannot take the whole period the period is dropped.
func (lm *levelMonitor) push(p []byte) {
	if lm.rb.Free() < len(p) {
		if lm.metrics != nil {
			lm.metrics.RecordLevelDrop(lm.backend)
		}
		return
	}
	if _, err := lm.rb.Write(p); err != nil && lm.metrics != nil {
		lm.metrics.RecordLevelDrop(lm.backend)
	}
}

func (lm *levelMonitor) run() {
	defer lm.wg.Done()
	buf := make([]byte, lm.rb.Capacity())
	ticker := time.NewTicker(levelPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-lm.done:
			return
		case <-ticker.C:
			lm.drain(buf)
		}
	}
}

// drain reads whatever accumulated since the last tick and publishes one
// reading from it.
func (lm *levelMonitor) drain(buf []byte) {
	n := lm.rb.Length()
	if n == 0 {
		return
	}
	if n > len(buf) {
		n = len(buf)
	}
	read, err := lm.rb.Read(buf[:n])
	if err != nil || read == 0 {
		return
	}

	level := calculateLevel(buf[:read])
	lm.mu.Lock()
	lm.current = level
	lm.mu.Unlock()
	if lm.metrics != nil {
		lm.metrics.UpdateOutputLevel(lm.backend, level.Level, level.Clipping)
	}
}

// level returns the most recent reading.
func (lm *levelMonitor) level() LevelData {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.current
}

func (lm *levelMonitor) stop() {
	close(lm.done)
	lm.wg.Wait()
	lm.rb.Reset()
}

// calculateLevel computes the RMS of 16-bit little endian samples, scaled
// so -60 dBFS maps to 0 and -10 dBFS to 100. Full-scale samples flag
// clipping and floor the level at 95.
func calculateLevel(samples []byte) LevelData {
	if len(samples) < 2 {
		return LevelData{}
	}
	if len(samples)%2 != 0 {
		samples = samples[:len(samples)-1]
	}

	var sum float64
	sampleCount := len(samples) / 2
	isClipping := false

	for i := 0; i+1 < len(samples); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(samples[i : i+2]))
		abs := math.Abs(float64(sample))
		sum += abs * abs
		if sample == 32767 || sample == -32768 {
			isClipping = true
		}
	}

	rms := math.Sqrt(sum / float64(sampleCount))
	db := 20 * math.Log10(rms/32768.0)
	scaled := (db + 60) * (100.0 / 50.0)
	if isClipping {
		scaled = math.Max(scaled, 95)
	}
	if scaled < 0 {
		scaled = 0
	} else if scaled > 100 {
		scaled = 100
	}

	return LevelData{Level: int(scaled), Clipping: isClipping}
}
