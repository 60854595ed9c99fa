package abr

import (
	"math"
	"sync"
	"time"
)

const (
	fastHalfLife = 2.0 // seconds of download time
	slowHalfLife = 5.0

	// minTotalBytes is how much must be sampled before the estimate replaces
	// the configured initial value.
	minTotalBytes = 128 * 1024
	// minSampleBytes filters out tiny responses whose timing is mostly latency.
	minSampleBytes = 16 * 1024
)

// ewma is an exponentially weighted moving average weighted by sample duration.
type ewma struct {
	alpha       float64
	estimate    float64
	totalWeight float64
}

func newEWMA(halfLife float64) ewma {
	return ewma{alpha: math.Exp(math.Log(0.5) / halfLife)}
}

func (e *ewma) sample(weight, value float64) {
	adj := math.Pow(e.alpha, weight)
	e.estimate = value*(1-adj) + adj*e.estimate
	e.totalWeight += weight
}

func (e *ewma) value() float64 {
	zeroFactor := 1 - math.Pow(e.alpha, e.totalWeight)
	if zeroFactor == 0 {
		return 0
	}
	return e.estimate / zeroFactor
}

// Estimator tracks download throughput. The estimate is the lower of a fast
// and a slow moving average so that drops are picked up quickly and spikes
// are not trusted.
type Estimator struct {
	mu         sync.Mutex
	initial    float64
	fast, slow ewma
	totalBytes int64
}

// NewEstimator returns an Estimator that reports initialBps until enough
// data has been sampled.
func NewEstimator(initialBps float64) *Estimator {
	return &Estimator{
		initial: initialBps,
		fast:    newEWMA(fastHalfLife),
		slow:    newEWMA(slowHalfLife),
	}
}

// Sample records that n bytes were downloaded in d.
func (e *Estimator) Sample(n int64, d time.Duration) {
	if n < minSampleBytes || d <= 0 {
		return
	}
	secs := d.Seconds()
	bps := float64(n) * 8 / secs

	e.mu.Lock()
	defer e.mu.Unlock()
	e.totalBytes += n
	e.fast.sample(secs, bps)
	e.slow.sample(secs, bps)
}

// Estimate returns the current bandwidth estimate in bits per second.
func (e *Estimator) Estimate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.totalBytes < minTotalBytes {
		return e.initial
	}
	return math.Min(e.fast.value(), e.slow.value())
}
