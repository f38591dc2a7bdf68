package limiter

import (
	"runtime"
	"sync"
	"time"
)

// CPULimiter throttles hashing to roughly a maximum CPU percentage.
// Safe for use by several hashing workers at once.
type CPULimiter struct {
	mu         sync.Mutex
	maxPercent float64
	lastSleep  time.Time
	sleep      func(time.Duration)
}

// NewCPULimiter creates a new CPU limiter
func NewCPULimiter(maxPercent float64) *CPULimiter {
	return &CPULimiter{
		maxPercent: maxPercent,
		lastSleep:  time.Now(),
		sleep:      time.Sleep,
	}
}

// Throttle sleeps for the share of a work cycle the limit does not allow.
// With maxPercent=25 every 10ms of work is followed by 30ms of sleep.
func (l *CPULimiter) Throttle() {
	l.mu.Lock()
	maxPercent := l.maxPercent
	if maxPercent <= 0 || maxPercent >= 100 {
		l.mu.Unlock()
		return
	}

	workTime := 10 * time.Millisecond
	sleepTime := time.Duration(float64(workTime) * ((100.0 - maxPercent) / maxPercent))

	due := time.Since(l.lastSleep) > workTime
	if due {
		l.lastSleep = time.Now().Add(sleepTime)
	}
	sleep := l.sleep
	l.mu.Unlock()

	if due {
		sleep(sleepTime)
	}
	runtime.Gosched()
}
