package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker logs throughput of a batch at a fixed interval
type ProgressTracker struct {
	logger      Logger
	operation   string
	total       int64
	current     int64
	failed      int64
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
	mutex       sync.RWMutex
}

// ProgressConfig configures progress tracking behavior
type ProgressConfig struct {
	Operation   string        `json:"operation"`
	Total       int64         `json:"total"`
	LogInterval time.Duration `json:"log_interval"`
	Logger      Logger        `json:"-"`
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(config ProgressConfig) *ProgressTracker {
	if config.Logger == nil {
		config.Logger = GetGlobalLogger()
	}
	if config.LogInterval == 0 {
		config.LogInterval = 5 * time.Second
	}

	now := time.Now()
	tracker := &ProgressTracker{
		logger:      config.Logger.WithComponent("progress"),
		operation:   config.Operation,
		total:       config.Total,
		startTime:   now,
		lastLogTime: now,
		logInterval: config.LogInterval,
	}

	tracker.logger.WithFields(Fields{
		"operation": config.Operation,
		"total":     config.Total,
	}).Info("Starting operation")

	return tracker
}

// Increment counts one finished unit of work
func (p *ProgressTracker) Increment() {
	p.Add(1)
}

// IncrementFailed counts one unit of work that failed
func (p *ProgressTracker) IncrementFailed() {
	p.mutex.Lock()
	p.failed++
	p.mutex.Unlock()
	p.Add(1)
}

// Add increments the progress counter by the given amount
func (p *ProgressTracker) Add(delta int64) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.current += delta
	now := time.Now()
	if now.Sub(p.lastLogTime) >= p.logInterval {
		p.logProgress(now)
		p.lastLogTime = now
	}
}

// Complete logs final statistics
func (p *ProgressTracker) Complete() {
	stats := p.GetStats()
	p.logger.WithFields(Fields{
		"operation": stats.Operation,
		"total":     stats.Total,
		"processed": stats.Current,
		"failed":    stats.Failed,
		"duration":  stats.Duration.String(),
		"rate":      fmt.Sprintf("%.2f/sec", stats.Rate),
	}).Info("Operation completed")
}

// CompleteWithError logs final statistics with the error that ended the run
func (p *ProgressTracker) CompleteWithError(err error) {
	stats := p.GetStats()
	p.logger.WithError(err).WithFields(Fields{
		"operation": stats.Operation,
		"total":     stats.Total,
		"processed": stats.Current,
		"failed":    stats.Failed,
		"duration":  stats.Duration.String(),
	}).Error("Operation completed with error")
}

// GetStats returns current progress statistics
func (p *ProgressTracker) GetStats() ProgressStats {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.statsAt(time.Now())
}

func (p *ProgressTracker) statsAt(now time.Time) ProgressStats {
	duration := now.Sub(p.startTime)
	var rate float64
	if duration.Seconds() > 0 {
		rate = float64(p.current) / duration.Seconds()
	}

	var percentage float64
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100
	}

	var eta time.Duration
	if p.total > 0 && p.current > 0 && rate > 0 {
		remaining := p.total - p.current
		eta = time.Duration(float64(remaining)/rate) * time.Second
	}

	return ProgressStats{
		Operation:  p.operation,
		Total:      p.total,
		Current:    p.current,
		Failed:     p.failed,
		Percentage: percentage,
		Duration:   duration,
		Rate:       rate,
		ETA:        eta,
	}
}

func (p *ProgressTracker) logProgress(now time.Time) {
	stats := p.statsAt(now)
	fields := Fields{
		"operation": stats.Operation,
		"processed": stats.Current,
		"failed":    stats.Failed,
		"rate":      fmt.Sprintf("%.2f/sec", stats.Rate),
	}
	if stats.Total > 0 {
		fields["total"] = stats.Total
		fields["percentage"] = fmt.Sprintf("%.1f%%", stats.Percentage)
		if stats.ETA > 0 {
			fields["eta"] = stats.ETA.String()
		}
	}

	p.logger.WithFields(fields).Info("Progress update")
}

// ProgressStats contains progress statistics
type ProgressStats struct {
	Operation  string        `json:"operation"`
	Total      int64         `json:"total"`
	Current    int64         `json:"current"`
	Failed     int64         `json:"failed"`
	Percentage float64       `json:"percentage"`
	Duration   time.Duration `json:"duration"`
	Rate       float64       `json:"rate"`
	ETA        time.Duration `json:"eta,omitempty"`
}

// String returns a human-readable representation of the progress
func (ps ProgressStats) String() string {
	if ps.Total > 0 {
		return fmt.Sprintf("%s: %d/%d (%.1f%%, %d failed) at %.2f/sec, ETA: %v",
			ps.Operation, ps.Current, ps.Total, ps.Percentage, ps.Failed, ps.Rate, ps.ETA)
	}
	return fmt.Sprintf("%s: %d processed (%d failed) at %.2f/sec, elapsed: %v",
		ps.Operation, ps.Current, ps.Failed, ps.Rate, ps.Duration)
}

// TimedOperation executes fn and logs how long it took
func TimedOperation(operation string, logger Logger, fn func() error) error {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	log := logger.WithComponent("operation").WithField("operation", operation)
	start := time.Now()

	err := fn()

	log = log.WithField("duration", time.Since(start).String())
	if err != nil {
		log.WithError(err).Error("Operation failed")
	} else {
		log.Debug("Operation completed")
	}
	return err
}
