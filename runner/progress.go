package runner

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-parallel/types"
	"github.com/ethereum/go-ethereum/log"
)

// ProgressIndicator interface for UI updates
type ProgressIndicator interface {
	StartRun(totalScenarios int)
	StartScenario(name string)
	CompleteScenario(name string, outcome types.OutcomeKind, retryQueued bool)
	CompleteRun()
}

// noOpProgressIndicator provides a no-op implementation of ProgressIndicator
type noOpProgressIndicator struct{}

// NewNoOpProgressIndicator creates a progress indicator that does nothing
func NewNoOpProgressIndicator() ProgressIndicator {
	return &noOpProgressIndicator{}
}

func (n *noOpProgressIndicator) StartRun(totalScenarios int) {}
func (n *noOpProgressIndicator) StartScenario(name string)   {}
func (n *noOpProgressIndicator) CompleteScenario(name string, outcome types.OutcomeKind, retryQueued bool) {
}
func (n *noOpProgressIndicator) CompleteRun() {}

// consoleProgressIndicator provides a console-based progress indicator
type consoleProgressIndicator struct {
	logger   log.Logger
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
	mu       sync.RWMutex

	completed int
	total     int // grows when retries are queued
	startTime time.Time

	// Track currently running scenarios
	running map[string]time.Time // scenario name -> start time
}

// NewConsoleProgressIndicator creates a progress indicator that shows updates in the console
func NewConsoleProgressIndicator(logger log.Logger, updateInterval time.Duration) ProgressIndicator {
	if updateInterval == 0 {
		updateInterval = 30 * time.Second // Default to 30 seconds
	}

	indicator := &consoleProgressIndicator{
		logger:  logger,
		ticker:  time.NewTicker(updateInterval),
		stopCh:  make(chan struct{}),
		running: make(map[string]time.Time),
	}

	go indicator.progressReporter()

	return indicator
}

func (c *consoleProgressIndicator) StartRun(totalScenarios int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total = totalScenarios
	c.completed = 0
	c.startTime = time.Now()
	c.running = make(map[string]time.Time)

	c.logger.Info("Starting run", "scenarios", totalScenarios)
}

// StartScenario tracks when a scenario attempt starts running
func (c *consoleProgressIndicator) StartScenario(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.running[name] = time.Now()
	c.logger.Debug("Scenario started", "scenario", name, "running", len(c.running))
}

func (c *consoleProgressIndicator) CompleteScenario(name string, outcome types.OutcomeKind, retryQueued bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.running, name)
	c.completed++
	if retryQueued {
		c.total++
	}

	// Individual completions at debug level to avoid spam
	c.logger.Debug("Scenario completed", "scenario", name, "outcome", outcome, "completed", c.completed, "total", c.total, "running", len(c.running))
}

func (c *consoleProgressIndicator) CompleteRun() {
	c.stopOnce.Do(func() {
		c.ticker.Stop()
		close(c.stopCh)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	duration := time.Since(c.startTime).Truncate(time.Second)
	c.logger.Info("Completed run", "attempts", c.completed, "duration", duration)
	c.running = make(map[string]time.Time)
}

// progressReporter runs in a goroutine and periodically reports progress
func (c *consoleProgressIndicator) progressReporter() {
	for {
		select {
		case <-c.ticker.C:
			c.reportProgress()
		case <-c.stopCh:
			return
		}
	}
}

func (c *consoleProgressIndicator) reportProgress() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	detailsStr := formatRunningScenarios(c.running, 3)

	var percentComplete float64
	if c.total > 0 {
		percentComplete = float64(c.completed) * 100.0 / float64(c.total)
	}

	logFields := []interface{}{
		"completed", c.completed,
		"total", c.total,
		"percent", fmt.Sprintf("%.1f%%", percentComplete),
		"numRunning", len(c.running),
		"longestRunning", detailsStr,
	}

	c.logger.Info("Progress update", logFields...)
}

// formatRunningScenarios lists the longest running scenarios first, at most maxShow of them
func formatRunningScenarios(running map[string]time.Time, maxShow int) string {
	if len(running) == 0 {
		return ""
	}

	type runningScenario struct {
		name     string
		duration time.Duration
	}

	var scenarios []runningScenario
	now := time.Now()
	for name, startTime := range running {
		scenarios = append(scenarios, runningScenario{
			name:     name,
			duration: now.Sub(startTime),
		})
	}

	sort.Slice(scenarios, func(i, j int) bool {
		if scenarios[i].duration == scenarios[j].duration {
			return scenarios[i].name < scenarios[j].name
		}
		return scenarios[i].duration > scenarios[j].duration
	})

	var parts []string
	for i, s := range scenarios {
		if i >= maxShow {
			break
		}
		parts = append(parts, fmt.Sprintf("%s (%v)", s.name, s.duration.Truncate(time.Second)))
	}

	// Indicator for scenarios not shown
	if len(scenarios) > maxShow {
		parts = append(parts, fmt.Sprintf("+%d more", len(scenarios)-maxShow))
	}

	return strings.Join(parts, ", ")
}
