package runner

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum-optimism/infra/op-parallel/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
)

func TestFormatRunningScenarios(t *testing.T) {
	assert.Equal(t, "", formatRunningScenarios(nil, 3))

	now := time.Now()
	running := map[string]time.Time{
		"features/a.feature:1": now.Add(-5 * time.Second),
		"features/b.feature:1": now.Add(-50 * time.Second),
		"features/c.feature:1": now.Add(-20 * time.Second),
		"features/d.feature:1": now.Add(-1 * time.Second),
	}

	out := formatRunningScenarios(running, 2)
	parts := strings.Split(out, ", ")
	assert.Len(t, parts, 3)
	assert.True(t, strings.HasPrefix(parts[0], "features/b.feature:1 ("), "longest running first: %s", out)
	assert.True(t, strings.HasPrefix(parts[1], "features/c.feature:1 ("))
	assert.Equal(t, "+2 more", parts[2])
}

func TestConsoleProgressIndicator_Lifecycle(t *testing.T) {
	p := NewConsoleProgressIndicator(log.New(), 5*time.Millisecond).(*consoleProgressIndicator)

	p.StartRun(2)
	p.StartScenario("a:1")
	p.StartScenario("b:1")
	p.CompleteScenario("a:1", types.OutcomeProcessError, true)

	p.mu.RLock()
	assert.Equal(t, 1, p.completed)
	assert.Equal(t, 3, p.total, "queued retries extend the total")
	assert.Len(t, p.running, 1)
	p.mu.RUnlock()

	// Let the reporter tick at least once
	time.Sleep(20 * time.Millisecond)

	p.CompleteScenario("b:1", types.OutcomeSuccess, false)
	p.CompleteRun()
	p.CompleteRun() // stopping twice is safe

	p.mu.RLock()
	assert.Empty(t, p.running)
	p.mu.RUnlock()
}

func TestNoOpProgressIndicator(t *testing.T) {
	p := NewNoOpProgressIndicator()
	p.StartRun(1)
	p.StartScenario("a:1")
	p.CompleteScenario("a:1", types.OutcomeSuccess, false)
	p.CompleteRun()
}
