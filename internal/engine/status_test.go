package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerStatusStartsActive(t *testing.T) {
	status := newWorkerStatus(3)
	assert.False(t, status.allIdle())
}

func TestWorkerStatusAllIdle(t *testing.T) {
	status := newWorkerStatus(2)

	status.setActive(0, false)
	assert.False(t, status.allIdle())

	status.setActive(1, false)
	assert.True(t, status.allIdle())

	// one worker finding work revives the pool
	status.setActive(0, true)
	assert.False(t, status.allIdle())
}

func TestCountersSummary(t *testing.T) {
	var c counters
	c.addPage()
	c.addPage()
	c.addBinary()
	c.addDuplicate()
	c.addFailure()
	c.addError()

	summary := c.summary(0)
	assert.Equal(t, 2, summary.Pages)
	assert.Equal(t, 1, summary.Binaries)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 1, summary.Failures)
	assert.Equal(t, 1, summary.Errors)
}
