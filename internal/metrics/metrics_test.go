package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(200))
	assert.Equal(t, "3xx", statusClass(304))
	assert.Equal(t, "4xx", statusClass(404))
	assert.Equal(t, "5xx", statusClass(503))
	assert.Equal(t, "unknown", statusClass(101))
}

func TestRecorders_DoNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordHTTPRequest("GET", "/api/v1/tasks", 200, 0.01)
		RecordTaskCreated("demo")
		RecordTaskFinished("demo", "completed", 1.5)
		RecordTasksCleaned(3)
		RecordEventDropped("progress")
		SubscriberAdded()
		SubscriberRemoved()
		JobStarted()
		JobFinished()
		RecordError("sink", "dropped")
	})
}
