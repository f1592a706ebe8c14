package reembed

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastReport(buf *bytes.Buffer) string {
	reports := strings.Split(strings.TrimSpace(buf.String()), "\r")
	return reports[len(reports)-1]
}

func TestProgressTracker_Reports(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		interval int
		updates  []int
		files    int
		want     string
	}{
		{"one file fully processed", 12, 4, []int{4, 8, 12}, 1, "12/12 chunks (100.0%), 1 files"},
		{"partial run", 10, 5, []int{5}, 0, "5/10 chunks (50.0%), 0 files"},
		{"overshoot is capped", 6, 1, []int{9}, 2, "6/6 chunks (100.0%), 2 files"},
		{"zero interval reports every batch", 3, 0, []int{1}, 0, "1/3 chunks (33.3%)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tracker := NewProgressTracker(&buf, tt.total, tt.interval)
			tracker.Start()
			for range tt.files {
				tracker.FileDone()
			}
			for _, n := range tt.updates {
				tracker.Update(n)
			}

			require.NotEmpty(t, buf.String())
			report := lastReport(&buf)
			assert.True(t, strings.HasPrefix(report, "Progress: "), report)
			assert.Contains(t, report, tt.want)
			assert.Contains(t, report, "chunks/s")
		})
	}
}

func TestProgressTracker_IntervalSuppressesSmallSteps(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 1000, 100)
	tracker.Start()

	tracker.Update(50)
	assert.Empty(t, buf.String())

	tracker.Increment(50)
	assert.Contains(t, buf.String(), "100/1000 chunks")

	buf.Reset()
	tracker.Update(150)
	assert.Empty(t, buf.String(), "interval counts from the last report")

	tracker.Update(250)
	assert.Contains(t, buf.String(), "250/1000 chunks")
}

func TestProgressTracker_FinishCompletesLine(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 40, 100)
	tracker.Start()
	tracker.Update(30)
	tracker.FileDone()
	tracker.Finish()

	out := buf.String()
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Contains(t, out, "40/40 chunks (100.0%), 1 files")
}

func TestProgressTracker_EmptyRun(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 0, 10)
	tracker.Start()
	tracker.Finish()
	assert.Contains(t, buf.String(), "0/0 chunks (0.0%)")
}

func TestProgressTracker_IgnoredBeforeStart(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 100, 1)

	tracker.Increment(10)
	tracker.FileDone()
	tracker.Finish()
	assert.Empty(t, buf.String())
	assert.Zero(t, tracker.Elapsed())

	tracker.Start()
	tracker.Update(100)
	assert.Contains(t, buf.String(), "0 files", "files done before Start are not counted")
}

func TestProgressTracker_Elapsed(t *testing.T) {
	tracker := NewProgressTracker(&bytes.Buffer{}, 1, 1)
	tracker.Start()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, tracker.Elapsed(), 5*time.Millisecond)
}

func TestProgressTracker_ConcurrentBatches(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 200, 50)
	tracker.Start()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Increment(10)
		}()
	}
	wg.Wait()
	tracker.Finish()

	assert.Contains(t, lastReport(&buf), "200/200 chunks")
}
