package videos

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"
)

// MaxBatchSize bounds the URLs accepted by one batch.
const MaxBatchSize = 50

var (
	// ErrEmptyBatch is returned when the input holds no URLs.
	ErrEmptyBatch = errors.New("videos: no URLs to process")
	// ErrBatchTooLarge is returned when the input exceeds MaxBatchSize.
	ErrBatchTooLarge = fmt.Errorf("videos: at most %d URLs per batch", MaxBatchSize)
)

var bvidPattern = regexp.MustCompile(`BV[a-zA-Z0-9]+`)

// ExtractBVID returns the first BVID found in a URL or a bare identifier.
func ExtractBVID(raw string) string {
	return bvidPattern.FindString(strings.TrimSpace(raw))
}

// ParseBatchInput splits textarea input into URLs: one per line, trimmed, blanks dropped.
func ParseBatchInput(raw string) ([]string, error) {
	var urls []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			urls = append(urls, line)
		}
	}
	switch {
	case len(urls) == 0:
		return nil, ErrEmptyBatch
	case len(urls) > MaxBatchSize:
		return nil, ErrBatchTooLarge
	}
	return urls, nil
}

// Task states.
const (
	TaskPending   = "pending"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// Task tracks one URL of a batch.
type Task struct {
	ID     string
	URL    string
	BVID   string
	Status string
	Error  string
	Video  *Video
}

// PlanBatch creates a pending task per URL.
func PlanBatch(urls []string) []Task {
	tasks := make([]Task, 0, len(urls))
	for _, u := range urls {
		tasks = append(tasks, Task{
			ID:     ulid.Make().String(),
			URL:    u,
			BVID:   ExtractBVID(u),
			Status: TaskPending,
		})
	}
	return tasks
}

// ApplyBatchResult matches backend outcomes to tasks by BVID, falling back to the raw URL.
// Tasks the backend did not report are marked failed.
func ApplyBatchResult(tasks []Task, result BatchResult) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	usedSuccess := make([]bool, len(result.Success))
	usedFailed := make([]bool, len(result.Failed))

	for i := range out {
		t := &out[i]
		if idx := matchSuccess(t, result.Success, usedSuccess); idx >= 0 {
			usedSuccess[idx] = true
			t.Status = TaskCompleted
			t.Video = result.Success[idx].Result
			continue
		}
		if idx := matchFailure(t, result.Failed, usedFailed); idx >= 0 {
			usedFailed[idx] = true
			t.Status = TaskFailed
			t.Error = result.Failed[idx].Error
			if t.Error == "" {
				t.Error = "Processing failed"
			}
			continue
		}
		t.Status = TaskFailed
		t.Error = "Not reported by the backend"
	}
	return out
}

func matchSuccess(t *Task, entries []BatchSuccess, used []bool) int {
	for i, e := range entries {
		if used[i] {
			continue
		}
		if (t.BVID != "" && e.BVID() == t.BVID) || (e.URL != "" && e.URL == t.URL) {
			return i
		}
	}
	return -1
}

func matchFailure(t *Task, entries []BatchFailure, used []bool) int {
	for i, e := range entries {
		if used[i] {
			continue
		}
		if (t.BVID != "" && ExtractBVID(e.URL) == t.BVID) || e.URL == t.URL {
			return i
		}
	}
	return -1
}

// FailAll marks every task failed with message, used when the whole batch call errors.
func FailAll(tasks []Task, message string) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		t.Status = TaskFailed
		t.Error = message
		out[i] = t
	}
	return out
}

// TaskCounts tallies task states.
type TaskCounts struct {
	Total     int
	Completed int
	Failed    int
}

// Progress returns the finished share as 0-100.
func (c TaskCounts) Progress() int {
	if c.Total == 0 {
		return 0
	}
	return (c.Completed + c.Failed) * 100 / c.Total
}

// CountTasks tallies tasks.
func CountTasks(tasks []Task) TaskCounts {
	c := TaskCounts{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case TaskCompleted:
			c.Completed++
		case TaskFailed:
			c.Failed++
		}
	}
	return c
}
