package cascade

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ShayCichocki/storyforge/pkg/models"
)

// TaskStatus is the state of an async regeneration task.
type TaskStatus string

const (
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Task is a queryable handle for a regeneration running in the background.
type Task struct {
	mu sync.RWMutex

	id      string
	jobID   string
	storyID string
	status  TaskStatus
	errMsg  string
	result  *RegenerationResult
}

// ID returns the task identifier.
func (t *Task) ID() string { return t.id }

// TaskView is the serializable state of a task.
type TaskView struct {
	TaskID  string              `json:"task_id"`
	JobID   string              `json:"job_id"`
	StoryID string              `json:"story_id"`
	Status  TaskStatus          `json:"status"`
	Error   string              `json:"error,omitempty"`
	Result  *RegenerationResult `json:"result,omitempty"`
}

// View returns the task's current state.
func (t *Task) View() TaskView {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return TaskView{
		TaskID:  t.id,
		JobID:   t.jobID,
		StoryID: t.storyID,
		Status:  t.status,
		Error:   t.errMsg,
		Result:  t.result,
	}
}

func (t *Task) finish(result *RegenerationResult, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.status = TaskFailed
		t.errMsg = err.Error()
		return
	}
	t.status = TaskCompleted
	t.result = result
}

// TaskSet tracks regeneration tasks for status polling.
type TaskSet struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewTaskSet creates an empty task set.
func NewTaskSet() *TaskSet {
	return &TaskSet{tasks: make(map[string]*Task)}
}

// Get returns the task with the given identifier, or ErrNotFound.
func (s *TaskSet) Get(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, models.NotFoundf("task %s", id)
	}
	return t, nil
}

func (s *TaskSet) add(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.id] = t
}

// StartRegeneration launches Regenerate in the background and returns a
// task handle immediately. The story is validated up front so obviously
// bad requests fail synchronously.
func (a *Analyzer) StartRegeneration(ctx context.Context, jobID, storyID string) (*Task, error) {
	_, store, err := a.store(jobID)
	if err != nil {
		return nil, err
	}
	if _, ok := store.FindStory(storyID); !ok {
		return nil, models.NotFoundf("story %s", storyID)
	}

	t := &Task{
		id:      uuid.NewString(),
		jobID:   jobID,
		storyID: storyID,
		status:  TaskRunning,
	}
	a.tasks.add(t)

	go func() {
		result, err := a.Regenerate(ctx, jobID, storyID)
		t.finish(result, err)
	}()
	return t, nil
}
