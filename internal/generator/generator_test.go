package generator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/storyforge/pkg/models"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare object",
			input: `{"a": 1}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "fenced json block",
			input: "Here you go:\n```json\n{\"a\": 1}\n```\nDone.",
			want:  `{"a": 1}`,
		},
		{
			name:  "plain fence",
			input: "```\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "surrounding prose",
			input: "The result is {\"a\": 1} as requested.",
			want:  `{"a": 1}`,
		},
		{
			name:    "no object",
			input:   "I could not produce the artifacts.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.input)
			if tt.wantErr {
				if !errors.Is(err, models.ErrGeneratorFailure) {
					t.Errorf("error = %v, want ErrGeneratorFailure", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("extractJSON error: %v", err)
			}
			if got != tt.want {
				t.Errorf("extractJSON = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRetry_StopsOnInvalidRequest(t *testing.T) {
	calls := 0
	err := retry(context.Background(), RetryPolicy{Attempts: 3, Backoff: time.Millisecond}, "op", func() error {
		calls++
		return models.InvalidRequestf("bad input")
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, models.ErrInvalidRequest) {
		t.Errorf("error = %v, want ErrInvalidRequest", err)
	}
}

func TestRetry_ExhaustsBudget(t *testing.T) {
	calls := 0
	err := retry(context.Background(), RetryPolicy{Attempts: 3, Backoff: time.Millisecond}, "op", func() error {
		calls++
		return errors.New("transient")
	})

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !errors.Is(err, models.ErrGeneratorFailure) {
		t.Errorf("error = %v, want ErrGeneratorFailure", err)
	}
	if !strings.Contains(err.Error(), "transient") {
		t.Errorf("error %q does not carry the last cause", err)
	}
}

func TestRetry_EventualSuccess(t *testing.T) {
	calls := 0
	err := retry(context.Background(), RetryPolicy{Attempts: 3, Backoff: time.Millisecond}, "op", func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Errorf("error = %v, want nil", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestGate_LimitsConcurrency(t *testing.T) {
	g := NewGate(1, 0)
	ctx := context.Background()

	if err := g.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := g.Acquire(blocked); err == nil {
		t.Error("second Acquire succeeded while slot held")
	}

	g.Release()
	if err := g.Acquire(ctx); err != nil {
		t.Errorf("Acquire after release: %v", err)
	}
	g.Release()
}

func TestGate_PauseHonorsContext(t *testing.T) {
	g := NewGate(1, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := g.Pause(ctx)
	if err == nil {
		t.Error("Pause returned nil before the delay elapsed")
	}
	if time.Since(start) > time.Second {
		t.Error("Pause did not return promptly on cancellation")
	}

	if err := NewGate(1, 0).Pause(context.Background()); err != nil {
		t.Errorf("zero-delay Pause error: %v", err)
	}
}

func TestBuildCodeTree(t *testing.T) {
	sk := &models.CodeSkeleton{
		Language:   "python",
		RootFolder: "taskhub",
		Folders: []models.CodeFolder{
			{Path: "app", Files: []models.CodeFile{{Name: "main.py", Content: "print('hi')"}}},
			{Path: "app/models", Files: []models.CodeFile{{Name: "user.py", Content: "class User: pass"}}},
			{Path: "", Files: []models.CodeFile{{Name: "README.md", Content: "# taskhub"}}},
		},
	}

	tree := BuildCodeTree(sk)

	var app *models.CodeTreeNode
	var readme *models.CodeTreeNode
	for _, n := range tree {
		switch n.Name {
		case "app":
			app = n
		case "README.md":
			readme = n
		}
	}
	if app == nil || app.Type != "folder" {
		t.Fatalf("app node = %+v", app)
	}
	if readme == nil || readme.Type != "file" || readme.Path != "README.md" {
		t.Errorf("readme node = %+v", readme)
	}

	var mainPy, modelsDir *models.CodeTreeNode
	for _, n := range app.Children {
		switch n.Name {
		case "main.py":
			mainPy = n
		case "models":
			modelsDir = n
		}
	}
	if mainPy == nil || mainPy.Path != "app/main.py" {
		t.Errorf("main.py node = %+v", mainPy)
	}
	if modelsDir == nil || len(modelsDir.Children) != 1 || modelsDir.Children[0].Path != "app/models/user.py" {
		t.Errorf("models dir = %+v", modelsDir)
	}
}
