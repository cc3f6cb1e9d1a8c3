package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/storyforge/internal/cascade"
	"github.com/ShayCichocki/storyforge/internal/config"
	"github.com/ShayCichocki/storyforge/internal/generator"
	"github.com/ShayCichocki/storyforge/internal/parser"
	"github.com/ShayCichocki/storyforge/internal/pipeline"
	"github.com/ShayCichocki/storyforge/internal/registry"
	"github.com/ShayCichocki/storyforge/pkg/models"
)

// stubGenerator produces one epic with one story and minimal derived
// artifacts, enough to exercise every route.
type stubGenerator struct{}

var _ generator.Generator = (*stubGenerator)(nil)

func (stubGenerator) GenerateEpicsAndStories(_ context.Context, req generator.EpicsRequest) (*generator.EpicsAndStoriesResult, error) {
	if req.ExistingEpic != nil {
		return &generator.EpicsAndStoriesResult{
			Stories: []models.UserStory{{ID: "story-2", EpicID: req.ExistingEpic.ID, Title: "Another story"}},
		}, nil
	}
	return &generator.EpicsAndStoriesResult{
		ProjectName: "TaskHub",
		Epics:       []models.Epic{{ID: "epic-1", Name: "Accounts"}},
		Stories: []models.UserStory{
			{ID: "story-1", EpicID: "epic-1", Title: "Sign up", SourceChunks: []string{"chunk_1"}},
		},
	}, nil
}

func (stubGenerator) GenerateDataModel(context.Context, generator.DataModelRequest) (*generator.DataModelResult, error) {
	return &generator.DataModelResult{
		Entities: []models.Entity{{Name: "User", SourceStoryIDs: []string{"story-1"}}},
		Mermaid:  "erDiagram",
	}, nil
}

func (stubGenerator) GenerateFunctionalTests(_ context.Context, req generator.TestsRequest) (*generator.FunctionalTestsResult, error) {
	var tests []models.FunctionalTest
	for _, st := range req.Stories {
		tests = append(tests, models.FunctionalTest{ID: "ft-" + st.ID, StoryID: st.ID, Title: "Verify " + st.Title})
	}
	return &generator.FunctionalTestsResult{Tests: tests}, nil
}

func (stubGenerator) GenerateGherkinScenarios(_ context.Context, req generator.TestsRequest) (*generator.GherkinResult, error) {
	var scenarios []models.GherkinScenario
	for _, st := range req.Stories {
		scenarios = append(scenarios, models.GherkinScenario{
			ID: "gs-" + st.ID, StoryID: st.ID, FeatureName: "Feature", ScenarioName: st.Title,
		})
	}
	return &generator.GherkinResult{Scenarios: scenarios}, nil
}

func (stubGenerator) GenerateCodeSkeleton(_ context.Context, req generator.SkeletonRequest) (*generator.CodeSkeletonResult, error) {
	sk := &models.CodeSkeleton{
		Language:   "python",
		RootFolder: req.ProjectName,
		Folders:    []models.CodeFolder{{Path: "app", Files: []models.CodeFile{{Name: "main.py", Content: "pass"}}}},
	}
	return &generator.CodeSkeletonResult{Skeleton: sk, Tree: generator.BuildCodeTree(sk)}, nil
}

func (stubGenerator) ValidateDocument(context.Context, generator.ValidationRequest) (*generator.ValidationResult, error) {
	return &generator.ValidationResult{
		Report: &models.ValidationReport{OverallScore: 75, Summary: "workable"},
		GapFixes: []models.GapFix{
			{ID: "gap-1", GapType: "ambiguity", Suggestion: "Pin down the SLA", Disposition: models.GapFixPending},
		},
	}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Pipeline.StageDelay = 0
	reg := registry.New(registry.NewMemoryStore())
	t.Cleanup(func() { reg.Close() })

	gen := stubGenerator{}
	gate := generator.NewGate(2, 0)
	orch := pipeline.NewOrchestrator(cfg, gen, parser.NewTextParser(), reg, gate, pipeline.NopLogger())
	analyzer := cascade.NewAnalyzer(cfg, reg, gen)
	return New(cfg, orch, analyzer)
}

func uploadRequest(t *testing.T, mode string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", "requirements.md")
	require.NoError(t, err)
	_, err = fw.Write([]byte("1 Overview\nA task manager for teams.\n\n2 Requirements\nUsers sign up with email."))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("instructions", "keep stories small"))
	if mode != "" {
		require.NoError(t, mw.WriteField("mode", mode))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// createStagedJob uploads a document in staged mode and returns the job id.
func createStagedJob(t *testing.T, s *Server) string {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "staged"))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var snap models.JobSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.NotEmpty(t, snap.JobID)
	return snap.JobID
}

func doJSON(t *testing.T, s *Server, method, url string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, url, rd)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestCreateJob_MissingFile(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("instructions", "hello"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStagedWorkflowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	jobID := createStagedJob(t, s)

	// Unknown stage name.
	rec := doJSON(t, s, http.MethodPost, "/api/jobs/"+jobID+"/stages/deployment", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Run the epics stage.
	rec = doJSON(t, s, http.MethodPost, "/api/jobs/"+jobID+"/stages/epics", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stageRes pipeline.StageResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stageRes))
	assert.False(t, stageRes.AlreadyCompleted)

	// Idempotent re-entry.
	rec = doJSON(t, s, http.MethodPost, "/api/jobs/"+jobID+"/stages/epics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stageRes))
	assert.True(t, stageRes.AlreadyCompleted)

	// Status shows artifacts.
	rec = doJSON(t, s, http.MethodGet, "/api/jobs/"+jobID+"/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.JobSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Len(t, snap.Results.Epics, 1)
	assert.Len(t, snap.Results.UserStories, 1)
}

func TestEditAndCascadeOverHTTP(t *testing.T) {
	s := newTestServer(t)
	jobID := createStagedJob(t, s)

	rec := doJSON(t, s, http.MethodPost, "/api/jobs/"+jobID+"/stages/epics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, s, http.MethodPost, "/api/jobs/"+jobID+"/stages/functional_tests", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Edit the story; it gets flagged.
	rec = doJSON(t, s, http.MethodPut, "/api/jobs/"+jobID+"/stories/story-1", map[string]string{
		"title": "Sign up quickly", "role": "visitor", "goal": "register", "benefit": "start working",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var story models.UserStory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &story))
	assert.True(t, story.RegenerationNeeded)

	// Impact before regeneration.
	rec = doJSON(t, s, http.MethodGet, "/api/jobs/"+jobID+"/stories/story-1/impact", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var impact models.ImpactReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &impact))
	assert.Equal(t, 1, impact.AffectedFunctionalTests)
	assert.Equal(t, models.RiskLow, impact.Risk)

	// Kick off regeneration and poll the task.
	rec = doJSON(t, s, http.MethodPost, "/api/jobs/"+jobID+"/stories/story-1/regenerate", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var task cascade.TaskView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	require.NotEmpty(t, task.TaskID)

	deadline := time.After(2 * time.Second)
	for task.Status == cascade.TaskRunning {
		select {
		case <-deadline:
			t.Fatal("regeneration task did not finish")
		case <-time.After(5 * time.Millisecond):
		}
		rec = doJSON(t, s, http.MethodGet, "/api/tasks/"+task.TaskID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	}
	assert.Equal(t, cascade.TaskCompleted, task.Status)

	// Delete the epic; cascade counts come back.
	rec = doJSON(t, s, http.MethodDelete, "/api/jobs/"+jobID+"/epics/epic-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var delRes models.DeleteEpicResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &delRes))
	assert.Equal(t, 1, delRes.DeletedStories)

	// Gone now.
	rec = doJSON(t, s, http.MethodDelete, "/api/jobs/"+jobID+"/epics/epic-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStagedWithDisabledStagesOverHTTP(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "requirements.md")
	require.NoError(t, err)
	_, err = fw.Write([]byte("1 Overview\nA task manager for teams.\n\n2 Requirements\nUsers sign up with email."))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("artifacts", `{"epics_and_stories":true,"functional_tests":true}`))
	require.NoError(t, mw.WriteField("mode", "staged"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var snap models.JobSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	jobID := snap.JobID

	// Functional tests follow epics directly; the disabled data model
	// stage is neither required nor reachable.
	rec = doJSON(t, s, http.MethodPost, "/api/jobs/"+jobID+"/stages/epics", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = doJSON(t, s, http.MethodPost, "/api/jobs/"+jobID+"/stages/functional_tests", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, s, http.MethodPost, "/api/jobs/"+jobID+"/stages/data_model", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/jobs/"+jobID+"/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, models.JobStatusCompleted, snap.Status)
	assert.Len(t, snap.Results.FunctionalTests, 1)
	assert.Empty(t, snap.Results.Entities)
}

func TestValidationFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	jobID := createStagedJob(t, s)

	rec := doJSON(t, s, http.MethodPost, "/api/jobs/"+jobID+"/validate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Report   *models.ValidationReport `json:"report"`
		GapFixes []models.GapFix          `json:"gap_fixes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.GapFixes, 1)
	assert.Equal(t, 75, out.Report.OverallScore)

	rec = doJSON(t, s, http.MethodPost,
		fmt.Sprintf("/api/jobs/%s/gap-fixes/%s", jobID, out.GapFixes[0].ID),
		map[string]string{"disposition": "accepted"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, s, http.MethodPost,
		fmt.Sprintf("/api/jobs/%s/gap-fixes/%s", jobID, out.GapFixes[0].ID),
		map[string]string{"disposition": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArchiveDownload(t *testing.T) {
	s := newTestServer(t)
	jobID := createStagedJob(t, s)

	// Archive requires completion.
	rec := doJSON(t, s, http.MethodGet, "/api/jobs/"+jobID+"/archive", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, stage := range []string{"epics", "data_model", "functional_tests", "gherkin_tests", "code_generation"} {
		rec = doJSON(t, s, http.MethodPost, "/api/jobs/"+jobID+"/stages/"+stage, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodGet, "/api/jobs/"+jobID+"/archive", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "TaskHub-artifacts.zip")
	assert.NotZero(t, rec.Body.Len())
}

func TestJobNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/jobs/nope/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateMoreStoriesOverHTTP(t *testing.T) {
	s := newTestServer(t)
	jobID := createStagedJob(t, s)

	rec := doJSON(t, s, http.MethodPost, "/api/jobs/"+jobID+"/stages/epics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/jobs/"+jobID+"/epics/epic-1/stories",
		map[string][]string{"context_ids": {"chunk_1"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Stories []models.UserStory `json:"stories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Stories, 1)
	assert.Equal(t, "epic-1", out.Stories[0].EpicID)
}
