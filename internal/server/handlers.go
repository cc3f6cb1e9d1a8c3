package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ShayCichocki/storyforge/internal/export"
	"github.com/ShayCichocki/storyforge/internal/pipeline"
	"github.com/ShayCichocki/storyforge/pkg/models"
)

// handleCreateJob accepts a multipart upload: the document under "file",
// optional "instructions", optional "artifacts" (toggles as JSON), and
// optional "mode" ("auto" runs all stages in the background, "staged"
// leaves the job pending for AdvanceStage calls).
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.Server.MaxUploadBytes); err != nil {
		writeError(w, models.InvalidRequestf("parse upload: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, models.InvalidRequestf("missing file field"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, models.InvalidRequestf("read upload: %v", err))
		return
	}

	toggles := models.AllArtifacts()
	if raw := r.FormValue("artifacts"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &toggles); err != nil {
			writeError(w, models.InvalidRequestf("decode artifacts field: %v", err))
			return
		}
	}

	j, err := s.orch.CreateJob(data, header.Filename, r.FormValue("instructions"), toggles)
	if err != nil {
		writeError(w, err)
		return
	}

	if r.FormValue("mode") != "staged" {
		go func() {
			if err := s.orch.RunAll(context.Background(), j.ID()); err != nil {
				log.Printf("[server] job %s run: %v", j.ID(), err)
			}
		}()
	}

	writeJSON(w, http.StatusAccepted, j.Snapshot())
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Registry().List())
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	snap, err := s.orch.Snapshot(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAdvanceStage(w http.ResponseWriter, r *http.Request) {
	result, err := s.orch.AdvanceStage(r.Context(), chi.URLParam(r, "jobID"), chi.URLParam(r, "stage"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleValidateDocument(w http.ResponseWriter, r *http.Request) {
	report, fixes, err := s.orch.ValidateDocument(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Report   *models.ValidationReport `json:"report"`
		GapFixes []models.GapFix          `json:"gap_fixes"`
	}{report, fixes})
}

func (s *Server) handleResolveGapFix(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Disposition models.GapFixDisposition `json:"disposition"`
		FinalText   string                   `json:"final_text"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	err := s.orch.ResolveGapFix(chi.URLParam(r, "jobID"), chi.URLParam(r, "fixID"), body.Disposition, body.FinalText)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEditEpic(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	epic, err := s.analyzer.EditEpic(chi.URLParam(r, "jobID"), chi.URLParam(r, "epicID"), body.Name, body.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, epic)
}

func (s *Server) handleDeleteEpic(w http.ResponseWriter, r *http.Request) {
	result, err := s.analyzer.DeleteEpic(chi.URLParam(r, "jobID"), chi.URLParam(r, "epicID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGenerateMoreStories(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ContextIDs []string `json:"context_ids"`
	}
	// Body is optional; absent means whole-document context.
	if r.ContentLength > 0 {
		if err := decodeBody(r, &body); err != nil {
			writeError(w, err)
			return
		}
	}

	stories, err := s.orch.GenerateMoreStories(r.Context(), chi.URLParam(r, "jobID"), chi.URLParam(r, "epicID"), body.ContextIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Stories []models.UserStory `json:"stories"`
	}{stories})
}

func (s *Server) handleEditStory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title   string `json:"title"`
		Role    string `json:"role"`
		Goal    string `json:"goal"`
		Benefit string `json:"benefit"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	story, err := s.analyzer.EditStory(chi.URLParam(r, "jobID"), chi.URLParam(r, "storyID"),
		body.Title, body.Role, body.Goal, body.Benefit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, story)
}

func (s *Server) handleDeleteStory(w http.ResponseWriter, r *http.Request) {
	result, err := s.analyzer.DeleteStory(chi.URLParam(r, "jobID"), chi.URLParam(r, "storyID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEditCriteria(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Criteria []string `json:"criteria"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	story, err := s.analyzer.EditAcceptanceCriteria(chi.URLParam(r, "jobID"), chi.URLParam(r, "storyID"), body.Criteria)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, story)
}

func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	report, err := s.analyzer.Impact(chi.URLParam(r, "jobID"), chi.URLParam(r, "storyID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	task, err := s.analyzer.StartRegeneration(context.Background(), chi.URLParam(r, "jobID"), chi.URLParam(r, "storyID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, task.View())
}

func (s *Server) handleMoreTests(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Functional bool `json:"functional"`
		Gherkin    bool `json:"gherkin"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.orch.GenerateMoreTestsForStory(r.Context(), chi.URLParam(r, "jobID"), chi.URLParam(r, "storyID"),
		pipeline.MoreTestsOptions{Functional: body.Functional, Gherkin: body.Gherkin})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteFunctionalTest(w http.ResponseWriter, r *http.Request) {
	if err := s.analyzer.DeleteFunctionalTest(chi.URLParam(r, "jobID"), chi.URLParam(r, "testID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleDeleteScenario(w http.ResponseWriter, r *http.Request) {
	if err := s.analyzer.DeleteScenario(chi.URLParam(r, "jobID"), chi.URLParam(r, "scenarioID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.analyzer.Tasks().Get(chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task.View())
}

func (s *Server) handleDownloadArchive(w http.ResponseWriter, r *http.Request) {
	snap, err := s.orch.Snapshot(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, err)
		return
	}

	if snap.Status != models.JobStatusCompleted {
		writeError(w, models.InvalidRequestf("job %s is %s; archives require a completed job", snap.JobID, snap.Status))
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.ArchiveName(snap)+`"`)
	if err := export.WriteArchive(w, snap); err != nil {
		// Headers are already out; the truncated zip is the best signal left.
		log.Printf("[server] archive job %s: %v", snap.JobID, err)
	}
}
