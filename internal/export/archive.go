package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/storyforge/pkg/models"
)

// manifest describes the archive contents for downstream tooling.
type manifest struct {
	ProjectName string    `yaml:"project_name"`
	JobID       string    `yaml:"job_id"`
	ExportedAt  time.Time `yaml:"exported_at"`
	Counts      struct {
		Epics            int `yaml:"epics"`
		UserStories      int `yaml:"user_stories"`
		FunctionalTests  int `yaml:"functional_tests"`
		GherkinScenarios int `yaml:"gherkin_scenarios"`
		Entities         int `yaml:"entities"`
		CodeFiles        int `yaml:"code_files"`
	} `yaml:"counts"`
	Files []string `yaml:"files"`
}

// WriteArchive streams a zip archive of the job's artifacts to w. Only
// produced artifacts get entries; a manifest.yaml always leads the archive.
func WriteArchive(w io.Writer, snap models.JobSnapshot) error {
	if snap.Status != models.JobStatusCompleted {
		return models.InvalidRequestf("job %s is %s; archives require a completed job", snap.JobID, snap.Status)
	}

	zw := zip.NewWriter(w)
	r := snap.Results

	var m manifest
	m.ProjectName = r.ProjectName
	m.JobID = snap.JobID
	m.ExportedAt = time.Now().UTC()
	m.Counts.Epics = len(r.Epics)
	m.Counts.UserStories = len(r.UserStories)
	m.Counts.FunctionalTests = len(r.FunctionalTests)
	m.Counts.GherkinScenarios = len(r.GherkinScenarios)
	m.Counts.Entities = len(r.Entities)

	type entry struct {
		name  string
		write func(io.Writer) error
	}
	var entries []entry

	addJSON := func(name string, v interface{}) {
		entries = append(entries, entry{name, func(fw io.Writer) error {
			enc := json.NewEncoder(fw)
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		}})
	}

	if len(r.Epics) > 0 {
		addJSON("epics_and_stories.json", struct {
			ProjectName string             `json:"project_name"`
			Epics       []models.Epic      `json:"epics"`
			UserStories []models.UserStory `json:"user_stories"`
		}{r.ProjectName, r.Epics, r.UserStories})
	}
	if len(r.FunctionalTests) > 0 {
		addJSON("functional_tests.json", r.FunctionalTests)
	}
	if len(r.GherkinScenarios) > 0 {
		feature := RenderFeatureFile(r.GherkinScenarios)
		entries = append(entries, entry{"gherkin_tests.feature", func(fw io.Writer) error {
			_, err := io.WriteString(fw, feature)
			return err
		}})
	}
	if len(r.Entities) > 0 {
		addJSON("entities.json", r.Entities)
	}
	if r.Mermaid != "" {
		entries = append(entries, entry{"diagram.mmd", func(fw io.Writer) error {
			_, err := io.WriteString(fw, r.Mermaid)
			return err
		}})
	}
	if r.ValidationReport != nil {
		addJSON("validation_report.json", r.ValidationReport)
	}

	if r.CodeSkeleton != nil {
		root := r.CodeSkeleton.RootFolder
		if root == "" {
			root = "code"
		}
		for _, folder := range r.CodeSkeleton.Folders {
			for _, f := range folder.Files {
				name := path.Join("code", root, folder.Path, f.Name)
				content := f.Content
				entries = append(entries, entry{name, func(fw io.Writer) error {
					_, err := io.WriteString(fw, content)
					return err
				}})
				m.Counts.CodeFiles++
			}
		}
	}

	for _, e := range entries {
		m.Files = append(m.Files, e.name)
	}

	mw, err := zw.Create("manifest.yaml")
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	body, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if _, err := mw.Write(body); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	for _, e := range entries {
		fw, err := zw.Create(e.name)
		if err != nil {
			return fmt.Errorf("create %s: %w", e.name, err)
		}
		if err := e.write(fw); err != nil {
			return fmt.Errorf("write %s: %w", e.name, err)
		}
	}

	return zw.Close()
}

// ArchiveName returns the download filename for a job's archive.
func ArchiveName(snap models.JobSnapshot) string {
	name := snap.Results.ProjectName
	if name == "" {
		name = "storyforge-export"
	}
	return fmt.Sprintf("%s-artifacts.zip", sanitizeFilename(name))
}

func sanitizeFilename(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		case r == ' ':
			out = append(out, '-')
		}
	}
	if len(out) == 0 {
		return "storyforge-export"
	}
	return string(out)
}
