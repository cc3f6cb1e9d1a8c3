package pipeline

import (
	"context"

	"github.com/ShayCichocki/storyforge/internal/generator"
	"github.com/ShayCichocki/storyforge/pkg/models"
)

// ValidateDocument assesses the job's source document and stores the
// quality report together with suggested gap fixes. Fixes start pending;
// accepted or edited fixes feed every later generation call.
func (o *Orchestrator) ValidateDocument(ctx context.Context, jobID string) (*models.ValidationReport, []models.GapFix, error) {
	j, err := o.reg.Get(jobID)
	if err != nil {
		return nil, nil, err
	}

	if err := o.ensureParsed(ctx, j); err != nil {
		return nil, nil, err
	}

	result, err := o.gen.ValidateDocument(ctx, generator.ValidationRequest{
		Request: o.baseRequest(j),
	})
	if err != nil {
		return nil, nil, err
	}

	j.Store().SetValidation(result.Report, result.GapFixes)
	o.checkpoint(j)
	o.debug.Log("job %s validated: score=%d fixes=%d", jobID, result.Report.OverallScore, len(result.GapFixes))
	return result.Report, result.GapFixes, nil
}

// ResolveGapFix records the user's decision on a suggested fix. finalText
// is required for the edited disposition and ignored otherwise.
func (o *Orchestrator) ResolveGapFix(jobID, fixID string, disposition models.GapFixDisposition, finalText string) error {
	if disposition == models.GapFixEdited && finalText == "" {
		return models.InvalidRequestf("edited disposition requires final text")
	}
	if disposition != models.GapFixEdited {
		finalText = ""
	}

	j, err := o.reg.Get(jobID)
	if err != nil {
		return err
	}
	if err := j.Store().UpdateGapFix(fixID, disposition, finalText); err != nil {
		return err
	}
	o.checkpoint(j)
	return nil
}
