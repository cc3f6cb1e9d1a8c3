// Package cascade implements user edits to generated artifacts and the
// dependency-aware invalidation they trigger: deletes cascade to derived
// tests, edits flag stories for regeneration, and regeneration swaps
// downstream artifacts atomically.
package cascade

import (
	"github.com/ShayCichocki/storyforge/internal/config"
	"github.com/ShayCichocki/storyforge/pkg/models"
)

// estimate computes the projected regeneration cost and risk band for a
// story's downstream artifacts. Cost is linear in affected tests and
// entities; risk bands are monotonic in both counts.
func estimate(cfg config.CascadeConfig, tests, entities int) (seconds int, risk models.RiskLevel) {
	seconds = tests*cfg.TestCostSeconds + entities*cfg.EntityCostSeconds

	risk = models.RiskLow
	if tests > cfg.MediumTests || entities > cfg.MediumEntities {
		risk = models.RiskMedium
	}
	if tests > cfg.HighTests || entities > cfg.HighEntities {
		risk = models.RiskHigh
	}
	return seconds, risk
}
