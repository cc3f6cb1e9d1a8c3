// Package export renders job artifacts into downloadable formats: a zip
// archive of JSON artifacts, a .feature file, the diagram source, and the
// generated code scaffold.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/storyforge/pkg/models"
)

// RenderFeatureFile renders scenarios as Gherkin feature text, grouped by
// feature name. Scenario order within a feature follows input order.
func RenderFeatureFile(scenarios []models.GherkinScenario) string {
	if len(scenarios) == 0 {
		return ""
	}

	grouped := make(map[string][]models.GherkinScenario)
	var order []string
	for _, sc := range scenarios {
		name := sc.FeatureName
		if name == "" {
			name = "Generated scenarios"
		}
		if _, seen := grouped[name]; !seen {
			order = append(order, name)
		}
		grouped[name] = append(grouped[name], sc)
	}
	sort.Strings(order)

	var b strings.Builder
	for i, feature := range order {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Feature: %s\n", feature)
		for _, sc := range grouped[feature] {
			fmt.Fprintf(&b, "\n  Scenario: %s\n", sc.ScenarioName)
			writeClauses(&b, "Given", sc.Given)
			writeClauses(&b, "When", sc.When)
			writeClauses(&b, "Then", sc.Then)
		}
	}
	return b.String()
}

func writeClauses(b *strings.Builder, keyword string, clauses []string) {
	for i, clause := range clauses {
		kw := keyword
		if i > 0 {
			kw = "And"
		}
		fmt.Fprintf(b, "    %s %s\n", kw, clause)
	}
}
