package analysis

import "fmt"

const genericAction = "Review the flagged section and revise it for consistency"

var conflictTitles = map[ConflictType]string{
	ConflictCharacter:  "Fix character consistency",
	ConflictTimeline:   "Fix timeline ordering",
	ConflictLogic:      "Fix plot logic",
	ConflictMotivation: "Strengthen character motivation",
}

// recommend turns findings into a prioritized action list. It performs no
// analysis of its own and never emits the same recommendation twice.
func recommend(p Policy, conflicts []Conflict, arcs []CharacterArcAnalysis, structure PlotStructureAnalysis) []Recommendation {
	recs := []Recommendation{}
	seen := make(map[string]bool)
	add := func(r Recommendation) {
		if seen[r.ID] {
			return
		}
		seen[r.ID] = true
		recs = append(recs, r)
	}

	high := 0
	for _, c := range conflicts {
		if high >= p.Recommendation.MaxHighPriority {
			break
		}
		if c.Severity != SeverityHigh {
			continue
		}
		high++
		action := c.SuggestedFix
		if action == "" {
			action = genericAction
		}
		add(Recommendation{
			ID:              "rec-" + c.ID,
			Type:            string(c.Type),
			Priority:        PriorityHigh,
			Title:           conflictTitles[c.Type],
			Description:     c.Description,
			SuggestedAction: action,
		})
	}

	weak := 0
	for _, a := range arcs {
		if a.Completeness < p.Completeness.DevelopmentThreshold {
			weak++
		}
	}
	if weak > 0 {
		add(Recommendation{
			ID:              idRecDevelopment,
			Type:            "character",
			Priority:        PriorityMedium,
			Title:           "Develop underwritten characters",
			Description:     fmt.Sprintf("%d character(s) have arc completeness below %d%%", weak, p.Completeness.DevelopmentThreshold),
			SuggestedAction: "Expand their descriptions, relationships and appearances across chapters",
		})
	}

	if structure.Pacing.OverallPace == PaceTooSlow {
		add(Recommendation{
			ID:              idRecPacing,
			Type:            "pacing",
			Priority:        PriorityMedium,
			Title:           "Increase story momentum",
			Description:     fmt.Sprintf("Action density is %.2f events per chapter", structure.Pacing.ActionDensity),
			SuggestedAction: "Add plot events to quiet chapters or merge chapters with little happening",
		})
	}
	return recs
}
