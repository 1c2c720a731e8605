package analysis

import (
	"fmt"

	"github.com/vampirenirmal/storyscope/internal/narrative"
)

const (
	pacingSlowStart    = "slow_start"
	plotHoleUnresolved = "unresolved_thread"
)

func analyzeStructure(ix *storyIndex, p Policy) PlotStructureAnalysis {
	return PlotStructureAnalysis{
		Structure:    classifyStructure(ix),
		Pacing:       analyzePacing(ix, p.Pacing),
		PlotHoles:    findPlotHoles(ix),
		TensionCurve: tensionCurve(ix, p.Tension),
	}
}

func classifyStructure(ix *storyIndex) string {
	if ix.has(narrative.BeatIncitingIncident) &&
		ix.has(narrative.BeatClimax) &&
		ix.has(narrative.BeatResolution) {
		return StructureThreeAct
	}
	return StructureCustom
}

// analyzePacing looks for an inciting incident in the opening window and
// classifies the overall action density. A story without chapters has no
// pace to judge and is reported as appropriate.
func analyzePacing(ix *storyIndex, w Pacing) PacingAnalysis {
	pacing := PacingAnalysis{
		OverallPace: PaceAppropriate,
		Issues:      []PacingIssue{},
	}
	total := len(ix.chapters)
	if total == 0 {
		return pacing
	}

	window := (total + w.OpeningDivisor - 1) / w.OpeningDivisor
	opening := ix.chapters[:window]
	incited := false
	for _, ch := range opening {
		for i := range ch.Events {
			if ix.beat(&ch.Events[i]) == narrative.BeatIncitingIncident {
				incited = true
			}
		}
	}
	if !incited {
		last := opening[len(opening)-1]
		pacing.Issues = append(pacing.Issues, PacingIssue{
			Type:      pacingSlowStart,
			ChapterID: last.ID,
			Description: fmt.Sprintf("No inciting incident in the first %d chapters (through chapter %d)",
				window, last.Number),
		})
	}

	pacing.ActionDensity = float64(ix.snap.EventCount()) / float64(total)
	switch {
	case pacing.ActionDensity < w.SlowDensity:
		pacing.OverallPace = PaceTooSlow
	case pacing.ActionDensity > w.FastDensity:
		pacing.OverallPace = PaceTooFast
	}
	return pacing
}

// findPlotHoles reports rising action or a climax that never resolves.
func findPlotHoles(ix *storyIndex) []PlotHole {
	holes := []PlotHole{}
	if ix.has(narrative.BeatResolution) {
		return holes
	}
	open := ix.eventsOf(narrative.BeatRisingAction, narrative.BeatClimax)
	if len(open) == 0 {
		return holes
	}

	var chapters []string
	for _, e := range open {
		if n := len(chapters); n == 0 || chapters[n-1] != e.chapter.ID {
			chapters = append(chapters, e.chapter.ID)
		}
	}
	return append(holes, PlotHole{
		ID:               contentID("plot-hole-unresolved", chapters...),
		Type:             plotHoleUnresolved,
		Description:      "The story builds tension but never resolves it",
		ChaptersInvolved: chapters,
		Severity:         SeverityHigh,
		SuggestedFix:     "Add a resolution that pays off the rising action and climax",
	})
}

// tensionCurve weights each chapter's events by beat and adds a bonus per
// distinct character present, clamped to [0,100].
func tensionCurve(ix *storyIndex, w Tension) []TensionPoint {
	curve := make([]TensionPoint, 0, len(ix.chapters))
	for _, ch := range ix.chapters {
		level := 0
		events := make([]string, 0, len(ch.Events))
		for i := range ch.Events {
			level += w.Weight(ix.beat(&ch.Events[i]))
			events = append(events, ch.Events[i].Description)
		}
		level += distinctCount(ch.CharacterIDs) * w.PerCharacter

		curve = append(curve, TensionPoint{
			ChapterID:    ch.ID,
			TensionLevel: min(max(level, 0), 100),
			Events:       events,
		})
	}
	return curve
}

func distinctCount(ids []string) int {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}
