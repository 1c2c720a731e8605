package analysis

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/vampirenirmal/storyscope/internal/narrative"
)

// checkCharacters flags unused characters, long absences and protagonists
// who are missing from too much of the story.
func checkCharacters(ix *storyIndex, p Policy) []Conflict {
	var conflicts []Conflict
	total := len(ix.chapters)

	for i := range ix.snap.Characters {
		c := &ix.snap.Characters[i]
		name := displayName(c)
		apps := ix.appearances(c)

		if len(c.Appearances) == 0 {
			conflicts = append(conflicts, Conflict{
				ID:           contentID("character-unused", c.ID),
				Type:         ConflictCharacter,
				Severity:     SeverityMedium,
				Description:  fmt.Sprintf("%s is defined but never appears in any chapter", name),
				SuggestedFix: fmt.Sprintf("Introduce %s in a chapter or remove the character", name),
				Confidence:   p.Confidence.UnusedCharacter,
				CharacterID:  c.ID,
			})
		}

		for j := 1; j < len(apps); j++ {
			prev, next := apps[j-1], apps[j]
			if next.Number-prev.Number <= p.Consistency.GapThreshold {
				continue
			}
			conflicts = append(conflicts, Conflict{
				ID:       contentID("character-gap", c.ID, prev.ID, next.ID),
				Type:     ConflictCharacter,
				Severity: SeverityLow,
				Description: fmt.Sprintf("%s disappears between chapter %d and chapter %d",
					name, prev.Number, next.Number),
				SuggestedFix: fmt.Sprintf("Reference %s between chapters %d and %d or explain the absence",
					name, prev.Number, next.Number),
				Confidence:  p.Confidence.AppearanceGap,
				CharacterID: c.ID,
			})
		}

		if c.Role == narrative.RoleProtagonist && total > 0 &&
			float64(len(apps)) < p.Consistency.ProtagonistCoverage*float64(total) {
			absent := int(math.Round((1 - float64(len(apps))/float64(total)) * 100))
			conflicts = append(conflicts, Conflict{
				ID:           contentID("character-protagonist-coverage", c.ID),
				Type:         ConflictCharacter,
				Severity:     SeverityHigh,
				Description:  fmt.Sprintf("Protagonist %s is absent from %d%% of chapters", name, absent),
				SuggestedFix: fmt.Sprintf("Give %s a presence in more chapters", name),
				Confidence:   p.Confidence.ProtagonistCoverage,
				CharacterID:  c.ID,
			})
		}
	}
	return conflicts
}

// checkTimeline flags competing climaxes and a climax that lands before the
// rising action has finished.
func checkTimeline(ix *storyIndex, p Policy) []Conflict {
	var conflicts []Conflict
	climaxes := ix.eventsOf(narrative.BeatClimax)

	if len(climaxes) > 1 {
		conflicts = append(conflicts, Conflict{
			ID:       idMultipleClimax,
			Type:     ConflictTimeline,
			Severity: SeverityHigh,
			Description: fmt.Sprintf("Found %d climax events (chapters %s); stories should typically have only one main climax",
				len(climaxes), chapterNumbers(climaxes)),
			SuggestedFix: "Keep a single main climax and recast the others as rising or falling action",
			Confidence:   p.Confidence.MultipleClimax,
		})
	}

	rising := ix.eventsOf(narrative.BeatRisingAction)
	if len(climaxes) > 0 && len(rising) > 0 {
		firstClimax := climaxes[0].chapter.Number
		lastRising := rising[0].chapter.Number
		for _, r := range rising {
			lastRising = max(lastRising, r.chapter.Number)
		}
		if firstClimax < lastRising {
			conflicts = append(conflicts, Conflict{
				ID:       idClimaxBeforeRising,
				Type:     ConflictTimeline,
				Severity: SeverityHigh,
				Description: fmt.Sprintf("The climax in chapter %d comes before rising action in chapter %d",
					firstClimax, lastRising),
				SuggestedFix: "Move the climax after the rising action or reclassify the later events",
				Confidence:   p.Confidence.ClimaxBeforeRising,
			})
		}
	}
	return conflicts
}

// checkPlotLogic flags a missing inciting incident and a resolution with
// nothing to resolve. A story without chapters has no plot to judge.
func checkPlotLogic(ix *storyIndex, p Policy) []Conflict {
	if len(ix.chapters) == 0 {
		return nil
	}
	var conflicts []Conflict

	if !ix.has(narrative.BeatIncitingIncident) {
		conflicts = append(conflicts, Conflict{
			ID:           idMissingInciting,
			Type:         ConflictLogic,
			Severity:     SeverityHigh,
			Description:  "The story has no inciting incident",
			SuggestedFix: "Add an event early in the story that sets the main conflict in motion",
			Confidence:   p.Confidence.MissingInciting,
		})
	}

	if ix.has(narrative.BeatResolution) && !ix.has(narrative.BeatClimax) {
		conflicts = append(conflicts, Conflict{
			ID:           idResolutionWithoutClimax,
			Type:         ConflictLogic,
			Severity:     SeverityMedium,
			Description:  "The story resolves without ever reaching a climax",
			SuggestedFix: "Add a climax that the resolution can follow from",
			Confidence:   p.Confidence.ResolutionWithoutClimax,
		})
	}
	return conflicts
}

// checkMotivation flags protagonists and antagonists whose motivation is
// underdeveloped. Supporting and minor characters are exempt.
func checkMotivation(ix *storyIndex, p Policy) []Conflict {
	var conflicts []Conflict

	for i := range ix.snap.Characters {
		c := &ix.snap.Characters[i]
		if !c.Role.IsCore() {
			continue
		}
		name := displayName(c)

		if utf8.RuneCountInString(c.Description) < p.Consistency.MinCoreDescription {
			severity := SeverityMedium
			if c.Role == narrative.RoleProtagonist {
				severity = SeverityHigh
			}
			conflicts = append(conflicts, Conflict{
				ID:           contentID("motivation-description", c.ID),
				Type:         ConflictMotivation,
				Severity:     severity,
				Description:  fmt.Sprintf("%s (%s) lacks a clear motivation", name, c.Role),
				SuggestedFix: fmt.Sprintf("Describe what %s wants and why", name),
				Confidence:   p.Confidence.MotivationDescription,
				CharacterID:  c.ID,
			})
		}

		if len(c.Relationships) == 0 {
			conflicts = append(conflicts, Conflict{
				ID:           contentID("motivation-relationships", c.ID),
				Type:         ConflictMotivation,
				Severity:     SeverityMedium,
				Description:  fmt.Sprintf("%s (%s) has no relationships to other characters", name, c.Role),
				SuggestedFix: fmt.Sprintf("Connect %s to the people their goals affect", name),
				Confidence:   p.Confidence.MotivationRelationship,
				CharacterID:  c.ID,
			})
		}
	}
	return conflicts
}

func chapterNumbers(events []placedEvent) string {
	nums := make([]string, 0, len(events))
	for _, e := range events {
		nums = append(nums, fmt.Sprint(e.chapter.Number))
	}
	return strings.Join(nums, ", ")
}
