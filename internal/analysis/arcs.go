package analysis

import (
	"fmt"
	"unicode/utf8"

	"github.com/vampirenirmal/storyscope/internal/narrative"
)

// analyzeArcs scores every character's arc in snapshot order.
func analyzeArcs(ix *storyIndex, p Policy) []CharacterArcAnalysis {
	arcs := make([]CharacterArcAnalysis, 0, len(ix.snap.Characters))
	for i := range ix.snap.Characters {
		arcs = append(arcs, analyzeArc(ix, p, &ix.snap.Characters[i]))
	}
	return arcs
}

func analyzeArc(ix *storyIndex, p Policy, c *narrative.Character) CharacterArcAnalysis {
	apps := ix.appearances(c)
	name := displayName(c)

	return CharacterArcAnalysis{
		CharacterID:  c.ID,
		ArcType:      arcTypeFor(c.Role),
		Completeness: completeness(p.Completeness, c, len(apps)),
		KeyMoments:   keyMoments(name, apps),
		Issues:       arcIssues(p.Completeness, c, len(apps)),
	}
}

// arcTypeFor derives the arc from the role alone; the character's trajectory
// through events is not measured.
func arcTypeFor(r narrative.Role) ArcType {
	switch r {
	case narrative.RoleProtagonist:
		return ArcPositive
	case narrative.RoleAntagonist:
		return ArcNegative
	default:
		return ArcFlat
	}
}

func completeness(w Completeness, c *narrative.Character, appearances int) int {
	score := 0
	switch desc := utf8.RuneCountInString(c.Description); {
	case desc > w.RichDescriptionLength:
		score += w.RichDescription
	case desc > 0:
		score += w.AnyDescription
	}
	if len(c.Relationships) > 0 {
		score += w.Relationships
	}
	if appearances > 1 {
		score += w.MultipleAppearances
	}
	if c.Role != narrative.RoleMinor {
		score += w.NonMinorRole
	} else {
		score += w.MinorRole
	}
	return min(max(score, 0), 100)
}

func keyMoments(name string, apps []*narrative.Chapter) []ArcMoment {
	moments := []ArcMoment{}
	if len(apps) == 0 {
		return moments
	}

	first := apps[0]
	moments = append(moments, ArcMoment{
		ChapterID:   first.ID,
		Type:        MomentIntroduction,
		Description: fmt.Sprintf("%s is introduced in chapter %d", name, first.Number),
	})
	if len(apps) < 2 {
		return moments
	}

	mid := apps[len(apps)/2]
	last := apps[len(apps)-1]
	moments = append(moments,
		ArcMoment{
			ChapterID:   mid.ID,
			Type:        MomentDevelopment,
			Description: fmt.Sprintf("%s develops in chapter %d", name, mid.Number),
		},
		ArcMoment{
			ChapterID:   last.ID,
			Type:        MomentResolution,
			Description: fmt.Sprintf("%s's arc resolves in chapter %d", name, last.Number),
		},
	)
	return moments
}

func arcIssues(w Completeness, c *narrative.Character, appearances int) []string {
	issues := []string{}
	if appearances == 0 {
		issues = append(issues, "Character never appears in the story")
	}
	if utf8.RuneCountInString(c.Description) < w.MinDescription {
		issues = append(issues, "Character has insufficient development")
	}
	if len(c.Relationships) == 0 && c.Role != narrative.RoleMinor {
		issues = append(issues, "Character has no relationships")
	}
	return issues
}
