package analysis

import (
	"reflect"
	"strings"
	"testing"

	"github.com/vampirenirmal/storyscope/internal/narrative"
)

func index(s *narrative.Snapshot) *storyIndex {
	return newStoryIndex(s, false)
}

func TestCheckCharactersGap(t *testing.T) {
	snap := &narrative.Snapshot{
		Characters: []narrative.Character{{
			ID: "mara", Name: "Mara", Role: narrative.RoleSupporting,
			Appearances: []string{"ch6", "ch1", "ch2"},
		}},
		Chapters: chapters(6),
	}

	conflicts := checkCharacters(index(snap), DefaultPolicy())
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1: %+v", len(conflicts), conflicts)
	}
	c := conflicts[0]
	if c.Severity != SeverityLow || c.Type != ConflictCharacter {
		t.Errorf("conflict = %+v", c)
	}
	if !strings.Contains(c.Description, "between chapter 2 and chapter 6") {
		t.Errorf("description = %q", c.Description)
	}
}

func TestCheckCharactersCoverageThreshold(t *testing.T) {
	tests := []struct {
		name        string
		appearances []string
		want        bool
	}{
		{"below coverage", []string{"ch1", "ch2", "ch3", "ch4", "ch5"}, true},
		{"exactly at coverage", []string{"ch1", "ch2", "ch3", "ch4", "ch5", "ch6"}, false},
		{"full coverage", []string{"ch1", "ch2", "ch3", "ch4", "ch5", "ch6", "ch7", "ch8", "ch9", "ch10"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &narrative.Snapshot{
				Characters: []narrative.Character{{
					ID: "hero", Role: narrative.RoleProtagonist, Appearances: tt.appearances,
				}},
				Chapters: chapters(10),
			}
			got := false
			for _, c := range checkCharacters(index(snap), DefaultPolicy()) {
				if c.Severity == SeverityHigh {
					got = true
				}
			}
			if got != tt.want {
				t.Errorf("coverage conflict = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckTimelineClimaxBeforeRising(t *testing.T) {
	chs := chapters(3)
	chs[0].Events = []narrative.PlotEvent{event("e1", narrative.BeatClimax, "too soon")}
	chs[2].Events = []narrative.PlotEvent{event("e2", narrative.BeatRisingAction, "late build")}

	conflicts := checkTimeline(index(&narrative.Snapshot{Chapters: chs}), DefaultPolicy())
	if len(conflicts) != 1 || conflicts[0].ID != idClimaxBeforeRising {
		t.Fatalf("conflicts = %+v", conflicts)
	}

	// Without any rising action the rule has nothing to compare.
	chs[2].Events = nil
	if got := checkTimeline(index(&narrative.Snapshot{Chapters: chs}), DefaultPolicy()); len(got) != 0 {
		t.Errorf("conflicts without rising action = %+v", got)
	}
}

func TestCheckPlotLogic(t *testing.T) {
	chs := chapters(2)
	chs[1].Events = []narrative.PlotEvent{event("e1", narrative.BeatResolution, "all is well")}

	conflicts := checkPlotLogic(index(&narrative.Snapshot{Chapters: chs}), DefaultPolicy())
	var ids []string
	for _, c := range conflicts {
		ids = append(ids, c.ID)
	}
	want := []string{idMissingInciting, idResolutionWithoutClimax}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}
}

func TestCheckMotivation(t *testing.T) {
	snap := &narrative.Snapshot{
		Characters: []narrative.Character{
			{ID: "p", Role: narrative.RoleProtagonist, Description: "short"},
			{ID: "a", Role: narrative.RoleAntagonist, Description: strings.Repeat("é", 50),
				Relationships: []narrative.Relationship{{PeerID: "p"}}},
			{ID: "s", Role: narrative.RoleSupporting},
		},
	}
	conflicts := checkMotivation(index(snap), DefaultPolicy())
	if len(conflicts) != 2 {
		t.Fatalf("got %d conflicts, want 2: %+v", len(conflicts), conflicts)
	}
	for _, c := range conflicts {
		if c.CharacterID != "p" {
			t.Errorf("unexpected conflict for %s: %s", c.CharacterID, c.Description)
		}
	}
	if conflicts[0].Severity != SeverityHigh || conflicts[1].Severity != SeverityMedium {
		t.Errorf("severities = %s, %s", conflicts[0].Severity, conflicts[1].Severity)
	}
}

func TestCompleteness(t *testing.T) {
	w := DefaultPolicy().Completeness
	tests := []struct {
		name        string
		char        narrative.Character
		appearances int
		want        int
	}{
		{
			name: "fully developed",
			char: narrative.Character{Role: narrative.RoleProtagonist,
				Description:   strings.Repeat("x", 101),
				Relationships: []narrative.Relationship{{PeerID: "b"}}},
			appearances: 2,
			want:        100,
		},
		{
			name:        "bare minor",
			char:        narrative.Character{Role: narrative.RoleMinor},
			appearances: 1,
			want:        15,
		},
		{
			name:        "minor with short description",
			char:        narrative.Character{Role: narrative.RoleMinor, Description: "x"},
			appearances: 0,
			want:        25,
		},
		{
			name:        "description at the rich boundary",
			char:        narrative.Character{Role: narrative.RoleSupporting, Description: strings.Repeat("x", 100)},
			appearances: 3,
			want:        60,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := completeness(w, &tt.char, tt.appearances); got != tt.want {
				t.Errorf("completeness = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestKeyMoments(t *testing.T) {
	chs := chapters(7)
	snap := &narrative.Snapshot{
		Characters: []narrative.Character{{
			ID: "k", Name: "Kit", Role: narrative.RoleSupporting,
			Appearances: []string{"ch7", "ch1", "ch5", "ch3"},
		}},
		Chapters: chs,
	}
	arc := analyzeArc(index(snap), DefaultPolicy(), &snap.Characters[0])

	var got []string
	for _, m := range arc.KeyMoments {
		got = append(got, string(m.Type)+":"+m.ChapterID)
	}
	want := []string{"introduction:ch1", "development:ch5", "resolution:ch7"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("key moments = %v, want %v", got, want)
	}

	single := keyMoments("Kit", []*narrative.Chapter{&chs[0]})
	if len(single) != 1 || single[0].Type != MomentIntroduction {
		t.Errorf("single appearance moments = %+v", single)
	}
	if none := keyMoments("Kit", nil); none == nil || len(none) != 0 {
		t.Errorf("no appearances moments = %#v", none)
	}
}

func TestArcIssues(t *testing.T) {
	w := DefaultPolicy().Completeness
	issues := arcIssues(w, &narrative.Character{Role: narrative.RoleSupporting}, 0)
	want := []string{
		"Character never appears in the story",
		"Character has insufficient development",
		"Character has no relationships",
	}
	if !reflect.DeepEqual(issues, want) {
		t.Errorf("issues = %v, want %v", issues, want)
	}

	minor := arcIssues(w, &narrative.Character{Role: narrative.RoleMinor, Description: strings.Repeat("x", 60)}, 1)
	if len(minor) != 0 {
		t.Errorf("minor issues = %v, want none", minor)
	}
}

func TestTensionCurve(t *testing.T) {
	chs := chapters(3)
	chs[0].Events = []narrative.PlotEvent{
		event("e1", narrative.BeatClimax, "peak"),
		event("e2", narrative.BeatRisingAction, "build"),
	}
	chs[0].CharacterIDs = []string{"a", "b", "c"}
	chs[1].Events = []narrative.PlotEvent{event("e3", narrative.BeatResolution, "calm")}
	chs[1].CharacterIDs = []string{"a", "b"}
	chs[2].Events = []narrative.PlotEvent{event("e4", narrative.BeatSetup, "new thread")}

	curve := tensionCurve(index(&narrative.Snapshot{Chapters: chs}), DefaultPolicy().Tension)
	var levels []int
	for _, p := range curve {
		levels = append(levels, p.TensionLevel)
	}
	if want := []int{100, 30, 10}; !reflect.DeepEqual(levels, want) {
		t.Errorf("levels = %v, want %v", levels, want)
	}
	if !reflect.DeepEqual(curve[0].Events, []string{"peak", "build"}) {
		t.Errorf("events = %v", curve[0].Events)
	}
}

func TestAnalyzePacing(t *testing.T) {
	p := DefaultPolicy().Pacing

	t.Run("slow start", func(t *testing.T) {
		chs := chapters(6)
		chs[2].Events = []narrative.PlotEvent{event("e1", narrative.BeatIncitingIncident, "late")}
		pacing := analyzePacing(index(&narrative.Snapshot{Chapters: chs}), p)
		if len(pacing.Issues) != 1 {
			t.Fatalf("issues = %+v", pacing.Issues)
		}
		if pacing.Issues[0].Type != pacingSlowStart || pacing.Issues[0].ChapterID != "ch2" {
			t.Errorf("issue = %+v", pacing.Issues[0])
		}
		if pacing.OverallPace != PaceTooSlow {
			t.Errorf("pace = %q, want too_slow", pacing.OverallPace)
		}
	})

	t.Run("too fast", func(t *testing.T) {
		chs := chapters(1)
		for _, id := range []string{"a", "b", "c", "d"} {
			chs[0].Events = append(chs[0].Events, event(id, narrative.BeatIncitingIncident, id))
		}
		pacing := analyzePacing(index(&narrative.Snapshot{Chapters: chs}), p)
		if pacing.OverallPace != PaceTooFast || pacing.ActionDensity != 4 {
			t.Errorf("pacing = %+v", pacing)
		}
		if len(pacing.Issues) != 0 {
			t.Errorf("issues = %+v", pacing.Issues)
		}
	})

	t.Run("no chapters", func(t *testing.T) {
		pacing := analyzePacing(index(&narrative.Snapshot{}), p)
		if pacing.OverallPace != PaceAppropriate || pacing.ActionDensity != 0 || pacing.Issues == nil {
			t.Errorf("pacing = %#v", pacing)
		}
	})
}

func TestFindPlotHolesResolved(t *testing.T) {
	chs := chapters(2)
	chs[0].Events = []narrative.PlotEvent{event("e1", narrative.BeatClimax, "peak")}
	chs[1].Events = []narrative.PlotEvent{event("e2", narrative.BeatResolution, "end")}
	if holes := findPlotHoles(index(&narrative.Snapshot{Chapters: chs})); len(holes) != 0 {
		t.Errorf("holes = %+v", holes)
	}
}

func TestScore(t *testing.T) {
	p := DefaultPolicy()
	conflicts := []Conflict{{Severity: SeverityHigh}, {Severity: SeverityMedium}, {Severity: SeverityLow}}
	arcs := []CharacterArcAnalysis{{Completeness: 100}, {Completeness: 50}}
	holes := []PlotHole{{}}

	if got := score(p, conflicts, arcs, holes); got != 64 {
		t.Errorf("score = %d, want 64", got)
	}
	if got := score(p, nil, nil, nil); got != 100 {
		t.Errorf("empty score = %d, want 100", got)
	}

	many := make([]Conflict, 10)
	for i := range many {
		many[i].Severity = SeverityHigh
	}
	if got := score(p, many, arcs, holes); got != 0 {
		t.Errorf("clamped score = %d, want 0", got)
	}

	// Adding a high-severity conflict never raises the score.
	base := score(p, conflicts, arcs, holes)
	more := score(p, append(conflicts, Conflict{Severity: SeverityHigh}), arcs, holes)
	if more > base {
		t.Errorf("score rose from %d to %d after adding a conflict", base, more)
	}
}

func TestRecommend(t *testing.T) {
	p := DefaultPolicy()
	conflicts := []Conflict{
		{ID: "c1", Type: ConflictCharacter, Severity: SeverityHigh, SuggestedFix: "fix one"},
		{ID: "c2", Type: ConflictTimeline, Severity: SeverityMedium},
		{ID: "c3", Type: ConflictLogic, Severity: SeverityHigh},
		{ID: "c1", Type: ConflictCharacter, Severity: SeverityHigh},
		{ID: "c4", Type: ConflictMotivation, Severity: SeverityHigh},
		{ID: "c5", Type: ConflictMotivation, Severity: SeverityHigh},
	}
	arcs := []CharacterArcAnalysis{{Completeness: 40}, {Completeness: 20}, {Completeness: 90}}
	structure := PlotStructureAnalysis{Pacing: PacingAnalysis{OverallPace: PaceTooSlow, ActionDensity: 0.5}}

	recs := recommend(p, conflicts, arcs, structure)
	var ids []string
	high := 0
	for _, r := range recs {
		ids = append(ids, r.ID)
		if r.Priority == PriorityHigh {
			high++
		}
	}
	if high > p.Recommendation.MaxHighPriority {
		t.Errorf("high priority count = %d", high)
	}
	want := []string{"rec-c1", "rec-c3", idRecDevelopment, idRecPacing}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}
	if recs[0].SuggestedAction != "fix one" || recs[1].SuggestedAction != genericAction {
		t.Errorf("actions = %q, %q", recs[0].SuggestedAction, recs[1].SuggestedAction)
	}
	if !strings.HasPrefix(recs[2].Description, "2 character(s)") {
		t.Errorf("development description = %q", recs[2].Description)
	}

	if empty := recommend(p, nil, nil, PlotStructureAnalysis{}); empty == nil || len(empty) != 0 {
		t.Errorf("recommend with no findings = %#v", empty)
	}
}

func TestContentIDStable(t *testing.T) {
	a := contentID("character-gap", "x", "ch1", "ch6")
	b := contentID("character-gap", "ch6", "x", "ch1", "ch1")
	if a != b {
		t.Errorf("ids differ: %s vs %s", a, b)
	}
	if a == contentID("character-unused", "x", "ch1", "ch6") {
		t.Error("rule name does not affect id")
	}
	if !strings.HasPrefix(a, "character-gap-") {
		t.Errorf("id = %s", a)
	}
}
