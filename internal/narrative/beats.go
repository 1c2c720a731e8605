package narrative

import "strings"

// Beat is the closed vocabulary of narrative beat classifications. It covers
// both the story-structure scheme (inciting incident through resolution) and
// the plot-thread scheme (setup, conflict, climax, resolution).
type Beat string

const (
	BeatIncitingIncident Beat = "inciting_incident"
	BeatRisingAction     Beat = "rising_action"
	BeatClimax           Beat = "climax"
	BeatFallingAction    Beat = "falling_action"
	BeatResolution       Beat = "resolution"
	BeatSetup            Beat = "setup"
	BeatConflict         Beat = "conflict"
)

var knownBeats = map[Beat]bool{
	BeatIncitingIncident: true,
	BeatRisingAction:     true,
	BeatClimax:           true,
	BeatFallingAction:    true,
	BeatResolution:       true,
	BeatSetup:            true,
	BeatConflict:         true,
}

// threadEquivalents maps plot-thread beats onto the structure scheme.
var threadEquivalents = map[Beat]Beat{
	BeatSetup:    BeatIncitingIncident,
	BeatConflict: BeatRisingAction,
}

// Beats returns the full vocabulary in a stable order.
func Beats() []Beat {
	return []Beat{
		BeatIncitingIncident,
		BeatRisingAction,
		BeatClimax,
		BeatFallingAction,
		BeatResolution,
		BeatSetup,
		BeatConflict,
	}
}

// ParseBeat normalizes case and separators ("Rising Action", "rising-action")
// and reports whether the result is part of the vocabulary.
func ParseBeat(s string) (Beat, bool) {
	b := normalizeBeat(s)
	return b, knownBeats[b]
}

// Valid reports whether b is part of the vocabulary.
func (b Beat) Valid() bool {
	return knownBeats[b]
}

// StructuralEquivalent returns the structure-scheme beat for b. Beats that
// already belong to the structure scheme map to themselves.
func (b Beat) StructuralEquivalent() Beat {
	if eq, ok := threadEquivalents[b]; ok {
		return eq
	}
	return b
}

// UnmarshalText normalizes spelling variants. Unknown values are kept as-is so
// validation can report them alongside every other violation.
func (b *Beat) UnmarshalText(text []byte) error {
	*b = normalizeBeat(string(text))
	return nil
}

func normalizeBeat(s string) Beat {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return Beat(s)
}
