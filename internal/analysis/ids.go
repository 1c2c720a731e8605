package analysis

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// idNamespace scopes every content-derived id produced by the engine.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/vampirenirmal/storyscope/analysis"))

// Fixed ids for story-wide findings that are not tied to a specific entity.
const (
	idMultipleClimax          = "timeline-multiple-climax"
	idClimaxBeforeRising      = "timeline-climax-before-rising-action"
	idMissingInciting         = "logic-missing-inciting-incident"
	idResolutionWithoutClimax = "logic-resolution-without-climax"
	idRecDevelopment          = "rec-character-development"
	idRecPacing               = "rec-pacing"
)

// contentID derives a stable id from a rule name and the set of entity ids
// it concerns. Entity order does not matter, so findings computed
// concurrently or from reordered input keep the same id.
func contentID(rule string, entities ...string) string {
	set := slices.Clone(entities)
	slices.Sort(set)
	set = slices.Compact(set)

	key := rule + "\x00" + strings.Join(set, "\x00")
	return rule + "-" + uuid.NewSHA1(idNamespace, []byte(key)).String()
}
