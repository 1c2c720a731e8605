package analysis

import (
	"cmp"
	"slices"

	"github.com/vampirenirmal/storyscope/internal/narrative"
)

// storyIndex is a read-only, chapter-ordered view over a validated snapshot.
// It points into the snapshot and never modifies it.
type storyIndex struct {
	snap     *narrative.Snapshot
	chapters []*narrative.Chapter
	byID     map[string]*narrative.Chapter
	unify    bool
}

// placedEvent is a plot event together with the chapter that holds it.
type placedEvent struct {
	chapter *narrative.Chapter
	event   *narrative.PlotEvent
}

func newStoryIndex(s *narrative.Snapshot, unifyBeats bool) *storyIndex {
	ix := &storyIndex{
		snap:     s,
		chapters: make([]*narrative.Chapter, 0, len(s.Chapters)),
		byID:     make(map[string]*narrative.Chapter, len(s.Chapters)),
		unify:    unifyBeats,
	}
	for i := range s.Chapters {
		ch := &s.Chapters[i]
		ix.chapters = append(ix.chapters, ch)
		ix.byID[ch.ID] = ch
	}
	slices.SortStableFunc(ix.chapters, func(a, b *narrative.Chapter) int {
		return cmp.Compare(a.Number, b.Number)
	})
	return ix
}

// beat returns the event's beat, mapped onto the structure scheme when the
// policy unifies vocabularies.
func (ix *storyIndex) beat(ev *narrative.PlotEvent) narrative.Beat {
	if ix.unify {
		return ev.Type.StructuralEquivalent()
	}
	return ev.Type
}

// appearances returns the character's chapters, unique and ordered by number.
func (ix *storyIndex) appearances(c *narrative.Character) []*narrative.Chapter {
	seen := make(map[string]bool, len(c.Appearances))
	out := make([]*narrative.Chapter, 0, len(c.Appearances))
	for _, id := range c.Appearances {
		ch, ok := ix.byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, ch)
	}
	slices.SortStableFunc(out, func(a, b *narrative.Chapter) int {
		return cmp.Compare(a.Number, b.Number)
	})
	return out
}

// eventsOf lists every event of the given beats in chapter order.
func (ix *storyIndex) eventsOf(beats ...narrative.Beat) []placedEvent {
	var out []placedEvent
	for _, ch := range ix.chapters {
		for i := range ch.Events {
			ev := &ch.Events[i]
			if slices.Contains(beats, ix.beat(ev)) {
				out = append(out, placedEvent{chapter: ch, event: ev})
			}
		}
	}
	return out
}

func (ix *storyIndex) has(b narrative.Beat) bool {
	for _, ch := range ix.chapters {
		for i := range ch.Events {
			if ix.beat(&ch.Events[i]) == b {
				return true
			}
		}
	}
	return false
}

func displayName(c *narrative.Character) string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}
