// Package insights talks to a hosted language model for supplementary,
// non-deterministic suggestions about a story. Nothing here feeds back into
// the deterministic analysis engine; a failed or disabled model degrades to
// the engine's result alone.
package insights

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/vampirenirmal/storyscope/internal/narrative"
)

var (
	// ErrUnavailable reports that the model could not be reached or gave up
	// after retries.
	ErrUnavailable = errors.New("supplementary analysis unavailable")
	// ErrEmptyResponse reports a completion with no usable content.
	ErrEmptyResponse = errors.New("empty model response")
)

// AnalysisType selects the question asked of the model.
type AnalysisType string

const (
	CharacterTags           AnalysisType = "character_tags"
	RelationshipSuggestions AnalysisType = "relationship_suggestions"
	NarrativeCoherence      AnalysisType = "narrative_coherence"
)

// AnalysisTypes lists every supported type in a fixed order.
func AnalysisTypes() []AnalysisType {
	return []AnalysisType{CharacterTags, RelationshipSuggestions, NarrativeCoherence}
}

func (t AnalysisType) Valid() bool {
	return slices.Contains(AnalysisTypes(), t)
}

// Node is a character or chapter in the graph sent to the model.
type Node struct {
	ID    string            `json:"id"`
	Kind  string            `json:"kind"`
	Label string            `json:"label"`
	Attrs map[string]string `json:"attributes,omitempty"`
}

// Edge links two nodes: a relationship between characters or a character
// appearing in a chapter.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
}

type Request struct {
	Content      string       `json:"content"`
	AnalysisType AnalysisType `json:"analysisType" validate:"required,oneof=character_tags relationship_suggestions narrative_coherence"`
	Nodes        []Node       `json:"nodes,omitempty"`
	Edges        []Edge       `json:"edges,omitempty"`
}

type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Suggestion is one item the model proposed. Subject is the id of the node
// it concerns, or empty for story-wide commentary.
type Suggestion struct {
	Type       AnalysisType `json:"type"`
	Subject    string       `json:"subject,omitempty"`
	Detail     string       `json:"detail"`
	Confidence float64      `json:"confidence,omitempty"`
}

// Suggestions decodes the response payload. The model is asked for
// {"suggestions": [...]}; a bare array is accepted too.
func (r *Response) Suggestions(t AnalysisType) ([]Suggestion, error) {
	if !r.Success {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, r.Error)
	}
	var wrapped struct {
		Suggestions []Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal(r.Data, &wrapped); err != nil {
		if err := json.Unmarshal(r.Data, &wrapped.Suggestions); err != nil {
			return nil, fmt.Errorf("decoding suggestions: %w", err)
		}
	}
	out := wrapped.Suggestions[:0:0]
	for _, s := range wrapped.Suggestions {
		if strings.TrimSpace(s.Detail) == "" {
			continue
		}
		s.Type = t
		out = append(out, s)
	}
	return out, nil
}

// BuildRequest derives the model request from a snapshot: characters and
// chapters become nodes, relationships and appearances become edges, and the
// descriptive text becomes the content. Chapters are listed by number.
func BuildRequest(snap *narrative.Snapshot, t AnalysisType) Request {
	req := Request{AnalysisType: t}
	if snap == nil {
		return req
	}

	chapters := make([]*narrative.Chapter, 0, len(snap.Chapters))
	for i := range snap.Chapters {
		chapters = append(chapters, &snap.Chapters[i])
	}
	slices.SortStableFunc(chapters, func(a, b *narrative.Chapter) int {
		return cmp.Compare(a.Number, b.Number)
	})

	var content strings.Builder
	if snap.Title != "" {
		fmt.Fprintf(&content, "Title: %s\n\n", snap.Title)
	}

	for _, c := range snap.Characters {
		req.Nodes = append(req.Nodes, Node{
			ID:    c.ID,
			Kind:  "character",
			Label: cmp.Or(c.Name, c.ID),
			Attrs: map[string]string{"role": string(c.Role)},
		})
		for _, rel := range c.Relationships {
			req.Edges = append(req.Edges, Edge{Source: c.ID, Target: rel.PeerID, Kind: cmp.Or(rel.Type, "related")})
		}
		for _, ch := range c.Appearances {
			req.Edges = append(req.Edges, Edge{Source: c.ID, Target: ch, Kind: "appears_in"})
		}
		fmt.Fprintf(&content, "Character %s (%s): %s\n", cmp.Or(c.Name, c.ID), c.Role, c.Description)
	}

	for _, ch := range chapters {
		label := cmp.Or(ch.Title, fmt.Sprintf("Chapter %d", ch.Number))
		req.Nodes = append(req.Nodes, Node{
			ID:    ch.ID,
			Kind:  "chapter",
			Label: label,
			Attrs: map[string]string{"number": fmt.Sprint(ch.Number)},
		})
		fmt.Fprintf(&content, "\n%s\n", label)
		for _, ev := range ch.Events {
			fmt.Fprintf(&content, "- [%s] %s\n", ev.Type, ev.Description)
		}
	}

	req.Content = content.String()
	return req
}
