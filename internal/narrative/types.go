// Package narrative holds the in-memory story graph consumed by the analysis
// engine: characters, chapters and the plot events inside them.
package narrative

// Role classifies a character's narrative function.
type Role string

const (
	RoleProtagonist Role = "protagonist"
	RoleAntagonist  Role = "antagonist"
	RoleSupporting  Role = "supporting"
	RoleMinor       Role = "minor"
)

// IsCore reports whether the role drives the central conflict.
func (r Role) IsCore() bool {
	return r == RoleProtagonist || r == RoleAntagonist
}

// Relationship links a character to a peer.
type Relationship struct {
	PeerID string `json:"peerId" yaml:"peerId" validate:"required"`
	Type   string `json:"type" yaml:"type"`
}

type Character struct {
	ID            string         `json:"id" yaml:"id" validate:"required"`
	Name          string         `json:"name" yaml:"name"`
	Role          Role           `json:"role" yaml:"role" validate:"required,oneof=protagonist antagonist supporting minor"`
	Description   string         `json:"description" yaml:"description"`
	Relationships []Relationship `json:"relationships,omitempty" yaml:"relationships,omitempty" validate:"dive"`
	Appearances   []string       `json:"appearances,omitempty" yaml:"appearances,omitempty" validate:"unique,dive,required"`
}

// PlotEvent is a single narrative beat inside a chapter. Tension is the
// plot-thread tension level in [1,10]; zero means unset.
type PlotEvent struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	ChapterID   string `json:"chapterId,omitempty" yaml:"chapterId,omitempty"`
	Type        Beat   `json:"type" yaml:"type" validate:"required,beat"`
	Description string `json:"description" yaml:"description"`
	Tension     int    `json:"tension,omitempty" yaml:"tension,omitempty" validate:"omitempty,min=1,max=10"`
}

type Chapter struct {
	ID           string      `json:"id" yaml:"id" validate:"required"`
	Number       int         `json:"number" yaml:"number" validate:"min=0"`
	Title        string      `json:"title,omitempty" yaml:"title,omitempty"`
	CharacterIDs []string    `json:"characterIds,omitempty" yaml:"characterIds,omitempty" validate:"dive,required"`
	Events       []PlotEvent `json:"events,omitempty" yaml:"events,omitempty" validate:"dive"`
}

// Snapshot is the root aggregate handed to the engine. It is treated as
// read-only for the duration of an analysis run.
type Snapshot struct {
	ProjectID  string      `json:"projectId,omitempty" yaml:"projectId,omitempty"`
	Title      string      `json:"title,omitempty" yaml:"title,omitempty"`
	Characters []Character `json:"characters" yaml:"characters" validate:"dive"`
	Chapters   []Chapter   `json:"chapters" yaml:"chapters" validate:"dive"`
}

// EventCount returns the number of plot events across all chapters.
func (s *Snapshot) EventCount() int {
	n := 0
	for i := range s.Chapters {
		n += len(s.Chapters[i].Events)
	}
	return n
}
