package analysis

// Severity ranks conflicts and plot holes.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ConflictType names the checker that produced a conflict.
type ConflictType string

const (
	ConflictCharacter  ConflictType = "character"
	ConflictTimeline   ConflictType = "timeline"
	ConflictLogic      ConflictType = "logic"
	ConflictMotivation ConflictType = "motivation"
)

// Conflict is one consistency finding. IDs are derived from the offending
// entities so repeated runs produce identical values.
type Conflict struct {
	ID           string       `json:"id"`
	Type         ConflictType `json:"type"`
	Severity     Severity     `json:"severity"`
	Description  string       `json:"description"`
	SuggestedFix string       `json:"suggestedFix,omitempty"`
	Confidence   float64      `json:"confidence"`
	CharacterID  string       `json:"characterId,omitempty"`
}

type ArcType string

const (
	ArcPositive ArcType = "positive"
	ArcNegative ArcType = "negative"
	ArcFlat     ArcType = "flat"
)

type MomentType string

const (
	MomentIntroduction MomentType = "introduction"
	MomentDevelopment  MomentType = "development"
	MomentResolution   MomentType = "resolution"
)

type ArcMoment struct {
	ChapterID   string     `json:"chapterId"`
	Type        MomentType `json:"type"`
	Description string     `json:"description"`
}

type CharacterArcAnalysis struct {
	CharacterID  string      `json:"characterId"`
	ArcType      ArcType     `json:"arcType"`
	Completeness int         `json:"completeness"`
	KeyMoments   []ArcMoment `json:"keyMoments"`
	Issues       []string    `json:"issues"`
}

// Structure labels.
const (
	StructureThreeAct = "Three-Act Structure"
	StructureCustom   = "Custom Structure"
)

type Pace string

const (
	PaceTooSlow     Pace = "too_slow"
	PaceAppropriate Pace = "appropriate"
	PaceTooFast     Pace = "too_fast"
)

type PacingIssue struct {
	Type        string `json:"type"`
	ChapterID   string `json:"chapterId"`
	Description string `json:"description"`
}

type PacingAnalysis struct {
	OverallPace   Pace          `json:"overallPace"`
	ActionDensity float64       `json:"actionDensity"`
	Issues        []PacingIssue `json:"issues"`
}

type PlotHole struct {
	ID               string   `json:"id"`
	Type             string   `json:"type"`
	Description      string   `json:"description"`
	ChaptersInvolved []string `json:"chaptersInvolved"`
	Severity         Severity `json:"severity"`
	SuggestedFix     string   `json:"suggestedFix"`
}

type TensionPoint struct {
	ChapterID    string   `json:"chapterId"`
	TensionLevel int      `json:"tensionLevel"`
	Events       []string `json:"events"`
}

type PlotStructureAnalysis struct {
	Structure    string         `json:"structure"`
	Pacing       PacingAnalysis `json:"pacing"`
	PlotHoles    []PlotHole     `json:"plotHoles"`
	TensionCurve []TensionPoint `json:"tensionCurve"`
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type Recommendation struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	Priority        Priority `json:"priority"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	SuggestedAction string   `json:"suggestedAction"`
}

// Result is the complete diagnosis for one snapshot.
type Result struct {
	Conflicts       []Conflict             `json:"conflicts"`
	OverallScore    int                    `json:"overallScore"`
	Recommendations []Recommendation       `json:"recommendations"`
	CharacterArcs   []CharacterArcAnalysis `json:"characterArcs"`
	PlotStructure   PlotStructureAnalysis  `json:"plotStructure"`
}
