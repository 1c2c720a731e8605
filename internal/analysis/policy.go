package analysis

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/vampirenirmal/storyscope/internal/narrative"
)

// Policy is the complete set of thresholds and weights the engine applies.
// DefaultPolicy reproduces the stock scoring behaviour; callers can swap in a
// different policy without touching any checker.
type Policy struct {
	Penalties      Penalties            `yaml:"penalties" validate:"required"`
	Consistency    Consistency          `yaml:"consistency" validate:"required"`
	Completeness   Completeness         `yaml:"completeness" validate:"required"`
	Pacing         Pacing               `yaml:"pacing" validate:"required"`
	Tension        Tension              `yaml:"tension" validate:"required"`
	Recommendation RecommendationLimits `yaml:"recommendation" validate:"required"`
	Confidence     Confidence           `yaml:"confidence" validate:"required"`

	// UnifyBeatVocabularies maps plot-thread beats (setup, conflict) onto their
	// structure-scheme equivalents before any component runs.
	UnifyBeatVocabularies bool `yaml:"unify_beat_vocabularies"`
}

type Penalties struct {
	High   float64 `yaml:"high" validate:"min=0"`
	Medium float64 `yaml:"medium" validate:"min=0"`
	Low    float64 `yaml:"low" validate:"min=0"`
	// ArcFactor scales (100 - average arc completeness).
	ArcFactor float64 `yaml:"arc_factor" validate:"min=0"`
	PlotHole  float64 `yaml:"plot_hole" validate:"min=0"`
}

type Consistency struct {
	GapThreshold        int     `yaml:"gap_threshold" validate:"min=1"`
	ProtagonistCoverage float64 `yaml:"protagonist_coverage" validate:"min=0,max=1"`
	MinCoreDescription  int     `yaml:"min_core_description" validate:"min=0"`
}

type Completeness struct {
	RichDescriptionLength int `yaml:"rich_description_length" validate:"min=0"`
	RichDescription       int `yaml:"rich_description" validate:"min=0,max=100"`
	AnyDescription        int `yaml:"any_description" validate:"min=0,max=100"`
	Relationships         int `yaml:"relationships" validate:"min=0,max=100"`
	MultipleAppearances   int `yaml:"multiple_appearances" validate:"min=0,max=100"`
	NonMinorRole          int `yaml:"non_minor_role" validate:"min=0,max=100"`
	MinorRole             int `yaml:"minor_role" validate:"min=0,max=100"`
	// Characters below this score are flagged for development.
	DevelopmentThreshold int `yaml:"development_threshold" validate:"min=0,max=100"`
	// Descriptions shorter than this earn an "insufficient development" issue.
	MinDescription int `yaml:"min_description" validate:"min=0"`
}

type Pacing struct {
	SlowDensity    float64 `yaml:"slow_density" validate:"min=0"`
	FastDensity    float64 `yaml:"fast_density" validate:"gtefield=SlowDensity"`
	OpeningDivisor int     `yaml:"opening_divisor" validate:"min=1"`
}

type Tension struct {
	BeatWeights   map[narrative.Beat]int `yaml:"beat_weights"`
	DefaultWeight int                    `yaml:"default_weight" validate:"min=0"`
	PerCharacter  int                    `yaml:"per_character" validate:"min=0"`
}

// Weight returns the tension contribution of one event of beat b.
func (t Tension) Weight(b narrative.Beat) int {
	if w, ok := t.BeatWeights[b]; ok {
		return w
	}
	return t.DefaultWeight
}

type RecommendationLimits struct {
	MaxHighPriority int `yaml:"max_high_priority" validate:"min=0"`
}

// Confidence holds the confidence attached to each conflict rule.
type Confidence struct {
	UnusedCharacter         float64 `yaml:"unused_character" validate:"min=0,max=1"`
	AppearanceGap           float64 `yaml:"appearance_gap" validate:"min=0,max=1"`
	ProtagonistCoverage     float64 `yaml:"protagonist_coverage" validate:"min=0,max=1"`
	MultipleClimax          float64 `yaml:"multiple_climax" validate:"min=0,max=1"`
	ClimaxBeforeRising      float64 `yaml:"climax_before_rising" validate:"min=0,max=1"`
	MissingInciting         float64 `yaml:"missing_inciting" validate:"min=0,max=1"`
	ResolutionWithoutClimax float64 `yaml:"resolution_without_climax" validate:"min=0,max=1"`
	MotivationDescription   float64 `yaml:"motivation_description" validate:"min=0,max=1"`
	MotivationRelationship  float64 `yaml:"motivation_relationship" validate:"min=0,max=1"`
}

// DefaultPolicy returns the stock weights.
func DefaultPolicy() Policy {
	return Policy{
		Penalties: Penalties{
			High:      15,
			Medium:    8,
			Low:       3,
			ArcFactor: 0.2,
			PlotHole:  5,
		},
		Consistency: Consistency{
			GapThreshold:        2,
			ProtagonistCoverage: 0.6,
			MinCoreDescription:  50,
		},
		Completeness: Completeness{
			RichDescriptionLength: 100,
			RichDescription:       25,
			AnyDescription:        10,
			Relationships:         25,
			MultipleAppearances:   25,
			NonMinorRole:          25,
			MinorRole:             15,
			DevelopmentThreshold:  60,
			MinDescription:        50,
		},
		Pacing: Pacing{
			SlowDensity:    1,
			FastDensity:    3,
			OpeningDivisor: 3,
		},
		Tension: Tension{
			BeatWeights: map[narrative.Beat]int{
				narrative.BeatClimax:           100,
				narrative.BeatRisingAction:     60,
				narrative.BeatIncitingIncident: 40,
				narrative.BeatFallingAction:    30,
				narrative.BeatResolution:       20,
			},
			DefaultWeight: 10,
			PerCharacter:  5,
		},
		Recommendation: RecommendationLimits{
			MaxHighPriority: 3,
		},
		Confidence: Confidence{
			UnusedCharacter:         0.9,
			AppearanceGap:           0.6,
			ProtagonistCoverage:     0.85,
			MultipleClimax:          0.8,
			ClimaxBeforeRising:      0.7,
			MissingInciting:         0.85,
			ResolutionWithoutClimax: 0.75,
			MotivationDescription:   0.75,
			MotivationRelationship:  0.7,
		},
	}
}

// Penalty returns the score deduction for one conflict of severity s.
func (p Policy) Penalty(s Severity) float64 {
	switch s {
	case SeverityHigh:
		return p.Penalties.High
	case SeverityMedium:
		return p.Penalties.Medium
	case SeverityLow:
		return p.Penalties.Low
	default:
		return 0
	}
}

// Validate checks every weight is within range.
func (p Policy) Validate() error {
	if err := narrative.Validator().Struct(p); err != nil {
		return fmt.Errorf("policy validation failed: %w", err)
	}
	for b, w := range p.Tension.BeatWeights {
		if !b.Valid() {
			return fmt.Errorf("policy validation failed: unknown beat %q in tension weights", b)
		}
		if w < 0 {
			return fmt.Errorf("policy validation failed: negative tension weight for %q", b)
		}
	}
	return nil
}

// LoadPolicy decodes YAML over DefaultPolicy, so a file only needs the
// values it changes. Beat weight maps are merged key by key.
func LoadPolicy(r io.Reader) (Policy, error) {
	p := DefaultPolicy()
	defaults := p.Tension.BeatWeights
	p.Tension.BeatWeights = nil

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && err != io.EOF {
		return Policy{}, fmt.Errorf("parsing policy: %w", err)
	}

	merged := make(map[narrative.Beat]int, len(defaults)+len(p.Tension.BeatWeights))
	for b, w := range defaults {
		merged[b] = w
	}
	for b, w := range p.Tension.BeatWeights {
		merged[b] = w
	}
	p.Tension.BeatWeights = merged

	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}
